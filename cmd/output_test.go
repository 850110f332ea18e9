package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Jamolkhon5/pmagent/internal/models"
)

func init() {
	color.NoColor = true
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"text", "json", "yaml"} {
		f, err := parseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, outputFormat(s), f)
	}
	_, err := parseFormat("xml")
	assert.Error(t, err)
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	err := render(&buf, models.AgentResponse{Success: false, Action: "modify_task", Message: "Task not found.", Error: "no task matches \"x\""}, formatText)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "✗ modify_task")
	assert.Contains(t, out, "Task not found.")
	assert.Contains(t, out, "error: no task matches")
}

func TestRenderJSONAndYAMLShareKeys(t *testing.T) {
	resp := models.AgentResponse{
		Success: true,
		Action:  "create_project",
		Message: "Created project 'Shop'.",
		Data:    map[string]any{"project_id": "p1"},
	}

	var jsonBuf bytes.Buffer
	require.NoError(t, render(&jsonBuf, resp, formatJSON))
	var fromJSON map[string]any
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))

	var yamlBuf bytes.Buffer
	require.NoError(t, render(&yamlBuf, resp, formatYAML))
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))

	assert.Equal(t, fromJSON["action"], fromYAML["action"])
	assert.Equal(t, true, fromYAML["success"])
	result, ok := fromYAML["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p1", result["project_id"])
}

func TestRenderTeam(t *testing.T) {
	var buf bytes.Buffer
	renderTeam(&buf, []models.TeamMember{{ID: "m1", Name: "Alice", Role: "backend", Status: models.MemberBusy, ActiveTasks: 3}})
	assert.Contains(t, buf.String(), "Alice")
	assert.Contains(t, buf.String(), "busy")

	buf.Reset()
	renderTeam(&buf, nil)
	assert.Contains(t, buf.String(), "no team members")
}
