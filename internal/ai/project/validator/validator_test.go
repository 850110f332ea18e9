package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamolkhon5/pmagent/internal/ai/project/models"
	core "github.com/Jamolkhon5/pmagent/internal/models"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "Here you go:\n```json\n{\"a\": 1}\n```\nEnjoy", `{"a": 1}`},
		{"bare fence", "```\n{\"a\":2}\n```", `{"a":2}`},
		{"surrounding prose", `Sure! {"a":{"b":3}} hope this helps`, `{"a":{"b":3}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ExtractJSON("no json here")
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = ExtractJSON(`{"a": }`)
	assert.ErrorAs(t, err, &verr)
}

func TestParsePlan(t *testing.T) {
	plan, err := ParsePlan(`{"project_name":"Shop","overview":"Online store","tasks":[
		{"name":"Build cart","priority":"high","assignee":"AS","assignment_reasoning":"frontend","estimated_hours":"6","sub_tasks":["Cart UI",{"name":"Cart API"},""]},
		{"name":"Add payments","estimated_hours":4}
	],"milestones":[]}`)
	require.NoError(t, err)

	assert.Equal(t, "Shop", plan.ProjectName)
	assert.Equal(t, "Online store", plan.Overview)
	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, "Build cart", plan.Tasks[0].Name)
	assert.Equal(t, "AS", plan.Tasks[0].Assignee)
	require.NotNil(t, plan.Tasks[0].EstimatedHours)
	assert.InDelta(t, 6.0, *plan.Tasks[0].EstimatedHours, 1e-9)
	assert.Equal(t, []string{"Cart UI", "Cart API"}, plan.Tasks[0].SubTasks)
	assert.Equal(t, "Add payments", plan.Tasks[1].Name)
}

func TestParsePlanRejects(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		field string
	}{
		{"missing tasks", `{"project_name":"Shop"}`, "tasks"},
		{"tasks not list", `{"tasks":{"name":"x"}}`, "tasks"},
		{"task without name", `{"tasks":[{"name":"ok"},{"description":"no name"}]}`, "tasks[1].name"},
		{"blank name", `{"tasks":[{"name":"  "}]}`, "tasks[0].name"},
		{"task not object", `{"tasks":["just a string"]}`, "tasks[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan(tt.in)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestParsePlanQuestion(t *testing.T) {
	plan, err := ParsePlan(`{"question":"Which roles does the team have?"}`)
	require.NoError(t, err)
	assert.Equal(t, "Which roles does the team have?", plan.Question)
	assert.Empty(t, plan.Tasks)
}

func TestParseAction(t *testing.T) {
	action, err := ParseAction(`{"operation":"Update","target_reference":"cart","fields":{"Status":"Done","assignee":null}}`)
	require.NoError(t, err)
	assert.Equal(t, models.OperationUpdate, action.Operation)
	assert.Equal(t, "cart", action.TargetReference)
	assert.Equal(t, map[string]string{"status": "Done", "assignee": ""}, action.Fields)

	action, err = ParseAction("```json\n{\"action\":\"delete\",\"target_task_name\":\"Login page\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, models.OperationDelete, action.Operation)
	assert.Equal(t, "Login page", action.TargetReference)
	assert.Nil(t, action.Fields)

	action, err = ParseAction(`{"action":"update","target_task_name":"cart","updates":{"priority":"high"}}`)
	require.NoError(t, err)
	assert.Equal(t, "high", action.Fields["priority"])
}

func TestParseActionRejects(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		field string
	}{
		{"missing operation", `{"target_reference":"x"}`, "operation"},
		{"unsupported operation", `{"operation":"archive","target_reference":"x"}`, "operation"},
		{"empty reference", `{"operation":"delete","target_reference":" "}`, "target_reference"},
		{"unknown field", `{"operation":"update","target_reference":"x","fields":{"deadline":"friday"}}`, "fields.deadline"},
		{"fields not object", `{"operation":"update","target_reference":"x","fields":"done"}`, "fields"},
		{"no fields", `{"operation":"update","target_reference":"x","fields":{}}`, "fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAction(tt.in)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestBuildUpdate(t *testing.T) {
	upd, assignee, err := BuildUpdate(map[string]string{
		"status":   "In Progress",
		"priority": "HIGH",
		"name":     "Cart v2",
		"assignee": "AS",
	})
	require.NoError(t, err)
	require.NotNil(t, upd.Status)
	assert.Equal(t, core.StatusInProgress, *upd.Status)
	assert.Equal(t, core.PriorityHigh, *upd.Priority)
	assert.Equal(t, "Cart v2", *upd.Name)
	require.NotNil(t, assignee)
	assert.Equal(t, "AS", *assignee)

	_, _, err = BuildUpdate(map[string]string{"status": "blocked"})
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, _, err = BuildUpdate(map[string]string{"name": ""})
	assert.ErrorAs(t, err, &verr)
}

func TestIsUnassign(t *testing.T) {
	assert.True(t, IsUnassign("None"))
	assert.True(t, IsUnassign(""))
	assert.False(t, IsUnassign("AS"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "пр", truncate("привет", 2))
}
