package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/Jamolkhon5/pmagent/internal/models"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(s); f {
	case formatText, formatJSON, formatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q, use text, json or yaml", s)
}

func render(w io.Writer, resp models.AgentResponse, format outputFormat) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case formatYAML:
		// через JSON, чтобы ключи совпадали с HTTP-ответом
		raw, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		out, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}

	if resp.Success {
		successColor.Fprintf(w, "✓ %s\n", resp.Action)
	} else {
		errorColor.Fprintf(w, "✗ %s\n", resp.Action)
	}
	fmt.Fprintln(w, resp.Message)
	if resp.Error != "" {
		infoColor.Fprintf(w, "error: %s\n", resp.Error)
	}
	return nil
}

func renderTeam(w io.Writer, members []models.TeamMember) {
	if len(members) == 0 {
		infoColor.Fprintln(w, "no team members")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE\tSTATUS\tACTIVE")
	for _, m := range members {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", m.ID, m.Name, m.Role, m.Status, m.ActiveTasks)
	}
	tw.Flush()
}
