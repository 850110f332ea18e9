package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Jamolkhon5/pmagent/internal/ai/project/models"
	"github.com/Jamolkhon5/pmagent/internal/ai/project/prompts"
	core "github.com/Jamolkhon5/pmagent/internal/models"
)

// Narrator превращает итог команды в сообщение для пользователя.
type Narrator struct {
	llm         Completer
	temperature float64
	logger      *slog.Logger
}

func NewNarrator(llm Completer, temperature float64, logger *slog.Logger) *Narrator {
	return &Narrator{llm: llm, temperature: temperature, logger: logger}
}

// Narrate делает один вызов модели. Если вызов не удался, возвращается шаблонная фраза по полям итога.
func (n *Narrator) Narrate(ctx context.Context, outcome models.Outcome, utterance string) string {
	switch o := outcome.(type) {
	case models.ClarificationNeeded:
		return o.Question
	case models.GenericError:
		return Fallback(o)
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		n.logger.Warn("narration: marshal outcome", "error", err)
		return Fallback(outcome)
	}
	text, err := n.llm.Complete(ctx, prompts.NarrationPrompt(outcome.Action(), outcome.Succeeded(), string(data), utterance), n.temperature)
	if err != nil {
		n.logger.Warn("narration failed, using template", "action", outcome.Action(), "error", err)
		return Fallback(outcome)
	}
	if text = strings.TrimSpace(text); text == "" {
		return Fallback(outcome)
	}
	return text
}

// Fallback строит детерминированное сообщение без модели.
func Fallback(outcome models.Outcome) string {
	switch o := outcome.(type) {
	case models.PlanCreated:
		msg := fmt.Sprintf("Created project '%s' with %s", o.Project.Name, plural(len(o.Tasks), "task"))
		if len(o.SubTasks) > 0 {
			msg += " and " + plural(len(o.SubTasks), "sub-task")
		}
		return msg + failedSuffix(o.Failed)
	case models.TasksCreated:
		if len(o.Tasks) == 1 && len(o.SubTasks) == 0 && o.Failed == 0 {
			return fmt.Sprintf("Added task '%s' to project '%s'.", o.Tasks[0].Name, o.Project.Name)
		}
		msg := fmt.Sprintf("Added %s to project '%s'", plural(len(o.Tasks), "task"), o.Project.Name)
		if len(o.SubTasks) > 0 {
			msg += " with " + plural(len(o.SubTasks), "sub-task")
		}
		return msg + failedSuffix(o.Failed)
	case models.TaskModified:
		if o.Operation == models.OperationDelete || o.After == nil {
			return fmt.Sprintf("Deleted task '%s'.", o.Before.Name)
		}
		changes := describeChanges(o.Before, *o.After)
		if changes == "" {
			return fmt.Sprintf("Updated task '%s'.", o.After.Name)
		}
		return fmt.Sprintf("Updated task '%s': %s.", o.After.Name, changes)
	case models.TaskModificationFailed:
		msg := "I couldn't change that task: " + o.Reason + "."
		if len(o.Candidates) > 0 {
			names := make([]string, 0, len(o.Candidates))
			for _, t := range o.Candidates {
				names = append(names, "'"+t.Name+"'")
			}
			msg += " Did you mean one of: " + strings.Join(names, ", ") + "?"
		}
		return msg
	case models.HealthReport:
		msg := fmt.Sprintf("Project is %d%% complete (%d of %s done). Burnout risk: %s.",
			o.CompletionRate, o.DoneTasks, plural(o.TotalTasks, "task"), o.BurnoutRisk)
		if len(o.OverloadedMembers) > 0 {
			msg += " Overloaded: " + strings.Join(o.OverloadedMembers, ", ") + "."
		} else {
			msg += " Team workload is balanced."
		}
		return msg
	case models.ClarificationNeeded:
		return o.Question
	case models.GenericError:
		return "Sorry, I couldn't complete that request: " + o.Message + "."
	}
	return "Done."
}

func describeChanges(before, after core.Task) string {
	var parts []string
	if before.Name != after.Name {
		parts = append(parts, fmt.Sprintf("renamed from '%s'", before.Name))
	}
	if before.Status != after.Status {
		parts = append(parts, "status "+after.Status.Label())
	}
	if before.Priority != after.Priority {
		parts = append(parts, "priority "+string(after.Priority))
	}
	if before.Description != after.Description {
		parts = append(parts, "description updated")
	}
	if !sameAssignee(before.AssigneeID, after.AssigneeID) {
		if after.AssigneeID == nil {
			parts = append(parts, "unassigned")
		} else {
			parts = append(parts, "reassigned")
		}
	}
	return strings.Join(parts, ", ")
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func failedSuffix(failed int) string {
	if failed == 0 {
		return "."
	}
	return fmt.Sprintf("; %d could not be saved.", failed)
}
