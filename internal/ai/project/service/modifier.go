package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Jamolkhon5/pmagent/internal/ai/project/models"
	"github.com/Jamolkhon5/pmagent/internal/ai/project/prompts"
	"github.com/Jamolkhon5/pmagent/internal/ai/project/validator"
	core "github.com/Jamolkhon5/pmagent/internal/models"
	"github.com/Jamolkhon5/pmagent/internal/repository"
)

// TaskModifier разбирает просьбу изменить или удалить задачу и применяет ее.
type TaskModifier struct {
	llm         Completer
	store       Store
	counter     prompts.TokenCounter
	temperature float64
	budget      int
	logger      *slog.Logger
}

func NewTaskModifier(llm Completer, store Store, counter prompts.TokenCounter, opts Options, logger *slog.Logger) *TaskModifier {
	return &TaskModifier{
		llm:         llm,
		store:       store,
		counter:     counter,
		temperature: opts.PlanTemperature,
		budget:      opts.PromptTokenBudget,
		logger:      logger,
	}
}

// Modify работает с задачами проекта, а при пустом projectID - со всеми задачами.
// Ссылка должна указывать ровно на одну задачу, иначе ничего не меняется.
func (m *TaskModifier) Modify(ctx context.Context, utterance, projectID string) (models.TaskModified, error) {
	tasks, err := m.store.ListTasks(ctx, projectID)
	if err != nil {
		return models.TaskModified{}, &models.StoreError{Op: "list tasks", Err: err}
	}
	team, err := m.store.ListTeamMembers(ctx)
	if err != nil {
		return models.TaskModified{}, &models.StoreError{Op: "list team", Err: err}
	}

	prompt := prompts.ModificationPrompt(prompts.ModificationInput{
		Utterance: utterance,
		Tasks:     tasks,
		Team:      team,
		Budget:    m.budget,
	}, m.counter)

	text, err := m.llm.Complete(ctx, prompt, m.temperature)
	if err != nil {
		return models.TaskModified{}, err
	}
	action, err := validator.ParseAction(text)
	if err != nil {
		return models.TaskModified{}, err
	}

	target, err := resolveTask(tasks, action.TargetReference)
	if err != nil {
		return models.TaskModified{}, err
	}
	return m.apply(ctx, action, target, team)
}

func (m *TaskModifier) apply(ctx context.Context, action models.Action, target core.Task, team []core.TeamMember) (models.TaskModified, error) {
	if action.Operation == models.OperationDelete {
		if err := m.store.DeleteTask(ctx, target.ID); err != nil {
			return models.TaskModified{}, storeErr("delete task", action.TargetReference, err)
		}
		m.logger.Info("task deleted", "task_id", target.ID, "name", target.Name)
		return models.TaskModified{Operation: models.OperationDelete, Before: target}, nil
	}

	upd, assignee, err := validator.BuildUpdate(action.Fields)
	if err != nil {
		return models.TaskModified{}, err
	}
	if assignee != nil {
		if validator.IsUnassign(*assignee) {
			upd.ClearAssignee = true
		} else {
			member, ok := resolveMember(team, *assignee)
			if !ok {
				return models.TaskModified{}, &models.ValidationError{Field: "fields.assignee", Reason: "no team member matches " + *assignee}
			}
			id := member.ID
			upd.AssigneeID = &id
		}
	}
	if upd.Empty() {
		return models.TaskModified{}, &models.ValidationError{Field: "fields", Reason: "update changes nothing"}
	}

	after, err := m.store.UpdateTask(ctx, target.ID, upd)
	if err != nil {
		return models.TaskModified{}, storeErr("update task", action.TargetReference, err)
	}
	m.logger.Info("task updated", "task_id", target.ID, "name", after.Name)
	return models.TaskModified{Operation: models.OperationUpdate, Before: target, After: &after}, nil
}

// resolveTask сопоставляет ссылку с задачами: точное совпадение id или вхождение подстроки в название без учета регистра.
func resolveTask(tasks []core.Task, ref string) (core.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return core.Task{}, &models.ValidationError{Field: "target_reference", Reason: "missing"}
	}
	for _, t := range tasks {
		if t.ID == ref {
			return t, nil
		}
	}

	needle := strings.ToLower(ref)
	var matches []core.Task
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return core.Task{}, &models.NotFoundError{Reference: ref}
	case 1:
		return matches[0], nil
	}
	return core.Task{}, &models.AmbiguousReferenceError{Reference: ref, Candidates: matches}
}

// storeErr: задача могла исчезнуть между чтением и записью.
func storeErr(op, ref string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &models.NotFoundError{Reference: ref}
	}
	return &models.StoreError{Op: op, Err: err}
}
