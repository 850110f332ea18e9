package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Jamolkhon5/pmagent/internal/ai/llm"
	"github.com/Jamolkhon5/pmagent/internal/ai/project/models"
	"github.com/Jamolkhon5/pmagent/internal/ai/project/prompts"
	core "github.com/Jamolkhon5/pmagent/internal/models"
	"github.com/Jamolkhon5/pmagent/internal/repository"
)

const DefaultOverloadThreshold = 4

// ErrAgentDisabled возвращается вместо ответа модели, если ключ API не задан.
var ErrAgentDisabled = &llm.Error{Kind: llm.Permanent, Err: errors.New("AI agent is not configured")}

// Completer - клиент языковой модели.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Store - операции хранилища, которые нужны агенту.
type Store interface {
	CreateProject(ctx context.Context, p core.Project) (core.Project, error)
	GetProject(ctx context.Context, id string) (core.Project, error)
	CreateTask(ctx context.Context, t core.Task) (core.Task, error)
	GetTask(ctx context.Context, id string) (core.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]core.Task, error)
	UpdateTask(ctx context.Context, id string, upd core.TaskUpdate) (core.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ListTeamMembers(ctx context.Context) ([]core.TeamMember, error)
}

// Options - настраиваемые параметры агента.
type Options struct {
	PlanTemperature      float64
	NarrationTemperature float64
	OverloadThreshold    int
	PromptTokenBudget    int
	Status               models.AgentStatus
}

type ProjectAssistant struct {
	store    Store
	analyzer *IntentAnalyzer
	planner  *PlanGenerator
	modifier *TaskModifier
	health   *HealthMonitor
	narrator *Narrator
	status   models.AgentStatus
	logger   *slog.Logger
}

// NewProjectAssistant собирает агента. completer == nil означает, что модель недоступна:
// метрики здоровья по-прежнему считаются, остальные команды завершаются понятной ошибкой.
func NewProjectAssistant(completer Completer, store Store, counter prompts.TokenCounter, opts Options, logger *slog.Logger) *ProjectAssistant {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "agent")
	if completer == nil {
		completer = disabledCompleter{}
		opts.Status.Enabled = false
	}
	return &ProjectAssistant{
		store:    store,
		analyzer: NewIntentAnalyzer(),
		planner:  NewPlanGenerator(completer, store, counter, opts, logger),
		modifier: NewTaskModifier(completer, store, counter, opts, logger),
		health:   NewHealthMonitor(store, opts.OverloadThreshold),
		narrator: NewNarrator(completer, opts.NarrationTemperature, logger),
		status:   opts.Status,
		logger:   logger,
	}
}

// HandleMessage выполняет команду пользователя. Любой сбой превращается в ответ с success=false.
func (pa *ProjectAssistant) HandleMessage(ctx context.Context, req core.AgentRequest) (resp core.AgentResponse) {
	utterance := strings.TrimSpace(req.Utterance)
	intent := models.IntentUnknown

	defer func() {
		if r := recover(); r != nil {
			pa.logger.Error("agent panic", "panic", r, "intent", intent)
			resp = pa.respond(ctx, models.GenericError{Intent: intent, Message: "internal error"}, utterance, fmt.Errorf("panic: %v", r))
		}
	}()

	if utterance == "" {
		return pa.respond(ctx, models.GenericError{Intent: intent, Message: "the request is empty"}, utterance, errors.New("empty utterance"))
	}

	var project *core.Project
	if req.ProjectID != "" {
		p, err := pa.store.GetProject(ctx, req.ProjectID)
		if err != nil {
			msg := "could not load the project"
			if errors.Is(err, repository.ErrNotFound) {
				msg = fmt.Sprintf("project %s does not exist", req.ProjectID)
			}
			return pa.respond(ctx, models.GenericError{Intent: intent, Message: msg}, utterance, err)
		}
		project = &p
	}

	intent = pa.analyzer.Classify(utterance, project != nil)
	pa.logger.Debug("intent classified", "intent", intent, "project_id", req.ProjectID)

	outcome, err := pa.dispatch(ctx, intent, utterance, project, req.History)
	if err != nil {
		return pa.respond(ctx, failureOutcome(intent, err), utterance, err)
	}
	return pa.respond(ctx, outcome, utterance, nil)
}

func (pa *ProjectAssistant) dispatch(ctx context.Context, intent models.Intent, utterance string, project *core.Project, history []core.Message) (models.Outcome, error) {
	switch intent {
	case models.IntentTaskModification:
		return pa.modifier.Modify(ctx, utterance, projectID(project))
	case models.IntentProjectHealth:
		return pa.health.Compute(ctx, projectID(project))
	case models.IntentBulkTaskCreation, models.IntentSingleTaskCreation:
		// без проекта задачи некуда положить: создается новый проект
		return pa.planner.Generate(ctx, PlanRequest{
			Utterance: utterance,
			Project:   project,
			History:   history,
			Single:    intent == models.IntentSingleTaskCreation,
		})
	default:
		return pa.planner.Generate(ctx, PlanRequest{Utterance: utterance, History: history})
	}
}

func (pa *ProjectAssistant) respond(ctx context.Context, outcome models.Outcome, utterance string, cause error) core.AgentResponse {
	resp := core.AgentResponse{
		Success: outcome.Succeeded(),
		Action:  outcome.Action(),
		Message: pa.narrator.Narrate(ctx, outcome, utterance),
		Data:    outcome,
	}
	switch {
	case cause != nil:
		resp.Error = cause.Error()
	case !resp.Success:
		resp.Error = outcomeError(outcome)
	}

	pa.logger.Info("agent command handled", "action", resp.Action, "success", resp.Success)
	if cause != nil {
		pa.logger.Warn("agent command failed", "action", resp.Action, "error", cause)
	}
	return resp
}

// Capabilities описывает, какие фразы к какой возможности ведут.
func (pa *ProjectAssistant) Capabilities() []models.Capability {
	return pa.analyzer.Capabilities()
}

func (pa *ProjectAssistant) Status() models.AgentStatus {
	return pa.status
}

// failureOutcome переводит ошибку ветки в итог для рассказчика.
func failureOutcome(intent models.Intent, err error) models.Outcome {
	var notFound *models.NotFoundError
	var ambiguous *models.AmbiguousReferenceError
	var invalid *models.ValidationError

	if intent == models.IntentTaskModification {
		switch {
		case errors.As(err, &ambiguous):
			return models.TaskModificationFailed{
				Reference:  ambiguous.Reference,
				Reason:     fmt.Sprintf("%q matches %d tasks", ambiguous.Reference, len(ambiguous.Candidates)),
				Candidates: ambiguous.Candidates,
			}
		case errors.As(err, &notFound):
			return models.TaskModificationFailed{Reference: notFound.Reference, Reason: fmt.Sprintf("no task matches %q", notFound.Reference)}
		case errors.As(err, &invalid):
			return models.TaskModificationFailed{Reason: invalid.Error()}
		}
	}
	return models.GenericError{Intent: intent, Message: userMessage(err)}
}

func userMessage(err error) string {
	var le *llm.Error
	var invalid *models.ValidationError
	var store *models.StoreError
	switch {
	case errors.Is(err, ErrAgentDisabled):
		return "the AI agent is not configured"
	case errors.As(err, &invalid):
		return "the AI returned a response I could not understand, please rephrase"
	case errors.As(err, &store):
		return "the change could not be saved"
	case errors.As(err, &le) && le.Kind == llm.Transient:
		return "the AI service is not responding right now, please try again in a moment"
	case errors.As(err, &le):
		return "the AI service rejected the request"
	}
	return "something went wrong"
}

func outcomeError(outcome models.Outcome) string {
	switch o := outcome.(type) {
	case models.PlanCreated:
		return o.Error
	case models.TasksCreated:
		return o.Error
	case models.TaskModificationFailed:
		return o.Reason
	case models.GenericError:
		return o.Message
	}
	return ""
}

func projectID(p *core.Project) string {
	if p == nil {
		return ""
	}
	return p.ID
}

type disabledCompleter struct{}

func (disabledCompleter) Complete(context.Context, string, float64) (string, error) {
	return "", ErrAgentDisabled
}
