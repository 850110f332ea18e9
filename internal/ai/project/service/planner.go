package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Jamolkhon5/pmagent/internal/ai/project/models"
	"github.com/Jamolkhon5/pmagent/internal/ai/project/prompts"
	"github.com/Jamolkhon5/pmagent/internal/ai/project/validator"
	core "github.com/Jamolkhon5/pmagent/internal/models"
)

const reasoningPrefix = "AI Reasoning: "

// PlanRequest - запрос на генерацию задач. Project == nil означает новый проект.
type PlanRequest struct {
	Utterance string
	Project   *core.Project
	History   []core.Message
	Single    bool
}

// PlanGenerator строит промпт, проверяет план модели и сохраняет проект и задачи.
type PlanGenerator struct {
	llm         Completer
	store       Store
	counter     prompts.TokenCounter
	temperature float64
	budget      int
	logger      *slog.Logger
}

func NewPlanGenerator(llm Completer, store Store, counter prompts.TokenCounter, opts Options, logger *slog.Logger) *PlanGenerator {
	return &PlanGenerator{
		llm:         llm,
		store:       store,
		counter:     counter,
		temperature: opts.PlanTemperature,
		budget:      opts.PromptTokenBudget,
		logger:      logger,
	}
}

// Generate возвращает PlanCreated, TasksCreated или ClarificationNeeded.
// Задачи создаются по порядку; при сбое уже созданные остаются, а в итоге указывается число несохраненных.
func (g *PlanGenerator) Generate(ctx context.Context, req PlanRequest) (models.Outcome, error) {
	team, err := g.store.ListTeamMembers(ctx)
	if err != nil {
		return nil, &models.StoreError{Op: "list team", Err: err}
	}

	var prompt string
	if req.Project == nil {
		prompt = prompts.PlanPrompt(prompts.PlanInput{Utterance: req.Utterance, Team: team})
	} else {
		existing, err := g.store.ListTasks(ctx, req.Project.ID)
		if err != nil {
			return nil, &models.StoreError{Op: "list tasks", Err: err}
		}
		prompt = prompts.TaskListPrompt(prompts.TaskListInput{
			Utterance: req.Utterance,
			Project:   *req.Project,
			Team:      team,
			Existing:  existing,
			History:   req.History,
			Single:    req.Single,
			Budget:    g.budget,
		}, g.counter)
	}

	text, err := g.llm.Complete(ctx, prompt, g.temperature)
	if err != nil {
		return nil, err
	}
	plan, err := validator.ParsePlan(text)
	if err != nil {
		return nil, err
	}
	if plan.Question != "" {
		return models.ClarificationNeeded{Question: plan.Question}, nil
	}

	if req.Project != nil {
		created, subs, failed, err := g.materialize(ctx, *req.Project, plan.Tasks, team)
		out := models.TasksCreated{Project: *req.Project, Tasks: created, SubTasks: subs, Failed: failed}
		if err != nil {
			out.Error = err.Error()
		}
		return out, nil
	}

	name := plan.ProjectName
	if name == "" {
		name = projectNameFrom(req.Utterance)
	}
	project, err := g.store.CreateProject(ctx, core.Project{Name: name, Description: plan.Overview})
	if err != nil {
		return nil, &models.StoreError{Op: "create project", Err: err}
	}
	created, subs, failed, err := g.materialize(ctx, project, plan.Tasks, team)
	for _, t := range created {
		project.TaskIDs = append(project.TaskIDs, t.ID)
	}
	for _, t := range subs {
		project.TaskIDs = append(project.TaskIDs, t.ID)
	}
	out := models.PlanCreated{Project: project, Tasks: created, SubTasks: subs, Failed: failed}
	if err != nil {
		out.Error = err.Error()
	}
	return out, nil
}

// materialize сохраняет задачи в порядке плана, подзадачи сразу после родителя.
// Первый сбой останавливает пакет; failed - число элементов плана, которые не сохранены.
func (g *PlanGenerator) materialize(ctx context.Context, project core.Project, drafts []models.TaskDraft, team []core.TeamMember) ([]core.Task, []core.Task, int, error) {
	total := 0
	for _, d := range drafts {
		total += 1 + len(d.SubTasks)
	}

	created := make([]core.Task, 0, len(drafts))
	var subs []core.Task
	for _, d := range drafts {
		task, err := g.store.CreateTask(ctx, taskFromDraft(project.ID, d, team))
		if err != nil {
			g.logger.Error("plan task not saved", "project_id", project.ID, "task", d.Name, "error", err)
			return created, subs, total - len(created) - len(subs), &models.StoreError{Op: "create task", Err: err}
		}
		created = append(created, task)

		for _, name := range d.SubTasks {
			parentID := task.ID
			sub, err := g.store.CreateTask(ctx, core.Task{
				ProjectID: project.ID,
				ParentID:  &parentID,
				Name:      name,
				Priority:  task.Priority,
			})
			if err != nil {
				g.logger.Error("plan sub-task not saved", "project_id", project.ID, "task", name, "error", err)
				return created, subs, total - len(created) - len(subs), &models.StoreError{Op: "create sub-task", Err: err}
			}
			subs = append(subs, sub)
		}
	}
	return created, subs, 0, nil
}

func taskFromDraft(projectID string, d models.TaskDraft, team []core.TeamMember) core.Task {
	priority, ok := core.ParsePriority(d.Priority)
	if !ok {
		priority = core.PriorityMedium
	}
	description := d.Description
	if d.AssignmentReasoning != "" {
		if description != "" {
			description += "\n\n"
		}
		description += reasoningPrefix + d.AssignmentReasoning
	}

	task := core.Task{
		ProjectID:      projectID,
		Name:           d.Name,
		Description:    description,
		Status:         core.StatusTodo,
		Priority:       priority,
		EstimatedHours: d.EstimatedHours,
	}
	// занятость исполнителя - мягкое ограничение промпта, здесь выбор модели не пересматривается
	if m, ok := resolveMember(team, d.Assignee); ok {
		id := m.ID
		task.AssigneeID = &id
	}
	return task
}

// resolveMember ищет участника по id, имени или инициалам без учета регистра.
func resolveMember(team []core.TeamMember, ref string) (core.TeamMember, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return core.TeamMember{}, false
	}
	for _, m := range team {
		if m.ID == ref {
			return m, true
		}
	}
	for _, m := range team {
		if strings.EqualFold(m.Name, ref) {
			return m, true
		}
	}
	var byInitials []core.TeamMember
	for _, m := range team {
		if strings.EqualFold(m.Initials(), ref) {
			byInitials = append(byInitials, m)
		}
	}
	if len(byInitials) == 1 {
		return byInitials[0], true
	}
	// "Alice" для "Alice Smith"
	var byFirstName []core.TeamMember
	for _, m := range team {
		if fields := strings.Fields(m.Name); len(fields) > 0 && strings.EqualFold(fields[0], ref) {
			byFirstName = append(byFirstName, m)
		}
	}
	if len(byFirstName) == 1 {
		return byFirstName[0], true
	}
	return core.TeamMember{}, false
}

func projectNameFrom(utterance string) string {
	name := strings.TrimSpace(utterance)
	lower := strings.ToLower(name)
	for _, prefix := range []string{"create a project for", "create project for", "create project", "new project for", "new project", "build a", "generate plan for"} {
		if strings.HasPrefix(lower, prefix) {
			name = strings.TrimSpace(name[len(prefix):])
			break
		}
	}
	name = strings.Trim(name, " .!?:;,")
	if r := []rune(name); len(r) > 60 {
		name = strings.TrimSpace(string(r[:60]))
	}
	if name == "" {
		return "New Project"
	}
	r := []rune(name)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
