package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamolkhon5/pmagent/internal/ai/llm"
	"github.com/Jamolkhon5/pmagent/internal/ai/project/models"
	core "github.com/Jamolkhon5/pmagent/internal/models"
)

func newTestAssistant(llm Completer, store Store) *ProjectAssistant {
	opts := testOptions()
	opts.Status = models.AgentStatus{Enabled: true, Provider: "stub", Model: "stub-model", Store: "sqlite"}
	return NewProjectAssistant(llm, store, heuristic, opts, testLogger())
}

func TestHandleMessageHealthEndToEnd(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	project := mustProject(t, repo, "Shop")
	alice := mustMember(t, repo, "Alice", core.MemberBusy)
	mustMember(t, repo, "Bob", core.MemberOnline)
	mustMember(t, repo, "Carol", core.MemberOnline)
	for i := 0; i < 10; i++ {
		task := core.Task{ProjectID: project.ID, Name: fmt.Sprintf("task %d", i)}
		if i < 3 {
			task.Status = core.StatusDone
		} else if i < 8 {
			task.AssigneeID = &alice.ID
		}
		mustTask(t, repo, task)
	}

	stub := newStub(reply("Alice is carrying a lot right now."))
	resp := newTestAssistant(stub, repo).HandleMessage(ctx, core.AgentRequest{Utterance: "How is the project doing?", ProjectID: project.ID})

	assert.True(t, resp.Success)
	assert.Equal(t, "project_health", resp.Action)
	assert.Equal(t, "Alice is carrying a lot right now.", resp.Message)

	report, ok := resp.Data.(models.HealthReport)
	require.True(t, ok)
	assert.Equal(t, 30, report.CompletionRate)
	assert.Contains(t, report.OverloadedMembers, "Alice")
	assert.GreaterOrEqual(t, report.BurnoutRisk.Rank(), models.BurnoutMedium.Rank())

	// одна модель вызвана только для озвучивания
	assert.Equal(t, 1, stub.calls())
}

func TestHandleMessageNarrationFailureKeepsSuccess(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	stub := newStub(
		reply(`{"project_name":"Shop","tasks":[{"name":"Build cart"},{"name":"Add payments"}]}`),
		fail(&llm.Error{Kind: llm.Transient, StatusCode: 503, Err: errors.New("unavailable")}),
	)

	resp := newTestAssistant(stub, repo).HandleMessage(ctx, core.AgentRequest{Utterance: "Create project for an online shop"})

	assert.True(t, resp.Success)
	assert.Equal(t, "create_project", resp.Action)
	assert.Equal(t, "Created project 'Shop' with 2 tasks.", resp.Message)
	assert.Empty(t, resp.Error)
}

func TestHandleMessagePlanFailureBecomesGenericError(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	stub := newStub(fail(&llm.Error{Kind: llm.Transient, Err: context.DeadlineExceeded}))

	resp := newTestAssistant(stub, repo).HandleMessage(ctx, core.AgentRequest{Utterance: "a marketplace for cameras"})

	assert.False(t, resp.Success)
	assert.Equal(t, "error", resp.Action)
	assert.NotEmpty(t, resp.Message)
	assert.Contains(t, resp.Message, "not responding")
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, 1, stub.calls())

	projects, err := repo.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestHandleMessageAmbiguousModification(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	project := mustProject(t, repo, "Shop")
	mustTask(t, repo, core.Task{ProjectID: project.ID, Name: "Login page"})
	mustTask(t, repo, core.Task{ProjectID: project.ID, Name: "Login API"})

	stub := newStub(
		reply(`{"operation":"update","target_reference":"login","fields":{"status":"done"}}`),
		reply("Which login task did you mean?"),
	)
	resp := newTestAssistant(stub, repo).HandleMessage(ctx, core.AgentRequest{Utterance: "move login to done", ProjectID: project.ID})

	assert.False(t, resp.Success)
	assert.Equal(t, "modify_task", resp.Action)
	assert.Equal(t, "Which login task did you mean?", resp.Message)

	failed, ok := resp.Data.(models.TaskModificationFailed)
	require.True(t, ok)
	assert.Len(t, failed.Candidates, 2)

	tasks, err := repo.ListTasks(ctx, project.ID)
	require.NoError(t, err)
	for _, task := range tasks {
		assert.Equal(t, core.StatusTodo, task.Status)
	}
}

func TestHandleMessageUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	project := mustProject(t, repo, "Shop")
	cart := mustTask(t, repo, core.Task{ProjectID: project.ID, Name: "Build cart"})

	stub := newStub(
		reply(`{"operation":"update","target_reference":"cart","fields":{"status":"In Progress"}}`),
		reply("Moved the cart work into progress."),
	)
	resp := newTestAssistant(stub, repo).HandleMessage(ctx, core.AgentRequest{Utterance: "update cart to in progress", ProjectID: project.ID})

	assert.True(t, resp.Success)
	assert.Equal(t, "update", resp.Action)

	reloaded, err := repo.GetTask(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusInProgress, reloaded.Status)
}

func TestHandleMessageBulkTasksWithProject(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	project := mustProject(t, repo, "Shop")

	stub := newStub(
		reply(`{"tasks":[{"name":"Checkout form"},{"name":"Order email"}]}`),
		fail(errors.New("narration down")),
	)
	resp := newTestAssistant(stub, repo).HandleMessage(ctx, core.AgentRequest{Utterance: "create tasks for checkout", ProjectID: project.ID})

	assert.True(t, resp.Success)
	assert.Equal(t, "create_tasks", resp.Action)
	assert.Equal(t, "Added 2 tasks to project 'Shop'.", resp.Message)

	tasks, err := repo.ListTasks(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestHandleMessageTaskCreationWithoutProjectCreatesOne(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	stub := newStub(
		reply(`{"project_name":"Docs","tasks":[{"name":"Write README"}]}`),
		reply("Done."),
	)

	resp := newTestAssistant(stub, repo).HandleMessage(ctx, core.AgentRequest{Utterance: "add a task to write the README"})
	assert.True(t, resp.Success)
	assert.Equal(t, "create_project", resp.Action)

	projects, err := repo.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Docs", projects[0].Name)
}

func TestHandleMessageClarification(t *testing.T) {
	repo := newTestStore(t)
	project := mustProject(t, repo, "Shop")
	stub := newStub(reply(`{"question":"Who is on the team?"}`))

	resp := newTestAssistant(stub, repo).HandleMessage(context.Background(), core.AgentRequest{Utterance: "create tasks for launch", ProjectID: project.ID})
	assert.True(t, resp.Success)
	assert.Equal(t, "clarification_needed", resp.Action)
	assert.Equal(t, "Who is on the team?", resp.Message)
	assert.Equal(t, 1, stub.calls())
}

func TestHandleMessageUnknownProject(t *testing.T) {
	stub := newStub()
	resp := newTestAssistant(stub, newTestStore(t)).HandleMessage(context.Background(), core.AgentRequest{Utterance: "status?", ProjectID: "missing"})

	assert.False(t, resp.Success)
	assert.Equal(t, "error", resp.Action)
	assert.Contains(t, resp.Message, "project missing does not exist")
	assert.Equal(t, 0, stub.calls())
}

func TestHandleMessageEmpty(t *testing.T) {
	resp := newTestAssistant(newStub(), newTestStore(t)).HandleMessage(context.Background(), core.AgentRequest{Utterance: "  "})
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
}

func TestHandleMessageDisabledAgent(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	assistant := NewProjectAssistant(nil, repo, heuristic, testOptions(), testLogger())

	resp := assistant.HandleMessage(ctx, core.AgentRequest{Utterance: "create project for a blog"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "not configured")
	assert.False(t, assistant.Status().Enabled)

	// метрики не требуют модели
	resp = assistant.HandleMessage(ctx, core.AgentRequest{Utterance: "show health"})
	assert.True(t, resp.Success)
	assert.Equal(t, "project_health", resp.Action)
	assert.Contains(t, resp.Message, "Burnout risk: Low")
}

type panickingStore struct{ Store }

func (panickingStore) ListTasks(context.Context, string) ([]core.Task, error) {
	panic("boom")
}

func TestHandleMessageRecoversFromPanic(t *testing.T) {
	resp := newTestAssistant(newStub(), panickingStore{newTestStore(t)}).HandleMessage(context.Background(), core.AgentRequest{Utterance: "health"})
	assert.False(t, resp.Success)
	assert.Equal(t, "error", resp.Action)
	assert.NotEmpty(t, resp.Message)
}
