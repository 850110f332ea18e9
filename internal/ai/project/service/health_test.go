package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamolkhon5/pmagent/internal/ai/project/models"
	core "github.com/Jamolkhon5/pmagent/internal/models"
)

func TestComputeHealthEmptyProject(t *testing.T) {
	repo := newTestStore(t)
	project := mustProject(t, repo, "Empty")

	report, err := NewHealthMonitor(repo, 4).Compute(context.Background(), project.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, report.TotalTasks)
	assert.Equal(t, 0, report.CompletionRate)
	assert.Equal(t, models.BurnoutLow, report.BurnoutRisk)
	assert.Empty(t, report.OverloadedMembers)
	assert.NotNil(t, report.OverloadedMembers)
}

func TestComputeHealthCompletionAndOverload(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	project := mustProject(t, repo, "Shop")
	alice := mustMember(t, repo, "Alice", core.MemberBusy)
	bob := mustMember(t, repo, "Bob", core.MemberOnline)
	_ = mustMember(t, repo, "Carol", core.MemberOnline)

	// 10 задач: 3 выполнены, у Alice 5 активных, у Bob 2
	statuses := []core.TaskStatus{
		core.StatusDone, core.StatusDone, core.StatusDone,
		core.StatusTodo, core.StatusTodo, core.StatusInProgress, core.StatusInProgress, core.StatusTodo,
		core.StatusTodo, core.StatusInProgress,
	}
	for i, s := range statuses {
		task := core.Task{ProjectID: project.ID, Name: fmt.Sprintf("task %d", i), Status: s}
		switch {
		case i >= 3 && i < 8:
			task.AssigneeID = &alice.ID
		case i >= 8:
			task.AssigneeID = &bob.ID
		}
		mustTask(t, repo, task)
	}
	// задача другого проекта не влияет на отчет
	other := mustProject(t, repo, "Other")
	mustTask(t, repo, core.Task{ProjectID: other.ID, Name: "elsewhere", AssigneeID: &bob.ID})

	monitor := NewHealthMonitor(repo, 4)
	report, err := monitor.Compute(ctx, project.ID)
	require.NoError(t, err)

	assert.Equal(t, 10, report.TotalTasks)
	assert.Equal(t, 30, report.CompletionRate)
	assert.Equal(t, 3, report.DoneTasks)
	assert.Equal(t, 4, report.TodoTasks)
	assert.Equal(t, 3, report.InProgressTasks)
	assert.Equal(t, []string{"Alice"}, report.OverloadedMembers)
	assert.GreaterOrEqual(t, report.BurnoutRisk.Rank(), models.BurnoutMedium.Rank())
	assert.Equal(t, models.BurnoutMedium, report.BurnoutRisk)

	require.Len(t, report.Members, 3)
	assert.Equal(t, "Alice", report.Members[0].Name)
	assert.Equal(t, 5, report.Members[0].ActiveTasks)
	assert.Equal(t, 2, report.Members[1].ActiveTasks)
	assert.Equal(t, 0, report.Members[2].ActiveTasks)

	again, err := monitor.Compute(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, report, again)
}

func TestComputeHealthBurnoutHigh(t *testing.T) {
	tests := []struct {
		name   string
		loads  []int
		expect models.BurnoutRisk
	}{
		{"one member over twice the threshold", []int{9, 0, 0, 0}, models.BurnoutHigh},
		{"half the team overloaded", []int{5, 5, 0, 0}, models.BurnoutHigh},
		{"a quarter overloaded", []int{5, 0, 0, 0}, models.BurnoutMedium},
		{"exactly at threshold", []int{4, 4, 4, 4}, models.BurnoutLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestStore(t)
			project := mustProject(t, repo, "Load")
			for i, load := range tt.loads {
				m := mustMember(t, repo, fmt.Sprintf("member %d", i), core.MemberOnline)
				for j := 0; j < load; j++ {
					mustTask(t, repo, core.Task{ProjectID: project.ID, Name: fmt.Sprintf("t%d-%d", i, j), AssigneeID: &m.ID})
				}
			}
			report, err := NewHealthMonitor(repo, 4).Compute(context.Background(), project.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, report.BurnoutRisk)
		})
	}
}

func TestComputeHealthWithoutProjectCoversAllTasks(t *testing.T) {
	repo := newTestStore(t)
	a := mustProject(t, repo, "A")
	b := mustProject(t, repo, "B")
	mustTask(t, repo, core.Task{ProjectID: a.ID, Name: "one", Status: core.StatusDone})
	mustTask(t, repo, core.Task{ProjectID: b.ID, Name: "two"})

	report, err := NewHealthMonitor(repo, 0).Compute(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalTasks)
	assert.Equal(t, 50, report.CompletionRate)
	assert.Equal(t, DefaultOverloadThreshold, report.Threshold)
}
