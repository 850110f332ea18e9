package service

import (
	"context"
	"math"
	"sort"

	"github.com/Jamolkhon5/pmagent/internal/ai/project/models"
	core "github.com/Jamolkhon5/pmagent/internal/models"
)

// HealthMonitor считает метрики без обращения к модели.
type HealthMonitor struct {
	store     Store
	threshold int
}

func NewHealthMonitor(store Store, threshold int) *HealthMonitor {
	if threshold <= 0 {
		threshold = DefaultOverloadThreshold
	}
	return &HealthMonitor{store: store, threshold: threshold}
}

// Compute строит отчет по задачам проекта (по всем задачам, если projectID пуст).
//
// Активные задачи участника - назначенные ему задачи в статусе todo или in_progress.
// Перегружен тот, у кого активных больше порога. Риск выгорания:
// High - у кого-то активных больше двух порогов или перегружена хотя бы половина команды;
// Medium - есть перегруженные; иначе Low.
func (h *HealthMonitor) Compute(ctx context.Context, projectID string) (models.HealthReport, error) {
	tasks, err := h.store.ListTasks(ctx, projectID)
	if err != nil {
		return models.HealthReport{}, &models.StoreError{Op: "list tasks", Err: err}
	}
	team, err := h.store.ListTeamMembers(ctx)
	if err != nil {
		return models.HealthReport{}, &models.StoreError{Op: "list team", Err: err}
	}

	report := models.HealthReport{
		ProjectID:         projectID,
		TotalTasks:        len(tasks),
		Members:           make([]models.MemberLoad, 0, len(team)),
		OverloadedMembers: []string{},
		BurnoutRisk:       models.BurnoutLow,
		Threshold:         h.threshold,
	}

	active := make(map[string]int)
	for _, t := range tasks {
		switch t.Status {
		case core.StatusTodo:
			report.TodoTasks++
		case core.StatusInProgress:
			report.InProgressTasks++
		case core.StatusDone:
			report.DoneTasks++
		}
		if t.AssigneeID != nil && t.Status.Active() {
			active[*t.AssigneeID]++
		}
	}
	if report.TotalTasks > 0 {
		report.CompletionRate = int(math.Round(100 * float64(report.DoneTasks) / float64(report.TotalTasks)))
	}

	maxActive := 0
	for _, m := range team {
		n := active[m.ID]
		report.Members = append(report.Members, models.MemberLoad{
			MemberID:    m.ID,
			Name:        m.Name,
			Status:      m.Status,
			ActiveTasks: n,
		})
		if n > h.threshold {
			report.OverloadedMembers = append(report.OverloadedMembers, m.Name)
		}
		if n > maxActive {
			maxActive = n
		}
	}
	sort.SliceStable(report.Members, func(i, j int) bool {
		if report.Members[i].Name != report.Members[j].Name {
			return report.Members[i].Name < report.Members[j].Name
		}
		return report.Members[i].MemberID < report.Members[j].MemberID
	})
	sort.Strings(report.OverloadedMembers)

	overloaded := len(report.OverloadedMembers)
	switch {
	case maxActive > 2*h.threshold, overloaded > 0 && 2*overloaded >= len(team):
		report.BurnoutRisk = models.BurnoutHigh
	case overloaded > 0:
		report.BurnoutRisk = models.BurnoutMedium
	}
	return report, nil
}
