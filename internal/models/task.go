package models

import (
	"strings"
	"time"
)

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// Active сообщает, занимает ли задача исполнителя.
func (s TaskStatus) Active() bool {
	return s == StatusTodo || s == StatusInProgress
}

// Label возвращает название колонки доски.
func (s TaskStatus) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task представляет задачу. Задача всегда принадлежит ровно одному существующему проекту.
type Task struct {
	ID             string     `json:"id" db:"id"`
	ProjectID      string     `json:"project_id" db:"project_id"`
	ParentID       *string    `json:"parent_id,omitempty" db:"parent_id"`
	Name           string     `json:"name" db:"name"`
	Description    string     `json:"description" db:"description"`
	Status         TaskStatus `json:"status" db:"status"`
	Priority       Priority   `json:"priority" db:"priority"`
	AssigneeID     *string    `json:"assignee_id,omitempty" db:"assignee_id"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty" db:"estimated_hours"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// TaskUpdate описывает частичное изменение задачи. Nil-поля не меняются.
type TaskUpdate struct {
	Name          *string     `json:"name,omitempty"`
	Description   *string     `json:"description,omitempty"`
	Status        *TaskStatus `json:"status,omitempty"`
	Priority      *Priority   `json:"priority,omitempty"`
	AssigneeID    *string     `json:"assignee_id,omitempty"`
	ClearAssignee bool        `json:"clear_assignee,omitempty"`
}

// Empty сообщает, что обновление ничего не меняет.
func (u TaskUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Status == nil &&
		u.Priority == nil && u.AssigneeID == nil && !u.ClearAssignee
}

// ParseTaskStatus понимает как внутренние значения, так и названия колонок ("To Do", "In Progress").
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch normalizeWord(s) {
	case "todo", "to_do", "backlog", "open", "not_started":
		return StatusTodo, true
	case "in_progress", "inprogress", "doing", "started", "wip":
		return StatusInProgress, true
	case "done", "complete", "completed", "finished", "closed":
		return StatusDone, true
	}
	return "", false
}

// ParsePriority разбирает приоритет без учета регистра.
func ParsePriority(s string) (Priority, bool) {
	switch normalizeWord(s) {
	case "low":
		return PriorityLow, true
	case "medium", "normal", "mid":
		return PriorityMedium, true
	case "high", "urgent", "critical":
		return PriorityHigh, true
	}
	return "", false
}

func normalizeWord(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return s
}
