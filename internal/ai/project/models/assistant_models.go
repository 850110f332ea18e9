package models

import (
	core "github.com/Jamolkhon5/pmagent/internal/models"
)

// Intent - назначение команды пользователя, выбирает ветку обработки.
type Intent string

const (
	IntentProjectCreation    Intent = "project_creation"
	IntentBulkTaskCreation   Intent = "bulk_task_creation"
	IntentSingleTaskCreation Intent = "single_task_creation"
	IntentTaskModification   Intent = "task_modification"
	IntentProjectHealth      Intent = "project_health"
	IntentUnknown            Intent = "unknown"
)

// CreatesTasks сообщает, ведет ли намерение к генерации задач.
func (i Intent) CreatesTasks() bool {
	return i == IntentProjectCreation || i == IntentBulkTaskCreation || i == IntentSingleTaskCreation
}

// Plan - черновик проекта от модели. До проверки в хранилище не попадает.
type Plan struct {
	ProjectName string      `json:"project_name,omitempty"`
	Overview    string      `json:"overview,omitempty"`
	Tasks       []TaskDraft `json:"tasks"`
	// Question заполняется, если модель просит уточнение вместо задач.
	Question string `json:"question,omitempty"`
}

type TaskDraft struct {
	Name                string   `json:"name"`
	Description         string   `json:"description,omitempty"`
	Priority            string   `json:"priority,omitempty"`
	Assignee            string   `json:"assignee,omitempty"`
	AssignmentReasoning string   `json:"assignment_reasoning,omitempty"`
	EstimatedHours      *float64 `json:"estimated_hours,omitempty"`
	SubTasks            []string `json:"sub_tasks,omitempty"`
}

type Operation string

const (
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Action - структурированная команда изменения задачи.
// Fields содержит только известные атрибуты задачи: name, description, status, priority, assignee.
type Action struct {
	Operation       Operation         `json:"operation"`
	TargetReference string            `json:"target_reference"`
	Fields          map[string]string `json:"fields,omitempty"`
}

type BurnoutRisk string

const (
	BurnoutLow    BurnoutRisk = "Low"
	BurnoutMedium BurnoutRisk = "Medium"
	BurnoutHigh   BurnoutRisk = "High"
)

// Rank упорядочивает уровни риска для сравнения.
func (b BurnoutRisk) Rank() int {
	switch b {
	case BurnoutMedium:
		return 1
	case BurnoutHigh:
		return 2
	}
	return 0
}

// MemberLoad - число активных задач участника.
type MemberLoad struct {
	MemberID    string            `json:"member_id"`
	Name        string            `json:"name"`
	Status      core.MemberStatus `json:"status"`
	ActiveTasks int               `json:"active_tasks"`
}

// AgentStatus описывает состояние агента для /agent/status.
type AgentStatus struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Store    string `json:"store"`
}

// Capability описывает одну возможность агента и ключевые слова, которые к ней ведут.
type Capability struct {
	Intent   Intent   `json:"intent"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
	Examples []string `json:"examples"`
	// NeedsProject - требуется ли project_id в контексте.
	NeedsProject bool `json:"needs_project"`
}
