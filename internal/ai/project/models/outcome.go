package models

import (
	core "github.com/Jamolkhon5/pmagent/internal/models"
)

// Outcome - структурированный итог одной команды, который озвучивает рассказчик.
type Outcome interface {
	// Action - метка для поля action ответа.
	Action() string
	// Succeeded отражает результат изменения данных, а не озвучивания.
	Succeeded() bool
}

// PlanCreated - создан новый проект с задачами.
type PlanCreated struct {
	Project  core.Project `json:"project"`
	Tasks    []core.Task  `json:"tasks"`
	SubTasks []core.Task  `json:"sub_tasks,omitempty"`
	Failed   int          `json:"failed"`
	Error    string       `json:"error,omitempty"`
}

func (PlanCreated) Action() string     { return "create_project" }
func (o PlanCreated) Succeeded() bool { return o.Failed == 0 && o.Error == "" }

// TasksCreated - задачи добавлены в существующий проект.
type TasksCreated struct {
	Project  core.Project `json:"project"`
	Tasks    []core.Task  `json:"tasks"`
	SubTasks []core.Task  `json:"sub_tasks,omitempty"`
	Failed   int          `json:"failed"`
	Error    string       `json:"error,omitempty"`
}

func (TasksCreated) Action() string     { return "create_tasks" }
func (o TasksCreated) Succeeded() bool { return o.Failed == 0 && o.Error == "" }

// TaskModified - изменение применено. After пуст для удаления.
type TaskModified struct {
	Operation Operation  `json:"operation"`
	Before    core.Task  `json:"before"`
	After     *core.Task `json:"after,omitempty"`
}

func (o TaskModified) Action() string { return string(o.Operation) }
func (TaskModified) Succeeded() bool  { return true }

// TaskModificationFailed - ссылка на задачу не разрешилась или действие некорректно.
type TaskModificationFailed struct {
	Reference  string      `json:"reference"`
	Reason     string      `json:"reason"`
	Candidates []core.Task `json:"candidates,omitempty"`
}

func (TaskModificationFailed) Action() string  { return "modify_task" }
func (TaskModificationFailed) Succeeded() bool { return false }

// HealthReport - метрики нагрузки и выполнения по проекту (или по всем задачам).
type HealthReport struct {
	ProjectID         string       `json:"project_id,omitempty"`
	TotalTasks        int          `json:"total_tasks"`
	TodoTasks         int          `json:"todo"`
	InProgressTasks   int          `json:"in_progress"`
	DoneTasks         int          `json:"done"`
	CompletionRate    int          `json:"completion_rate"`
	Members           []MemberLoad `json:"members"`
	OverloadedMembers []string     `json:"overloaded_members"`
	BurnoutRisk       BurnoutRisk  `json:"burnout_risk"`
	Threshold         int          `json:"overload_threshold"`
}

func (HealthReport) Action() string  { return "project_health" }
func (HealthReport) Succeeded() bool { return true }

// ClarificationNeeded - модель просит уточнить запрос, ничего не создано.
type ClarificationNeeded struct {
	Question string `json:"question"`
}

func (ClarificationNeeded) Action() string  { return "clarification_needed" }
func (ClarificationNeeded) Succeeded() bool { return true }

// GenericError - команда не выполнена.
type GenericError struct {
	Intent  Intent `json:"intent"`
	Message string `json:"message"`
}

func (GenericError) Action() string  { return "error" }
func (GenericError) Succeeded() bool { return false }
