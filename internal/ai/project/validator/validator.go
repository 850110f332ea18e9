package validator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Jamolkhon5/pmagent/internal/ai/project/models"
	core "github.com/Jamolkhon5/pmagent/internal/models"
)

var fenceRegex = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

const (
	MaxNameLength        = 200
	MaxDescriptionLength = 5000
)

// Допустимые поля действия update.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldAssignee    = "assignee"
)

var allowedFields = map[string]bool{
	FieldName:        true,
	FieldDescription: true,
	FieldStatus:      true,
	FieldPriority:    true,
	FieldAssignee:    true,
}

// ExtractJSON вынимает JSON-объект из ответа модели: из блока ```json или между первой { и последней }.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if m := fenceRegex.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", &models.ValidationError{Reason: "response contains no JSON object"}
	}
	raw := text[start : end+1]
	if !gjson.Valid(raw) {
		return "", &models.ValidationError{Reason: "response is not valid JSON"}
	}
	return raw, nil
}

// ParsePlan проверяет план от модели. Задачи без имени, отсутствующий или не списочный tasks - ошибка.
// Ответ с непустым question возвращается как план без задач.
func ParsePlan(text string) (models.Plan, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return models.Plan{}, err
	}
	doc := gjson.Parse(raw)

	if q := strings.TrimSpace(doc.Get("question").String()); q != "" && !doc.Get("tasks").Exists() {
		return models.Plan{Question: q}, nil
	}

	tasks := doc.Get("tasks")
	if !tasks.Exists() {
		return models.Plan{}, &models.ValidationError{Field: "tasks", Reason: "missing"}
	}
	if !tasks.IsArray() {
		return models.Plan{}, &models.ValidationError{Field: "tasks", Reason: "must be a list"}
	}

	plan := models.Plan{
		ProjectName: truncate(strings.TrimSpace(doc.Get("project_name").String()), MaxNameLength),
		Overview:    strings.TrimSpace(doc.Get("overview").String()),
	}
	for i, item := range tasks.Array() {
		draft, err := parseDraft(item)
		if err != nil {
			prefix := "tasks[" + strconv.Itoa(i) + "]"
			if err.Field != "" {
				prefix += "." + err.Field
			}
			err.Field = prefix
			return models.Plan{}, err
		}
		plan.Tasks = append(plan.Tasks, draft)
	}
	return plan, nil
}

func parseDraft(item gjson.Result) (models.TaskDraft, *models.ValidationError) {
	if !item.IsObject() {
		return models.TaskDraft{}, &models.ValidationError{Reason: "task must be an object"}
	}
	name := item.Get("name")
	if name.Type != gjson.String || strings.TrimSpace(name.String()) == "" {
		return models.TaskDraft{}, &models.ValidationError{Field: "name", Reason: "missing"}
	}

	draft := models.TaskDraft{
		Name:                truncate(strings.TrimSpace(name.String()), MaxNameLength),
		Description:         truncate(strings.TrimSpace(item.Get("description").String()), MaxDescriptionLength),
		Priority:            strings.TrimSpace(item.Get("priority").String()),
		Assignee:            scalarString(item.Get("assignee")),
		AssignmentReasoning: strings.TrimSpace(item.Get("assignment_reasoning").String()),
	}
	if h, ok := number(item.Get("estimated_hours")); ok && h >= 0 {
		draft.EstimatedHours = &h
	}
	for _, sub := range item.Get("sub_tasks").Array() {
		var subName string
		if sub.IsObject() {
			subName = sub.Get("name").String()
		} else if sub.Type == gjson.String {
			subName = sub.String()
		}
		if subName = strings.TrimSpace(subName); subName != "" {
			draft.SubTasks = append(draft.SubTasks, truncate(subName, MaxNameLength))
		}
	}
	return draft, nil
}

// ParseAction проверяет команду изменения задачи.
// Понимает и исходные ключи (operation, target_reference, fields), и альтернативные (action, target_task_name, updates).
func ParseAction(text string) (models.Action, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return models.Action{}, err
	}
	doc := gjson.Parse(raw)

	op := models.Operation(strings.ToLower(strings.TrimSpace(first(doc, "operation", "action").String())))
	switch op {
	case models.OperationUpdate, models.OperationDelete:
	case "":
		return models.Action{}, &models.ValidationError{Field: "operation", Reason: "missing"}
	default:
		return models.Action{}, &models.ValidationError{Field: "operation", Reason: "unsupported value " + strconv.Quote(string(op))}
	}

	action := models.Action{
		Operation:       op,
		TargetReference: strings.TrimSpace(first(doc, "target_reference", "target_task_name", "target").String()),
	}
	if action.TargetReference == "" {
		return models.Action{}, &models.ValidationError{Field: "target_reference", Reason: "missing"}
	}
	if op == models.OperationDelete {
		return action, nil
	}

	fields := first(doc, "fields", "updates")
	if !fields.IsObject() {
		return models.Action{}, &models.ValidationError{Field: "fields", Reason: "must be an object"}
	}
	action.Fields = make(map[string]string)
	var fieldErr *models.ValidationError
	fields.ForEach(func(key, value gjson.Result) bool {
		k := strings.ToLower(strings.TrimSpace(key.String()))
		if !allowedFields[k] {
			fieldErr = &models.ValidationError{Field: "fields." + key.String(), Reason: "unknown task attribute"}
			return false
		}
		action.Fields[k] = scalarString(value)
		return true
	})
	if fieldErr != nil {
		return models.Action{}, fieldErr
	}
	if len(action.Fields) == 0 {
		return models.Action{}, &models.ValidationError{Field: "fields", Reason: "update changes nothing"}
	}
	return action, nil
}

// BuildUpdate превращает поля действия в TaskUpdate. Исполнитель возвращается отдельно как
// необработанная ссылка: его разрешает вызывающий по списку команды.
func BuildUpdate(fields map[string]string) (core.TaskUpdate, *string, error) {
	var upd core.TaskUpdate
	var assignee *string

	for k, v := range fields {
		v := strings.TrimSpace(v)
		switch k {
		case FieldName:
			if v == "" {
				return core.TaskUpdate{}, nil, &models.ValidationError{Field: "fields.name", Reason: "must not be empty"}
			}
			v = truncate(v, MaxNameLength)
			upd.Name = &v
		case FieldDescription:
			v = truncate(v, MaxDescriptionLength)
			upd.Description = &v
		case FieldStatus:
			s, ok := core.ParseTaskStatus(v)
			if !ok {
				return core.TaskUpdate{}, nil, &models.ValidationError{Field: "fields.status", Reason: "unknown status " + strconv.Quote(v)}
			}
			upd.Status = &s
		case FieldPriority:
			p, ok := core.ParsePriority(v)
			if !ok {
				return core.TaskUpdate{}, nil, &models.ValidationError{Field: "fields.priority", Reason: "unknown priority " + strconv.Quote(v)}
			}
			upd.Priority = &p
		case FieldAssignee:
			assignee = &v
		default:
			return core.TaskUpdate{}, nil, &models.ValidationError{Field: "fields." + k, Reason: "unknown task attribute"}
		}
	}
	return upd, assignee, nil
}

// IsUnassign сообщает, что ссылка на исполнителя означает снятие назначения.
func IsUnassign(ref string) bool {
	switch strings.ToLower(strings.TrimSpace(ref)) {
	case "", "none", "null", "nobody", "unassigned", "no one":
		return true
	}
	return false
}

func first(doc gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if r := doc.Get(k); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

func scalarString(r gjson.Result) string {
	switch r.Type {
	case gjson.String, gjson.Number, gjson.True, gjson.False:
		return strings.TrimSpace(r.String())
	}
	return ""
}

func number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Float(), true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.String()), 64)
		return f, err == nil
	}
	return 0, false
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
