package prompts

import (
	"fmt"
	"strings"

	core "github.com/Jamolkhon5/pmagent/internal/models"
)

// TokenCounter оценивает длину текста в токенах.
type TokenCounter interface {
	Count(text string) int
}

// SystemPersona задается системным сообщением для всех вызовов модели.
const SystemPersona = "You are an expert Project Manager AI working inside a project-management tool. Follow output format instructions exactly."

const planTemplate = `You are an expert Project Manager AI. Generate a project plan from the following brief.

Brief: %s

Team Members (with Status):
%s

RULES:
- Match tasks to roles and skills.
- Avoid assigning work to members who are "Busy" or "Offline" or already have many active tasks, unless it is critical. If you do, explain why in assignment_reasoning.
- Use the member initials or name for "assignee", or leave it empty.

Return the plan as a JSON object with this schema:
{
  "project_name": "string",
  "overview": "string",
  "tasks": [
    {
      "name": "string",
      "description": "string",
      "priority": "high|medium|low",
      "estimated_hours": number,
      "assignee": "string",
      "assignment_reasoning": "string",
      "sub_tasks": ["string"]
    }
  ]
}

Return ONLY valid JSON, no markdown or additional text.`

const taskListTemplate = `You are a compassionate and strategic Head of Engineering. Generate a JSON list of tasks while caring for your team's well-being.

Goal: %s
Context: %s

Team Members (with Status):
%s

Existing Tasks (do not duplicate these):
%s

Conversation History:
%s

INSTRUCTIONS:
1. Analyze the Goal, Context, Team Members, Existing Tasks and History.
2. Check member status (Online vs Busy vs Offline) and active task counts. Avoid overloading busy members. If you assign a task to a busy member, explain why in assignment_reasoning.
3. Match tasks to roles (e.g. frontend tasks to frontend developers).
4. %s
5. If team roles or priorities are missing AND history is empty, you MAY return {"question": "..."} instead. If history is not empty you MUST generate the tasks.

OUTPUT FORMAT (JSON ONLY):
{
  "tasks": [
    {
      "name": "Task Name",
      "description": "Brief description",
      "priority": "high|medium|low",
      "estimated_hours": number,
      "assignee": "Member initials or name",
      "assignment_reasoning": "Why this person",
      "sub_tasks": ["Subtask 1", "Subtask 2"]
    }
  ]
}

Return ONLY valid JSON. No markdown, no conversational text outside the JSON.`

const modificationTemplate = `You are an expert Project Manager AI. Interpret a request to MODIFY or DELETE a task.

Request: %s

Current Tasks:
%s

Team Members:
%s

INSTRUCTIONS:
1. Identify the operation: "update" or "delete".
2. Identify the target task. Use a distinctive part of its name as target_reference.
3. For "update", include only the changed fields. Allowed fields: name, description, status, priority, assignee.
   - status: "To Do", "In Progress", "Done"
   - priority: "low", "medium", "high"
   - assignee: member initials or name, or "none" to unassign

OUTPUT FORMAT (JSON ONLY):
{
  "operation": "update|delete",
  "target_reference": "Name of the task",
  "fields": {"status": "Done"}
}

Return ONLY valid JSON.`

const narrationTemplate = `You are a compassionate and strategic Head of Engineering.
Summarize the result of an action taken by the AI agent in a friendly, professional, human-like message.

Action: %s
Succeeded: %t
Result Data: %s
User's Original Request: %s

INSTRUCTIONS:
1. Speak like a colleague, not a machine. Do NOT use JSON or code blocks.
2. Be empathetic. If someone is overloaded, mention it with concern.
3. Be transparent. If the result contains "AI Reasoning", include it.
4. If the action failed, say so plainly and suggest what the user can try.
5. Keep it to a few sentences.

Generate the response now:`

// PlanInput - данные для промпта создания проекта.
type PlanInput struct {
	Utterance string
	Team      []core.TeamMember
}

func PlanPrompt(in PlanInput) string {
	return fmt.Sprintf(planTemplate, in.Utterance, FormatTeam(in.Team))
}

// TaskListInput - данные для промпта генерации задач в существующем проекте.
type TaskListInput struct {
	Utterance string
	Project   core.Project
	Team      []core.TeamMember
	Existing  []core.Task
	History   []core.Message
	// Single просит ровно одну задачу.
	Single bool
	Budget int
}

func TaskListPrompt(in TaskListInput, counter TokenCounter) string {
	context := fmt.Sprintf("Project: %s", in.Project.Name)
	if in.Project.Description != "" {
		context += "\nDescription: " + in.Project.Description
	}
	scope := "Break the goal down into a focused list of tasks."
	if in.Single {
		scope = "The user asked for a single task: return exactly one task."
	}
	return fmt.Sprintf(taskListTemplate,
		in.Utterance,
		context,
		FormatTeam(in.Team),
		FormatTasks(in.Existing, counter, in.Budget),
		FormatHistory(in.History),
		scope,
	)
}

// ModificationInput - данные для промпта изменения задачи.
type ModificationInput struct {
	Utterance string
	Tasks     []core.Task
	Team      []core.TeamMember
	Budget    int
}

func ModificationPrompt(in ModificationInput, counter TokenCounter) string {
	return fmt.Sprintf(modificationTemplate, in.Utterance, FormatTasks(in.Tasks, counter, in.Budget), FormatTeam(in.Team))
}

// NarrationPrompt встраивает итог в инструкцию рассказчика. resultJSON - уже сериализованный итог.
func NarrationPrompt(action string, succeeded bool, resultJSON, utterance string) string {
	return fmt.Sprintf(narrationTemplate, action, succeeded, resultJSON, utterance)
}

// FormatTeam выводит участников с ролью, статусом и числом активных задач.
func FormatTeam(team []core.TeamMember) string {
	if len(team) == 0 {
		return "No team members registered."
	}
	var b strings.Builder
	for _, m := range team {
		role := m.Role
		if role == "" {
			role = "Unspecified role"
		}
		fmt.Fprintf(&b, "- %s (%s) [id: %s]: %s, status: %s, active tasks: %d\n",
			m.Name, m.Initials(), m.ID, role, memberStatusLabel(m.Status), m.ActiveTasks)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatTasks выводит задачи по одной на строку, пока укладывается в бюджет токенов.
// budget <= 0 или nil counter снимают ограничение.
func FormatTasks(tasks []core.Task, counter TokenCounter, budget int) string {
	if len(tasks) == 0 {
		return "None."
	}
	var b strings.Builder
	used := 0
	for i, t := range tasks {
		line := fmt.Sprintf("- %s [id: %s] status: %s, priority: %s\n", t.Name, t.ID, t.Status.Label(), t.Priority)
		if counter != nil && budget > 0 {
			cost := counter.Count(line)
			if used+cost > budget {
				fmt.Fprintf(&b, "... and %d more tasks\n", len(tasks)-i)
				break
			}
			used += cost
		}
		b.WriteString(line)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatHistory выводит присланную клиентом историю диалога.
func FormatHistory(history []core.Message) string {
	if len(history) == 0 {
		return "None."
	}
	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func memberStatusLabel(s core.MemberStatus) string {
	switch s {
	case core.MemberOnline:
		return "Online"
	case core.MemberBusy:
		return "Busy"
	case core.MemberOffline:
		return "Offline"
	}
	return "Unknown"
}
