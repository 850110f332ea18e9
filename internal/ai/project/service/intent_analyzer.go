package service

import (
	"strings"

	"github.com/Jamolkhon5/pmagent/internal/ai/project/models"
)

var (
	modificationWords = []string{"update", "change", "move", "delete", "remove", "reassign"}
	healthWords       = []string{"status", "health", "how is", "progress", "burnout"}
	bulkTaskWords     = []string{"create tasks", "generate tasks", "to do list", "todo list", "tasks for"}
	singleTaskWords   = []string{"add task", "create task", "new task", "task for", "create a task", "add a task"}
	projectWords      = []string{"create project", "new project", "build a", "generate plan"}
)

// intentRule - одно правило маршрутизации. Правила проверяются по порядку, первое совпадение побеждает.
type intentRule struct {
	intent models.Intent
	match  func(msg string, hasProject bool) bool
}

type IntentAnalyzer struct {
	rules []intentRule
}

func NewIntentAnalyzer() *IntentAnalyzer {
	return &IntentAnalyzer{
		rules: []intentRule{
			{models.IntentTaskModification, keywords(modificationWords)},
			{models.IntentProjectHealth, keywords(healthWords)},
			{models.IntentBulkTaskCreation, func(msg string, hasProject bool) bool {
				return hasProject && containsAny(msg, bulkTaskWords)
			}},
			{models.IntentSingleTaskCreation, keywords(singleTaskWords)},
			{models.IntentProjectCreation, keywords(projectWords)},
		},
	}
}

// Classify определяет намерение по ключевым словам без учета регистра.
// Сообщение без известных ключевых слов считается просьбой создать проект.
func (ia *IntentAnalyzer) Classify(utterance string, hasProject bool) models.Intent {
	msg := strings.ToLower(utterance)
	for _, r := range ia.rules {
		if r.match(msg, hasProject) {
			return r.intent
		}
	}
	return models.IntentProjectCreation
}

// Capabilities описывает правила для клиентов в порядке приоритета.
func (ia *IntentAnalyzer) Capabilities() []models.Capability {
	return []models.Capability{
		{
			Intent:       models.IntentTaskModification,
			Name:         "Update or delete a task",
			Keywords:     modificationWords,
			Examples:     []string{"Move the login page task to done", "Delete the payment gateway task"},
			NeedsProject: false,
		},
		{
			Intent:   models.IntentProjectHealth,
			Name:     "Project health and team workload",
			Keywords: healthWords,
			Examples: []string{"How is the project doing?", "Is anyone at risk of burnout?"},
		},
		{
			Intent:       models.IntentBulkTaskCreation,
			Name:         "Generate a task list for the current project",
			Keywords:     bulkTaskWords,
			Examples:     []string{"Create tasks for the checkout flow"},
			NeedsProject: true,
		},
		{
			Intent:   models.IntentSingleTaskCreation,
			Name:     "Add a single task",
			Keywords: singleTaskWords,
			Examples: []string{"Add a task to implement password reset"},
		},
		{
			Intent:   models.IntentProjectCreation,
			Name:     "Create a project with a full plan (default for unrecognized requests)",
			Keywords: projectWords,
			Examples: []string{"Create project for a food delivery app", "Build a landing page"},
		},
	}
}

func keywords(words []string) func(string, bool) bool {
	return func(msg string, _ bool) bool {
		return containsAny(msg, words)
	}
}

func containsAny(message string, words []string) bool {
	for _, word := range words {
		if strings.Contains(message, word) {
			return true
		}
	}
	return false
}
