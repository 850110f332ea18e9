package models

import (
	"strings"
	"time"
)

// Project представляет проект. Список задач вычисляется при чтении.
type Project struct {
	ID          string    `json:"id" db:"id"`
	Key         string    `json:"key" db:"key"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	TaskIDs     []string  `json:"task_ids" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TeamMember представляет участника команды.
// ActiveTasks не хранится: считается по таблице задач при каждом чтении.
type TeamMember struct {
	ID          string       `json:"id" db:"id"`
	Name        string       `json:"name" db:"name"`
	Role        string       `json:"role" db:"role"`
	Status      MemberStatus `json:"status" db:"status"`
	ActiveTasks int          `json:"active_tasks" db:"active_tasks"`
}

type MemberStatus string

const (
	MemberOnline  MemberStatus = "online"
	MemberBusy    MemberStatus = "busy"
	MemberOffline MemberStatus = "offline"
)

// ParseMemberStatus приводит произвольную запись статуса к одному из трех значений.
func ParseMemberStatus(s string) (MemberStatus, bool) {
	switch normalizeWord(s) {
	case "online", "available", "active":
		return MemberOnline, true
	case "busy", "away":
		return MemberBusy, true
	case "offline", "off":
		return MemberOffline, true
	}
	return "", false
}

// Initials возвращает первые буквы слов имени: "Alice Smith" -> "AS".
func (m TeamMember) Initials() string {
	var b strings.Builder
	for _, part := range strings.Fields(m.Name) {
		r := []rune(part)
		b.WriteString(strings.ToUpper(string(r[0])))
	}
	return b.String()
}
