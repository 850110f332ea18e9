package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Jamolkhon5/pmagent/internal/models"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrConstraint = errors.New("constraint violation")
)

const defaultCacheSize = 256

type Repository struct {
	db *sqlx.DB
	// метаданные проекта после создания не меняются, поэтому их можно кешировать
	projects *lru.Cache[string, models.Project]
}

func NewRepository(db *sqlx.DB, cacheSize int) (*Repository, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, models.Project](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create project cache: %w", err)
	}
	return &Repository{db: db, projects: cache}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id          TEXT PRIMARY KEY,
    key         TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS team_members (
    id     TEXT PRIMARY KEY,
    name   TEXT NOT NULL,
    role   TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'online'
);

CREATE TABLE IF NOT EXISTS tasks (
    id              TEXT PRIMARY KEY,
    project_id      TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    parent_id       TEXT REFERENCES tasks(id) ON DELETE CASCADE,
    name            TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'todo',
    priority        TEXT NOT NULL DEFAULT 'medium',
    assignee_id     TEXT REFERENCES team_members(id) ON DELETE SET NULL,
    estimated_hours DOUBLE PRECISION,
    created_at      TIMESTAMP NOT NULL,
    updated_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);
`

// Migrate создает таблицы, если их еще нет.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	p.ID = uuid.NewString()
	p.Name = strings.TrimSpace(p.Name)
	if p.Key == "" {
		p.Key = projectKey(p.Name)
	}
	p.CreatedAt = time.Now().UTC()
	p.TaskIDs = []string{}

	query := r.db.Rebind(`
        INSERT INTO projects (id, key, name, description, created_at)
        VALUES (?, ?, ?, ?, ?)`)

	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Key, p.Name, p.Description, p.CreatedAt); err != nil {
		return models.Project{}, fmt.Errorf("insert project: %w", mapError(err))
	}
	r.projects.Add(p.ID, p)
	return p, nil
}

func (r *Repository) GetProject(ctx context.Context, id string) (models.Project, error) {
	project, ok := r.projects.Get(id)
	if !ok {
		query := r.db.Rebind(`
            SELECT id, key, name, description, created_at
            FROM projects
            WHERE id = ?`)
		if err := r.db.GetContext(ctx, &project, query, id); err != nil {
			return models.Project{}, fmt.Errorf("get project %s: %w", id, mapError(err))
		}
		r.projects.Add(id, project)
	}

	var taskIDs []string
	query := r.db.Rebind(`SELECT id FROM tasks WHERE project_id = ? ORDER BY created_at, id`)
	if err := r.db.SelectContext(ctx, &taskIDs, query, id); err != nil {
		return models.Project{}, fmt.Errorf("list project tasks %s: %w", id, mapError(err))
	}
	if taskIDs == nil {
		taskIDs = []string{}
	}
	project.TaskIDs = taskIDs
	return project, nil
}

func (r *Repository) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.SelectContext(ctx, &projects, `
        SELECT id, key, name, description, created_at
        FROM projects
        ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", mapError(err))
	}
	return projects, nil
}

const taskColumns = `id, project_id, parent_id, name, description, status, priority,
    assignee_id, estimated_hours, created_at, updated_at`

// CreateTask сохраняет задачу. Несуществующий проект дает ErrConstraint.
func (r *Repository) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	now := time.Now().UTC()
	t.ID = uuid.NewString()
	t.Name = strings.TrimSpace(t.Name)
	if t.Status == "" {
		t.Status = models.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	t.CreatedAt = now
	t.UpdatedAt = now

	query := r.db.Rebind(`
        INSERT INTO tasks (` + taskColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.ProjectID, nullString(t.ParentID), t.Name, t.Description, string(t.Status), string(t.Priority),
		nullString(t.AssigneeID), nullFloat(t.EstimatedHours), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task %q: %w", t.Name, mapError(err))
	}
	return t, nil
}

func (r *Repository) GetTask(ctx context.Context, id string) (models.Task, error) {
	var task models.Task
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`)
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		return models.Task{}, fmt.Errorf("get task %s: %w", id, mapError(err))
	}
	return task, nil
}

// ListTasks возвращает задачи проекта, а при пустом projectID - все задачи.
func (r *Repository) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	var (
		tasks []models.Task
		err   error
	)
	if projectID == "" {
		err = r.db.SelectContext(ctx, &tasks, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at, id`)
	} else {
		query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE project_id = ? ORDER BY created_at, id`)
		err = r.db.SelectContext(ctx, &tasks, query, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", mapError(err))
	}
	return tasks, nil
}

// UpdateTask применяет частичное обновление. Конкурентные изменения одной строки: побеждает последняя запись.
func (r *Repository) UpdateTask(ctx context.Context, id string, upd models.TaskUpdate) (models.Task, error) {
	var (
		sets []string
		args []any
	)
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*upd.Name))
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*upd.Priority))
	}
	if upd.ClearAssignee {
		sets = append(sets, "assignee_id = NULL")
	} else if upd.AssigneeID != nil {
		sets = append(sets, "assignee_id = ?")
		args = append(args, *upd.AssigneeID)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	query := r.db.Rebind(`UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task %s: %w", id, mapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Task{}, fmt.Errorf("update task %s: %w", id, ErrNotFound)
	}
	return r.GetTask(ctx, id)
}

func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, mapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *Repository) CreateTeamMember(ctx context.Context, m models.TeamMember) (models.TeamMember, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = models.MemberOnline
	}
	query := r.db.Rebind(`INSERT INTO team_members (id, name, role, status) VALUES (?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, m.ID, strings.TrimSpace(m.Name), m.Role, string(m.Status)); err != nil {
		return models.TeamMember{}, fmt.Errorf("insert team member %q: %w", m.Name, mapError(err))
	}
	m.ActiveTasks = 0
	return m, nil
}

// ListTeamMembers возвращает команду с количеством активных задач, посчитанным в момент запроса.
func (r *Repository) ListTeamMembers(ctx context.Context) ([]models.TeamMember, error) {
	var members []models.TeamMember
	err := r.db.SelectContext(ctx, &members, `
        SELECT m.id, m.name, m.role, m.status, COUNT(t.id) AS active_tasks
        FROM team_members m
        LEFT JOIN tasks t ON t.assignee_id = m.id AND t.status IN ('todo', 'in_progress')
        GROUP BY m.id, m.name, m.role, m.status
        ORDER BY m.name, m.id`)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", mapError(err))
	}
	return members, nil
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return fmt.Errorf("%w: %s", ErrConstraint, pqErr.Message)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %s", ErrConstraint, liteErr.Error())
	}
	return err
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// projectKey строит короткий ключ вида SHOP-1A2B.
func projectKey(name string) string {
	var prefix []rune
	for _, r := range strings.ToUpper(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			prefix = append(prefix, r)
		}
		if len(prefix) == 4 {
			break
		}
	}
	if len(prefix) == 0 {
		prefix = []rune("PROJ")
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return string(prefix) + "-" + suffix
}
