package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/Jamolkhon5/pmagent/internal/config"
	core "github.com/Jamolkhon5/pmagent/internal/models"
	"github.com/Jamolkhon5/pmagent/internal/repository"
	"github.com/Jamolkhon5/pmagent/internal/tokenizer"
)

// stubCompleter отдает заготовленные ответы по порядку и запоминает промпты.
type stubCompleter struct {
	mu      sync.Mutex
	replies []stubReply
	prompts []string
	temps   []float64
}

type stubReply struct {
	text string
	err  error
}

func newStub(replies ...stubReply) *stubCompleter {
	return &stubCompleter{replies: replies}
}

func reply(text string) stubReply { return stubReply{text: text} }
func fail(err error) stubReply    { return stubReply{err: err} }

func (s *stubCompleter) Complete(_ context.Context, prompt string, temperature float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	s.temps = append(s.temps, temperature)
	if len(s.replies) == 0 {
		return "", errors.New("stub: no reply scripted")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.text, r.err
}

func (s *stubCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func newTestStore(t *testing.T) *repository.Repository {
	t.Helper()
	db, err := sqlx.Connect("sqlite", config.SQLiteDSN(filepath.Join(t.TempDir(), "agent.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := repository.NewRepository(db, 8)
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	return Options{
		PlanTemperature:      0.1,
		NarrationTemperature: 0.7,
		OverloadThreshold:    4,
		PromptTokenBudget:    2000,
	}
}

// failingStore отказывает на n-м создании задачи (с 1).
type failingStore struct {
	Store
	failOn int
	count  int
}

func (f *failingStore) CreateTask(ctx context.Context, t core.Task) (core.Task, error) {
	f.count++
	if f.count == f.failOn {
		return core.Task{}, repository.ErrConstraint
	}
	return f.Store.CreateTask(ctx, t)
}

func mustProject(t *testing.T, store Store, name string) core.Project {
	t.Helper()
	p, err := store.CreateProject(context.Background(), core.Project{Name: name})
	require.NoError(t, err)
	return p
}

func mustTask(t *testing.T, store Store, task core.Task) core.Task {
	t.Helper()
	created, err := store.CreateTask(context.Background(), task)
	require.NoError(t, err)
	return created
}

func mustMember(t *testing.T, repo *repository.Repository, name string, status core.MemberStatus) core.TeamMember {
	t.Helper()
	m, err := repo.CreateTeamMember(context.Background(), core.TeamMember{Name: name, Role: "Engineer", Status: status})
	require.NoError(t, err)
	return m
}

var heuristic = tokenizer.Heuristic()
