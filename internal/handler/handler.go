package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Jamolkhon5/pmagent/internal/models"
	"github.com/Jamolkhon5/pmagent/internal/repository"
)

// Handler - CRUD-доступ к проектам, задачам и команде без дополнительной логики.
type Handler struct {
	repo   *repository.Repository
	logger *slog.Logger
}

func NewHandler(repo *repository.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/projects", h.ListProjects)
		r.Post("/projects", h.CreateProject)
		r.Get("/projects/{id}", h.GetProject)
		r.Get("/projects/{id}/tasks", h.ListProjectTasks)

		r.Get("/tasks", h.ListTasks)
		r.Post("/tasks", h.CreateTask)
		r.Get("/tasks/{id}", h.GetTask)
		r.Patch("/tasks/{id}", h.UpdateTask)
		r.Delete("/tasks/{id}", h.DeleteTask)

		r.Get("/team", h.ListTeam)
		r.Post("/team", h.CreateTeamMember)
	})
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.repo.ListProjects(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	h.writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.badRequest(w, "name is required")
		return
	}
	project, err := h.repo.CreateProject(r.Context(), models.Project{Name: req.Name, Description: req.Description})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, project)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.repo.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, project)
}

func (h *Handler) ListProjectTasks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.repo.GetProject(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	h.listTasks(w, r, id)
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	h.listTasks(w, r, r.URL.Query().Get("project_id"))
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request, projectID string) {
	tasks, err := h.repo.ListTasks(r.Context(), projectID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	h.writeJSON(w, http.StatusOK, tasks)
}

type taskRequest struct {
	ProjectID      string   `json:"project_id"`
	ParentID       *string  `json:"parent_id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Status         string   `json:"status"`
	Priority       string   `json:"priority"`
	AssigneeID     *string  `json:"assignee_id"`
	EstimatedHours *float64 `json:"estimated_hours"`
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}
	if req.ProjectID == "" || strings.TrimSpace(req.Name) == "" {
		h.badRequest(w, "project_id and name are required")
		return
	}

	task := models.Task{
		ProjectID:      req.ProjectID,
		ParentID:       req.ParentID,
		Name:           req.Name,
		Description:    req.Description,
		AssigneeID:     req.AssigneeID,
		EstimatedHours: req.EstimatedHours,
	}
	if req.Status != "" {
		s, ok := models.ParseTaskStatus(req.Status)
		if !ok {
			h.badRequest(w, "unknown status "+req.Status)
			return
		}
		task.Status = s
	}
	if req.Priority != "" {
		p, ok := models.ParsePriority(req.Priority)
		if !ok {
			h.badRequest(w, "unknown priority "+req.Priority)
			return
		}
		task.Priority = p
	}

	created, err := h.repo.CreateTask(r.Context(), task)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.repo.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

// UpdateTask - частичное обновление, в том числе перенос между колонками доски.
// "assignee_id": "" снимает исполнителя.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
		Priority    *string `json:"priority"`
		AssigneeID  *string `json:"assignee_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	upd := models.TaskUpdate{Name: req.Name, Description: req.Description}
	if req.Status != nil {
		s, ok := models.ParseTaskStatus(*req.Status)
		if !ok {
			h.badRequest(w, "unknown status "+*req.Status)
			return
		}
		upd.Status = &s
	}
	if req.Priority != nil {
		p, ok := models.ParsePriority(*req.Priority)
		if !ok {
			h.badRequest(w, "unknown priority "+*req.Priority)
			return
		}
		upd.Priority = &p
	}
	if req.AssigneeID != nil {
		if *req.AssigneeID == "" {
			upd.ClearAssignee = true
		} else {
			upd.AssigneeID = req.AssigneeID
		}
	}
	if upd.Empty() {
		h.badRequest(w, "nothing to update")
		return
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		h.badRequest(w, "name must not be empty")
		return
	}

	task, err := h.repo.UpdateTask(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListTeam(w http.ResponseWriter, r *http.Request) {
	members, err := h.repo.ListTeamMembers(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if members == nil {
		members = []models.TeamMember{}
	}
	h.writeJSON(w, http.StatusOK, members)
}

func (h *Handler) CreateTeamMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Role   string `json:"role"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.badRequest(w, "name is required")
		return
	}
	member := models.TeamMember{Name: req.Name, Role: req.Role}
	if req.Status != "" {
		s, ok := models.ParseMemberStatus(req.Status)
		if !ok {
			h.badRequest(w, "unknown status "+req.Status)
			return
		}
		member.Status = s
	}

	created, err := h.repo.CreateTeamMember(r.Context(), member)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, repository.ErrConstraint):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		h.logger.Error("store request failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}
