package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Jamolkhon5/pmagent/internal/ai/project/models"
	core "github.com/Jamolkhon5/pmagent/internal/models"
)

// Assistant - агент, которому хендлер передает команды.
type Assistant interface {
	HandleMessage(ctx context.Context, req core.AgentRequest) core.AgentResponse
	Capabilities() []models.Capability
	Status() models.AgentStatus
}

type ProjectAssistantHandler struct {
	assistant Assistant
	logger    *slog.Logger
}

func NewProjectAssistantHandler(assistant Assistant, logger *slog.Logger) *ProjectAssistantHandler {
	return &ProjectAssistantHandler{assistant: assistant, logger: logger}
}

// executeRequest принимает и prompt, и utterance; project_id можно передать в context или на верхнем уровне.
type executeRequest struct {
	Prompt    string `json:"prompt"`
	Utterance string `json:"utterance"`
	ProjectID string `json:"project_id"`
	Context   struct {
		ProjectID string `json:"project_id"`
	} `json:"context"`
	History []core.Message `json:"history"`
}

func (h *ProjectAssistantHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	utterance := strings.TrimSpace(req.Utterance)
	if utterance == "" {
		utterance = strings.TrimSpace(req.Prompt)
	}
	if utterance == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	projectID := req.Context.ProjectID
	if projectID == "" {
		projectID = req.ProjectID
	}

	resp := h.assistant.HandleMessage(r.Context(), core.AgentRequest{
		Utterance: utterance,
		ProjectID: projectID,
		History:   req.History,
	})
	writeJSON(w, http.StatusOK, resp, h.logger)
}

func (h *ProjectAssistantHandler) Capabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"capabilities": h.assistant.Capabilities(),
		"fallback":     models.IntentProjectCreation,
		"note":         "Requests without a recognized keyword create a new project.",
	}, h.logger)
}

func (h *ProjectAssistantHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.assistant.Status(), h.logger)
}

// RegisterRoutes регистрирует маршруты агента
func (h *ProjectAssistantHandler) RegisterRoutes(r chi.Router) {
	r.Route("/agent", func(r chi.Router) {
		r.Post("/execute", h.Execute)
		r.Get("/capabilities", h.Capabilities)
		r.Get("/status", h.Status)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && logger != nil {
		logger.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg}, nil)
}
