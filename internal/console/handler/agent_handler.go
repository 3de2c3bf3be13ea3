package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type AgentController interface {
	PauseAgent(ctx context.Context, agentID string) error
	ResumeAgent(ctx context.Context, agentID string) error
}

type AgentHandler struct {
	service AgentController
}

func NewAgentHandler(s AgentController) *AgentHandler {
	return &AgentHandler{service: s}
}

// Pause POST /v1/agents/{id}/pause
// Ждем и БД, и сигнал, чтобы ответ означал реальную остановку диспетчеризации.
func (h *AgentHandler) Pause(w http.ResponseWriter, r *http.Request) {
	if err := h.service.PauseAgent(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Resume POST /v1/agents/{id}/resume
func (h *AgentHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResumeAgent(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
