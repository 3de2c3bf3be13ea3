package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/spaceai-governor/internal/dispatch"
	"github.com/xela07ax/spaceai-governor/internal/domain"
)

type QueueProcessor interface {
	ProcessQueue(ctx context.Context, limit int) (dispatch.BatchResult, error)
}

type TaskTransitioner interface {
	TransitionStatus(ctx context.Context, taskID string, from, to domain.TaskStatus) error
}

type DispatchHandler struct {
	queue QueueProcessor
	tasks TaskTransitioner
}

func NewDispatchHandler(queue QueueProcessor, tasks TaskTransitioner) *DispatchHandler {
	return &DispatchHandler{queue: queue, tasks: tasks}
}

// Run POST /v1/dispatch/run?limit=N
func (h *DispatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "task store is not configured")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	res, err := h.queue.ProcessQueue(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type transitionRequest struct {
	From domain.TaskStatus `json:"from"`
	To   domain.TaskStatus `json:"to"`
}

// Transition POST /v1/tasks/{id}/transition
func (h *DispatchHandler) Transition(w http.ResponseWriter, r *http.Request) {
	if h.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "task store is not configured")
		return
	}
	var body transitionRequest
	if !decode(w, r, &body) {
		return
	}

	if err := h.tasks.TransitionStatus(r.Context(), chi.URLParam(r, "id"), body.From, body.To); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
