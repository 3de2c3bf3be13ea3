package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/spaceai-governor/internal/domain"
	"github.com/xela07ax/spaceai-governor/internal/schedule"
)

type MilestoneRefresher interface {
	Refresh(ctx context.Context, id string, spec domain.RecurrenceSpec, now time.Time) (*time.Time, error)
}

type ScheduleHandler struct {
	refresher MilestoneRefresher
	loc       *time.Location
	now       func() time.Time
}

func NewScheduleHandler(refresher MilestoneRefresher, loc *time.Location) *ScheduleHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleHandler{refresher: refresher, loc: loc, now: time.Now}
}

type nextRunRequest struct {
	domain.RecurrenceSpec
	Now *time.Time `json:"now,omitempty"`
}

type nextRunResponse struct {
	NextRun *time.Time `json:"next_run"`
}

// NextRun POST /v1/schedule/next-run
// Некорректное расписание дает next_run: null, а не ошибку.
func (h *ScheduleHandler) NextRun(w http.ResponseWriter, r *http.Request) {
	var body nextRunRequest
	if !decode(w, r, &body) {
		return
	}

	now := h.now().In(h.loc)
	if body.Now != nil {
		now = *body.Now
	}

	var resp nextRunResponse
	if next, ok := schedule.NextRun(body.RecurrenceSpec, now); ok {
		resp.NextRun = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateRecurrence PUT /v1/milestones/{id}/recurrence
func (h *ScheduleHandler) UpdateRecurrence(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "milestone store is not configured")
		return
	}
	var spec domain.RecurrenceSpec
	if !decode(w, r, &spec) {
		return
	}

	next, err := h.refresher.Refresh(r.Context(), chi.URLParam(r, "id"), spec, h.now().In(h.loc))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nextRunResponse{NextRun: next})
}
