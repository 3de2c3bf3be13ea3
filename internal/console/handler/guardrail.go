package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/spaceai-governor/internal/domain"
	"github.com/xela07ax/spaceai-governor/internal/guardrail"
)

type TrustProvider interface {
	Get(ctx context.Context, orgID string) (domain.TrustConfig, error)
}

type GuardrailHandler struct {
	evaluator *guardrail.Evaluator
	limits    *guardrail.LimitChecker
	trust     TrustProvider
}

func NewGuardrailHandler(evaluator *guardrail.Evaluator, limits *guardrail.LimitChecker, trust TrustProvider) *GuardrailHandler {
	return &GuardrailHandler{evaluator: evaluator, limits: limits, trust: trust}
}

type filterRequest struct {
	OrganizationID string              `json:"organization_id"`
	Requests       []guardrail.Request `json:"requests"`
}

// Evaluate POST /v1/guardrails/evaluate
// Отказ политики это нормальный ответ 200 с allowed=false.
func (h *GuardrailHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req guardrail.Request
	if !decode(w, r, &req) {
		return
	}
	if req.OrganizationID == "" || req.ActionID == "" {
		writeError(w, http.StatusBadRequest, "organization_id and action_id are required")
		return
	}

	cfg, err := h.trust.Get(r.Context(), req.OrganizationID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.evaluator.Evaluate(r.Context(), req, cfg))
}

// Filter POST /v1/guardrails/filter
func (h *GuardrailHandler) Filter(w http.ResponseWriter, r *http.Request) {
	var body filterRequest
	if !decode(w, r, &body) {
		return
	}
	if body.OrganizationID == "" {
		writeError(w, http.StatusBadRequest, "organization_id is required")
		return
	}

	cfg, err := h.trust.Get(r.Context(), body.OrganizationID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	for i := range body.Requests {
		body.Requests[i].OrganizationID = body.OrganizationID
	}
	writeJSON(w, http.StatusOK, h.evaluator.FilterRequests(r.Context(), body.Requests, cfg))
}

// Limits GET /v1/organizations/{org}/limits
func (h *GuardrailHandler) Limits(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "org")

	cfg, err := h.trust.Get(r.Context(), orgID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.limits.CheckHardLimits(r.Context(), cfg, orgID))
}
