package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/spaceai-governor/internal/domain"
)

type TrustManager interface {
	Get(ctx context.Context, orgID string) (domain.TrustConfig, error)
	Save(ctx context.Context, cfg domain.TrustConfig) error
}

type TrustHandler struct {
	service TrustManager
}

func NewTrustHandler(s TrustManager) *TrustHandler {
	return &TrustHandler{service: s}
}

// Get GET /v1/organizations/{org}/trust
func (h *TrustHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.Get(r.Context(), chi.URLParam(r, "org"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// Put PUT /v1/organizations/{org}/trust
// Организация берется из пути, поле в теле игнорируется.
func (h *TrustHandler) Put(w http.ResponseWriter, r *http.Request) {
	var cfg domain.TrustConfig
	if !decode(w, r, &cfg) {
		return
	}
	cfg.OrganizationID = chi.URLParam(r, "org")

	if err := h.service.Save(r.Context(), cfg); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
