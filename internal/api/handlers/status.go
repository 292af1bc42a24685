package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jsmcel/guideitor/internal/api/middleware"
	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/jsmcel/guideitor/internal/service"
	"github.com/jsmcel/guideitor/internal/tenant"
)

type StatusHandler struct {
	registry *tenant.Registry
	provider domain.ModelProvider
	landmark *service.LandmarkService
}

func NewStatusHandler(registry *tenant.Registry, provider domain.ModelProvider, landmark *service.LandmarkService) *StatusHandler {
	return &StatusHandler{registry: registry, provider: provider, landmark: landmark}
}

// TenantConfig exposes the resolved tenant configuration to the frontend.
func (h *StatusHandler) TenantConfig(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFromContext(r.Context())
	writeJSON(w, http.StatusOK, t)
}

func (h *StatusHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tenants": h.registry.List()})
}

type statusResponse struct {
	TenantID           string `json:"tenant_id"`
	Mode               string `json:"mode"`
	PrimaryModelLoaded bool   `json:"primary_model_loaded"`
	SecondaryModel     bool   `json:"secondary_model_loaded"`
	Landmarks          int    `json:"landmarks"`
}

// Status reports model and catalog readiness for the resolved tenant.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFromContext(r.Context())
	resp := statusResponse{TenantID: t.ID, Mode: string(t.Mode)}

	if t.RecognitionEnabled() {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()
		primary, secondary, err := h.provider.Resolve(ctx, t.ID)
		if err == nil {
			resp.PrimaryModelLoaded = primary != nil
			resp.SecondaryModel = secondary != nil
		}
	}

	if landmarks, err := h.landmark.All(t.ID); err == nil {
		resp.Landmarks = len(landmarks)
	}

	writeJSON(w, http.StatusOK, resp)
}
