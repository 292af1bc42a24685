package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jsmcel/guideitor/internal/api/middleware"
	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/jsmcel/guideitor/internal/service"
)

type CoordinatesHandler struct {
	svc *service.LandmarkService
}

func NewCoordinatesHandler(svc *service.LandmarkService) *CoordinatesHandler {
	return &CoordinatesHandler{svc: svc}
}

func (h *CoordinatesHandler) All(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFromContext(r.Context())
	landmarks, err := h.svc.All(t.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": t.ID,
		"count":     len(landmarks),
		"monuments": landmarks,
	})
}

func (h *CoordinatesHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFromContext(r.Context())
	lm, err := h.svc.Get(t.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lm)
}

// Nearest returns the closest landmark to lat/lng, plus whether it falls
// inside the tenant's trigger radius (or an explicit radius override).
func (h *CoordinatesHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFromContext(r.Context())

	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusBadRequest, "lat and lng query parameters are required")
		return
	}

	radius := t.TriggerRadiusMeters
	if raw := r.URL.Query().Get("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "radius must be a positive number")
			return
		}
		radius = parsed
	}

	sample, err := h.svc.Nearest(t.ID, domain.Coordinates{Latitude: lat, Longitude: lng})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"monument":        sample.Landmark,
		"distance_meters": sample.DistanceMeters,
		"within_radius":   sample.DistanceMeters <= radius,
	})
}

func (h *CoordinatesHandler) Itinerary(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFromContext(r.Context())
	it, err := h.svc.Itinerary(t.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *CoordinatesHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTenantUnknown):
		writeError(w, http.StatusNotFound, "unknown tenant")
	case errors.Is(err, service.ErrNoCatalog):
		writeError(w, http.StatusNotFound, "tenant has no landmark catalog")
	case errors.Is(err, service.ErrLandmarkNotFound):
		writeError(w, http.StatusNotFound, "landmark not found")
	case errors.Is(err, service.ErrLocationInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to read landmark catalog")
	}
}
