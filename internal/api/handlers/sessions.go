package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jsmcel/guideitor/internal/api/middleware"
	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/jsmcel/guideitor/internal/service"
)

type SessionHandler struct {
	svc *service.SessionService
}

func NewSessionHandler(svc *service.SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type createSessionRequest struct {
	Mode domain.Mode `json:"mode,omitempty"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFromContext(r.Context())

	var req createSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	info, err := h.svc.Create(r.Context(), t.ID, req.Mode)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Close(chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type locationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PostLocation feeds one GPS fix and returns the resulting decision, if any.
func (h *SessionHandler) PostLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision, err := h.svc.PostLocation(r.Context(), chi.URLParam(r, "id"),
		domain.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeDecision(w, decision)
}

type playbackRequest struct {
	IsPlaying bool `json:"is_playing"`
}

func (h *SessionHandler) PostPlayback(w http.ResponseWriter, r *http.Request) {
	var req playbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision, err := h.svc.PostPlayback(r.Context(), chi.URLParam(r, "id"), req.IsPlaying)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeDecision(w, decision)
}

type modeRequest struct {
	Mode domain.Mode `json:"mode"`
}

func (h *SessionHandler) PostMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.PostMode(r.Context(), chi.URLParam(r, "id"), req.Mode); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(req.Mode)})
}

type selectRequest struct {
	LandmarkID string `json:"landmark_id"`
}

func (h *SessionHandler) PostSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision, err := h.svc.PostSelect(r.Context(), chi.URLParam(r, "id"), req.LandmarkID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeDecision(w, decision)
}

func writeDecision(w http.ResponseWriter, decision *domain.ActivationDecision) {
	if decision == nil {
		writeJSON(w, http.StatusOK, map[string]any{"decision": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decision": decision})
}

func (h *SessionHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, service.ErrTenantUnknown):
		writeError(w, http.StatusNotFound, "unknown tenant")
	case errors.Is(err, service.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrLandmarkNotFound):
		writeError(w, http.StatusNotFound, "landmark not found")
	case errors.Is(err, service.ErrNoCatalog):
		writeError(w, http.StatusNotFound, "tenant has no landmark catalog")
	default:
		writeError(w, http.StatusInternalServerError, "session operation failed")
	}
}
