package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jsmcel/guideitor/internal/api/middleware"
	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/jsmcel/guideitor/internal/service"
)

type EmbeddingsHandler struct {
	svc *service.EmbeddingService
}

func NewEmbeddingsHandler(svc *service.EmbeddingService) *EmbeddingsHandler {
	return &EmbeddingsHandler{svc: svc}
}

type importEmbeddingsRequest struct {
	Embeddings []domain.ReferenceEmbedding `json:"embeddings"`
}

func (h *EmbeddingsHandler) Import(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFromContext(r.Context())

	var req importEmbeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Embeddings) == 0 {
		writeError(w, http.StatusBadRequest, "embeddings are required")
		return
	}

	n, err := h.svc.Import(r.Context(), t.ID, req.Embeddings)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imported": n})
}

type similarRequest struct {
	Embedding []float32 `json:"embedding"`
	Limit     int       `json:"limit,omitempty"`
}

// Similar ranks catalog pieces by similarity to a probe embedding. A
// diagnostic endpoint used when tuning the recognition dataset.
func (h *EmbeddingsHandler) Similar(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFromContext(r.Context())

	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	scores, err := h.svc.Similar(r.Context(), t.ID, req.Embedding, req.Limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pieces": scores})
}

func (h *EmbeddingsHandler) Count(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFromContext(r.Context())
	count, err := h.svc.Count(r.Context(), t.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *EmbeddingsHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTenantUnknown):
		writeError(w, http.StatusNotFound, "unknown tenant")
	case errors.Is(err, service.ErrLabelEmpty),
		errors.Is(err, service.ErrEmbeddingEmpty),
		errors.Is(err, service.ErrEmbeddingMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "embedding operation failed")
	}
}
