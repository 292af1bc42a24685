package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/jsmcel/guideitor/internal/api/middleware"
	"github.com/jsmcel/guideitor/internal/service"
)

type AnalyticsHandler struct {
	svc *service.AnalyticsService
}

func NewAnalyticsHandler(svc *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// Summary aggregates a tenant's recognition and activation traffic. The
// since parameter accepts RFC 3339 and defaults to the last 30 days.
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFromContext(r.Context())

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		since = parsed
	}

	summary, err := h.svc.Summary(r.Context(), t.ID, since)
	if err != nil {
		if errors.Is(err, service.ErrTenantUnknown) {
			writeError(w, http.StatusNotFound, "unknown tenant")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
