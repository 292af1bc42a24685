package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jsmcel/guideitor/internal/api/middleware"
	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/jsmcel/guideitor/internal/service"
)

// maxImageBytes caps uploads at 10 MiB, well above any phone camera frame.
const maxImageBytes = 10 << 20

type RecognizeHandler struct {
	svc *service.RecognitionService
}

func NewRecognizeHandler(svc *service.RecognitionService) *RecognizeHandler {
	return &RecognizeHandler{svc: svc}
}

type recognizeRequest struct {
	Image     string `json:"image"`
	SessionID string `json:"session_id,omitempty"`
}

type recognitionResultBody struct {
	PieceName    string  `json:"pieceName"`
	Confidence   float64 `json:"confidence"`
	FallbackUsed string  `json:"fallbackUsed,omitempty"`
}

type suggestionBody struct {
	PieceName  string  `json:"pieceName"`
	Confidence float64 `json:"confidence"`
}

type recognizeResponse struct {
	Success           bool                   `json:"success"`
	LowConfidence     bool                   `json:"low_confidence"`
	Message           string                 `json:"message,omitempty"`
	NotATrain         bool                   `json:"not_a_train,omitempty"`
	Suggestions       []suggestionBody       `json:"suggestions,omitempty"`
	RecognitionResult *recognitionResultBody `json:"recognitionResult,omitempty"`
	Cached            bool                   `json:"cached,omitempty"`
	ResponseTimeMS    int64                  `json:"response_time_ms"`
}

// Recognize accepts an image as a multipart form file or a base64 JSON field
// and runs it through the classification cascade.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFromContext(r.Context())
	if t == nil {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}

	imageData, sessionID, err := readImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Recognize(r.Context(), t.ID, sessionID, imageData)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRecognitionDisabled):
			writeError(w, http.StatusMethodNotAllowed, "recognition is not available for this tenant")
		case errors.Is(err, service.ErrImageEmpty), errors.Is(err, service.ErrImageInvalid):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrNoModel):
			writeError(w, http.StatusServiceUnavailable, "recognition model not loaded")
		case errors.Is(err, service.ErrTenantUnknown):
			writeError(w, http.StatusNotFound, "unknown tenant")
		default:
			writeError(w, http.StatusInternalServerError, "recognition failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, toRecognizeResponse(result))
}

// InvalidateModels drops cached model handles so a redeployed model file is
// picked up without a restart.
func (h *RecognizeHandler) InvalidateModels(w http.ResponseWriter, r *http.Request) {
	t := middleware.TenantFromContext(r.Context())
	if t == nil {
		writeError(w, http.StatusNotFound, "unknown tenant")
		return
	}
	h.svc.InvalidateModels(t.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated", "tenant_id": t.ID})
}

func toRecognizeResponse(result *service.RecognitionResult) *recognizeResponse {
	resp := &recognizeResponse{
		Cached:         result.Cached,
		ResponseTimeMS: result.ResponseTimeMS,
	}

	switch result.Kind {
	case domain.ResultConfident:
		resp.Success = true
		resp.RecognitionResult = &recognitionResultBody{
			PieceName:  result.PredictedLabel,
			Confidence: result.Confidence,
		}
		if result.ModelUsed == domain.ModelSecondary {
			resp.RecognitionResult.FallbackUsed = "secondary_model"
		}

	case domain.ResultSuggestions:
		resp.LowConfidence = true
		resp.Message = "La confianza es baja. ¿Es alguno de estos?"
		for _, sg := range result.Suggestions {
			resp.Suggestions = append(resp.Suggestions, suggestionBody{
				PieceName:  sg.Label,
				Confidence: sg.Probability,
			})
		}
		resp.RecognitionResult = &recognitionResultBody{
			PieceName:  result.PredictedLabel,
			Confidence: result.Confidence,
		}

	default:
		if result.NotInCatalog {
			resp.NotATrain = true
			resp.Message = "La imagen no parece ser una pieza del catálogo."
		} else {
			resp.Message = "No se pudo identificar la pieza con suficiente confianza."
		}
	}
	return resp
}

func readImage(r *http.Request) ([]byte, string, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			return nil, "", errors.New("invalid multipart form")
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, "", errors.New("image file is required")
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
		if err != nil {
			return nil, "", errors.New("failed to read image")
		}
		return data, r.FormValue("session_id"), nil
	}

	var req recognizeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxImageBytes)).Decode(&req); err != nil {
		return nil, "", errors.New("invalid request body")
	}
	encoded := req.Image
	if idx := strings.Index(encoded, ";base64,"); idx >= 0 {
		encoded = encoded[idx+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", errors.New("image is not valid base64")
	}
	return data, req.SessionID, nil
}
