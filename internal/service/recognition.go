package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jsmcel/guideitor/internal/classifier"
	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/jsmcel/guideitor/internal/model"
	"github.com/jsmcel/guideitor/internal/tenant"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var (
	ErrTenantUnknown       = errors.New("unknown tenant")
	ErrRecognitionDisabled = errors.New("recognition disabled for tenant")
	ErrImageEmpty          = errors.New("image is required")
	ErrImageInvalid        = errors.New("image could not be decoded")
	ErrNoModel             = errors.New("no model available for tenant")
)

// unknownLabel is the catch-all class present in every tenant's label set.
// A confident hit on it means the camera saw something outside the catalog,
// so it is reported as an unknown rather than a match.
const unknownLabel = "otros"

// RecognitionResult is a classification plus serving metadata. NotInCatalog
// marks a confident hit on the catch-all class, meaning the camera saw
// something real that just is not a catalog piece.
type RecognitionResult struct {
	domain.ClassificationResult
	NotInCatalog   bool  `json:"not_in_catalog,omitempty"`
	Cached         bool  `json:"cached"`
	ResponseTimeMS int64 `json:"response_time_ms"`
}

type RecognitionService struct {
	registry   *tenant.Registry
	provider   domain.ModelProvider
	analytics  domain.AnalyticsStore
	cache      *gocache.Cache
	thresholds domain.Thresholds
	logger     *zap.Logger
}

func NewRecognitionService(registry *tenant.Registry, provider domain.ModelProvider, analytics domain.AnalyticsStore, thresholds domain.Thresholds, cacheTTL time.Duration, logger *zap.Logger) *RecognitionService {
	return &RecognitionService{
		registry:   registry,
		provider:   provider,
		analytics:  analytics,
		cache:      gocache.New(cacheTTL, 2*cacheTTL),
		thresholds: thresholds,
		logger:     logger,
	}
}

// Recognize runs the full vision path for one image: tenant gate, cache
// lookup, model cascade, unknown-class mapping, analytics. Identical images
// from the same tenant are served from cache without touching the models.
func (s *RecognitionService) Recognize(ctx context.Context, tenantID, sessionID string, imageData []byte) (*RecognitionResult, error) {
	start := time.Now()

	t, err := s.registry.Get(tenantID)
	if err != nil {
		return nil, ErrTenantUnknown
	}
	if !t.RecognitionEnabled() {
		return nil, ErrRecognitionDisabled
	}
	if len(imageData) == 0 {
		return nil, ErrImageEmpty
	}

	key := cacheKey(tenantID, imageData)
	if hit, ok := s.cache.Get(key); ok {
		cached := hit.(RecognitionResult)
		cached.Cached = true
		cached.ResponseTimeMS = time.Since(start).Milliseconds()
		return &cached, nil
	}

	primary, secondary, err := s.provider.Resolve(ctx, tenantID)
	if err != nil {
		if errors.Is(err, model.ErrModelUnavailable) {
			return nil, ErrNoModel
		}
		return nil, err
	}

	th := s.effectiveThresholds(t)
	if th.Similarity > 0 {
		primary = overrideThreshold(primary, th.Similarity)
	}
	if th.SimilaritySecondary > 0 {
		secondary = overrideThreshold(secondary, th.SimilaritySecondary)
	}

	cls := classifier.New(th.Suggestion, th.TopNSuggestions, s.logger)
	result, err := cls.Classify(ctx, imageData, primary, secondary)
	if err != nil {
		var perr *classifier.PreprocessingError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("%w: %s", ErrImageInvalid, perr.Reason)
		}
		return nil, err
	}

	notInCatalog := mapUnknownClass(result)
	recognitionResults.WithLabelValues(tenantID, string(result.Kind), string(result.ModelUsed)).Inc()
	recognitionDuration.WithLabelValues(tenantID).Observe(time.Since(start).Seconds())

	out := RecognitionResult{
		ClassificationResult: *result,
		NotInCatalog:         notInCatalog,
	}
	s.cache.Set(key, out, gocache.DefaultExpiration)
	s.recordRecognition(tenantID, sessionID, result, time.Since(start))

	out.ResponseTimeMS = time.Since(start).Milliseconds()
	return &out, nil
}

// InvalidateModels drops the cached model handles and predictions for a
// tenant so updated model files are picked up.
func (s *RecognitionService) InvalidateModels(tenantID string) {
	s.provider.Invalidate(tenantID)
	s.cache.Flush()
}

func (s *RecognitionService) effectiveThresholds(t *domain.Tenant) domain.Thresholds {
	th := s.thresholds
	if t.Thresholds == nil {
		return th
	}
	if t.Thresholds.Similarity > 0 {
		th.Similarity = t.Thresholds.Similarity
	}
	if t.Thresholds.SimilaritySecondary > 0 {
		th.SimilaritySecondary = t.Thresholds.SimilaritySecondary
	}
	if t.Thresholds.Suggestion > 0 {
		th.Suggestion = t.Thresholds.Suggestion
	}
	if t.Thresholds.TopNSuggestions > 0 {
		th.TopNSuggestions = t.Thresholds.TopNSuggestions
	}
	return th
}

func (s *RecognitionService) recordRecognition(tenantID, sessionID string, result *domain.ClassificationResult, elapsed time.Duration) {
	if s.analytics == nil {
		return
	}
	event := &domain.RecognitionEvent{
		TenantID:       tenantID,
		SessionID:      sessionID,
		PieceName:      result.PredictedLabel,
		Confidence:     result.Confidence,
		Kind:           result.Kind,
		ResponseTimeMS: elapsed.Milliseconds(),
	}
	if result.ModelUsed == domain.ModelSecondary {
		event.FallbackUsed = string(domain.ModelSecondary)
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.analytics.RecordRecognition(ctx, event); err != nil {
			s.logger.Warn("failed to record recognition event",
				zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}()
}

// mapUnknownClass demotes a confident hit on the catch-all class to an
// unknown result and strips the class from any suggestion list. It reports
// whether the image was confidently identified as outside the catalog.
func mapUnknownClass(result *domain.ClassificationResult) bool {
	if result.Kind == domain.ResultConfident && result.PredictedLabel == unknownLabel {
		result.Kind = domain.ResultUnknown
		result.PredictedLabel = ""
		return true
	}
	if result.Kind != domain.ResultSuggestions {
		return false
	}
	kept := result.Suggestions[:0]
	for _, sg := range result.Suggestions {
		if sg.Label != unknownLabel {
			kept = append(kept, sg)
		}
	}
	result.Suggestions = kept
	if len(result.Suggestions) == 0 {
		result.Kind = domain.ResultUnknown
		result.PredictedLabel = ""
	}
	return false
}

func cacheKey(tenantID string, imageData []byte) string {
	sum := md5.Sum(imageData)
	return tenantID + ":" + hex.EncodeToString(sum[:])
}

// thresholdOverride swaps a model's confidence gate for a tenant-specific
// one without reloading the session.
type thresholdOverride struct {
	domain.InferenceModel
	threshold float64
}

func (o *thresholdOverride) Threshold() float64 { return o.threshold }

func overrideThreshold(m domain.InferenceModel, threshold float64) domain.InferenceModel {
	if m == nil {
		return nil
	}
	if m.Threshold() == threshold {
		return m
	}
	return &thresholdOverride{InferenceModel: m, threshold: threshold}
}
