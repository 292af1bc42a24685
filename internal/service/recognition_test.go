package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/jsmcel/guideitor/internal/model"
	"github.com/jsmcel/guideitor/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testLabels = []string{"locomotora_030", "vagon_correo", "grua_taller", "otros"}

func newTestRegistry(t *testing.T) *tenant.Registry {
	t.Helper()
	dir := t.TempDir()
	writeTenant(t, dir, "museo_ferrocarril",
		`{"name": "Museo del Ferrocarril", "frontendMode": "vision"}`, "")
	writeTenant(t, dir, "parque_europa",
		`{"name": "Parque Europa", "frontendMode": "gps", "triggerRadiusMeters": 50}`,
		`{
			"monuments": {
				"torre_eiffel": {
					"name": "Torre Eiffel",
					"coordinates": {"latitude": 40.4238, "longitude": -3.4606}
				},
				"puerta_brandeburgo": {
					"name": "Puerta de Brandeburgo",
					"coordinates": {"latitude": 40.4245, "longitude": -3.4622}
				}
			}
		}`)
	r, err := tenant.NewRegistry(dir, 35, zap.NewNop())
	require.NoError(t, err)
	return r
}

func writeTenant(t *testing.T, dir, id, config, coordinates string) {
	t.Helper()
	tenantDir := filepath.Join(dir, id)
	require.NoError(t, os.MkdirAll(tenantDir, 0o755))
	if config != "" {
		require.NoError(t, os.WriteFile(filepath.Join(tenantDir, "config.json"), []byte(config), 0o644))
	}
	if coordinates != "" {
		require.NoError(t, os.WriteFile(filepath.Join(tenantDir, "coordinates.json"), []byte(coordinates), 0o644))
	}
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 130, B: 140, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type stubModel struct {
	role      domain.ModelRole
	labels    []string
	threshold float64
	logits    []float32
	err       error
	calls     int32
}

func (m *stubModel) Role() domain.ModelRole { return m.role }
func (m *stubModel) Labels() []string       { return m.labels }
func (m *stubModel) InputSize() int         { return 16 }
func (m *stubModel) Threshold() float64     { return m.threshold }

func (m *stubModel) Run(ctx context.Context, input []float32) ([]float32, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return nil, m.err
	}
	return m.logits, nil
}

type stubProvider struct {
	primary   domain.InferenceModel
	secondary domain.InferenceModel
	err       error
	resolves  int32
}

func (p *stubProvider) Resolve(ctx context.Context, tenantID string) (domain.InferenceModel, domain.InferenceModel, error) {
	atomic.AddInt32(&p.resolves, 1)
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.primary, p.secondary, nil
}

func (p *stubProvider) Invalidate(tenantID string) {}

type captureAnalytics struct {
	recognitions chan *domain.RecognitionEvent
	activations  chan *domain.ActivationEvent
}

func newCaptureAnalytics() *captureAnalytics {
	return &captureAnalytics{
		recognitions: make(chan *domain.RecognitionEvent, 8),
		activations:  make(chan *domain.ActivationEvent, 8),
	}
}

func (a *captureAnalytics) RecordRecognition(ctx context.Context, e *domain.RecognitionEvent) error {
	a.recognitions <- e
	return nil
}

func (a *captureAnalytics) RecordActivation(ctx context.Context, e *domain.ActivationEvent) error {
	a.activations <- e
	return nil
}

func (a *captureAnalytics) Summary(ctx context.Context, tenantID string, since time.Time) (*domain.AnalyticsSummary, error) {
	return &domain.AnalyticsSummary{TenantID: tenantID}, nil
}

func defaultThresholds() domain.Thresholds {
	return domain.Thresholds{
		Similarity:          0.8,
		SimilaritySecondary: 0.7,
		Suggestion:          0.3,
		TopNSuggestions:     3,
	}
}

func newRecognitionService(t *testing.T, provider domain.ModelProvider, analytics domain.AnalyticsStore) *RecognitionService {
	t.Helper()
	return NewRecognitionService(newTestRegistry(t), provider, analytics, defaultThresholds(), time.Minute, zap.NewNop())
}

func TestRecognize_ConfidentMatch(t *testing.T) {
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, logits: []float32{5, 0, 0, 0}}
	provider := &stubProvider{primary: primary}
	analytics := newCaptureAnalytics()
	svc := newRecognitionService(t, provider, analytics)

	result, err := svc.Recognize(context.Background(), "museo_ferrocarril", "sess-1", pngImage(t))
	require.NoError(t, err)

	assert.Equal(t, domain.ResultConfident, result.Kind)
	assert.Equal(t, "locomotora_030", result.PredictedLabel)
	assert.Greater(t, result.Confidence, 0.9)
	assert.False(t, result.Cached)

	select {
	case e := <-analytics.recognitions:
		assert.Equal(t, "museo_ferrocarril", e.TenantID)
		assert.Equal(t, "sess-1", e.SessionID)
		assert.Equal(t, "locomotora_030", e.PieceName)
		assert.Empty(t, e.FallbackUsed)
	case <-time.After(2 * time.Second):
		t.Fatal("recognition event was not recorded")
	}
}

func TestRecognize_SecondCallServedFromCache(t *testing.T) {
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, logits: []float32{5, 0, 0, 0}}
	provider := &stubProvider{primary: primary}
	svc := newRecognitionService(t, provider, nil)

	img := pngImage(t)
	first, err := svc.Recognize(context.Background(), "museo_ferrocarril", "", img)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := svc.Recognize(context.Background(), "museo_ferrocarril", "", img)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.PredictedLabel, second.PredictedLabel)
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.resolves))
}

func TestRecognize_UnknownClassMappedToNone(t *testing.T) {
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, logits: []float32{0, 0, 0, 6}}
	svc := newRecognitionService(t, &stubProvider{primary: primary}, nil)

	result, err := svc.Recognize(context.Background(), "museo_ferrocarril", "", pngImage(t))
	require.NoError(t, err)

	assert.Equal(t, domain.ResultUnknown, result.Kind)
	assert.Empty(t, result.PredictedLabel)
	assert.True(t, result.NotInCatalog)
}

func TestRecognize_UnknownClassStrippedFromSuggestions(t *testing.T) {
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, logits: []float32{0, 0, 0, 1}}
	svc := newRecognitionService(t, &stubProvider{primary: primary}, nil)

	result, err := svc.Recognize(context.Background(), "museo_ferrocarril", "", pngImage(t))
	require.NoError(t, err)

	require.Equal(t, domain.ResultSuggestions, result.Kind)
	for _, sg := range result.Suggestions {
		assert.NotEqual(t, "otros", sg.Label)
	}
	assert.NotEmpty(t, result.Suggestions)
}

func TestRecognize_SecondaryFallbackRecorded(t *testing.T) {
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, logits: []float32{1, 0.5, 0, -3}}
	secondary := &stubModel{role: domain.ModelSecondary, labels: testLabels, threshold: 0.7, logits: []float32{6, 0, 0, 0}}
	analytics := newCaptureAnalytics()
	svc := newRecognitionService(t, &stubProvider{primary: primary, secondary: secondary}, analytics)

	result, err := svc.Recognize(context.Background(), "museo_ferrocarril", "", pngImage(t))
	require.NoError(t, err)

	assert.Equal(t, domain.ResultConfident, result.Kind)
	assert.Equal(t, domain.ModelSecondary, result.ModelUsed)

	select {
	case e := <-analytics.recognitions:
		assert.Equal(t, "secondary", e.FallbackUsed)
	case <-time.After(2 * time.Second):
		t.Fatal("recognition event was not recorded")
	}
}

func TestRecognize_UnknownTenant(t *testing.T) {
	svc := newRecognitionService(t, &stubProvider{}, nil)

	_, err := svc.Recognize(context.Background(), "nope", "", pngImage(t))
	assert.ErrorIs(t, err, ErrTenantUnknown)
}

func TestRecognize_GPSTenantRejected(t *testing.T) {
	svc := newRecognitionService(t, &stubProvider{}, nil)

	_, err := svc.Recognize(context.Background(), "parque_europa", "", pngImage(t))
	assert.ErrorIs(t, err, ErrRecognitionDisabled)
}

func TestRecognize_EmptyImage(t *testing.T) {
	svc := newRecognitionService(t, &stubProvider{}, nil)

	_, err := svc.Recognize(context.Background(), "museo_ferrocarril", "", nil)
	assert.ErrorIs(t, err, ErrImageEmpty)
}

func TestRecognize_InvalidImage(t *testing.T) {
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, logits: []float32{5, 0, 0, 0}}
	svc := newRecognitionService(t, &stubProvider{primary: primary}, nil)

	_, err := svc.Recognize(context.Background(), "museo_ferrocarril", "", []byte("not an image"))
	assert.ErrorIs(t, err, ErrImageInvalid)
}

func TestRecognize_NoModelsAvailable(t *testing.T) {
	svc := newRecognitionService(t, &stubProvider{err: model.ErrModelUnavailable}, nil)

	_, err := svc.Recognize(context.Background(), "museo_ferrocarril", "", pngImage(t))
	assert.ErrorIs(t, err, ErrNoModel)
}
