package classifier

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubModel struct {
	role      domain.ModelRole
	labels    []string
	threshold float64
	logits    []float32
	err       error
	calls     int
}

func (s *stubModel) Role() domain.ModelRole { return s.role }
func (s *stubModel) Labels() []string       { return s.labels }
func (s *stubModel) InputSize() int         { return 8 }
func (s *stubModel) Threshold() float64     { return s.threshold }

func (s *stubModel) Run(_ context.Context, _ []float32) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.logits, nil
}

var testLabels = []string{"locomotora_030", "vagon_correo", "grua_taller", "otros"}

// logitsFor builds a logit vector whose softmax assigns roughly the target
// probability to the given index.
func logitsFor(winner int, spread float32) []float32 {
	logits := make([]float32, len(testLabels))
	logits[winner] = spread
	return logits
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestClassifier() *Classifier {
	return New(0.3, 3, zap.NewNop())
}

func TestClassify_ConfidentOnPrimary(t *testing.T) {
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, logits: logitsFor(1, 10)}
	secondary := &stubModel{role: domain.ModelSecondary, labels: testLabels, threshold: 0.7, logits: logitsFor(0, 10)}

	res, err := newTestClassifier().Classify(context.Background(), testImage(t), primary, secondary)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultConfident, res.Kind)
	assert.Equal(t, "vagon_correo", res.PredictedLabel)
	assert.Equal(t, domain.ModelPrimary, res.ModelUsed)
	assert.GreaterOrEqual(t, res.Confidence, 0.8)
	assert.Empty(t, res.Suggestions)
	// The rescue path must not run when the primary is confident.
	assert.Equal(t, 0, secondary.calls)
}

func TestClassify_SecondaryRescue(t *testing.T) {
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, logits: logitsFor(0, 1)}
	secondary := &stubModel{role: domain.ModelSecondary, labels: testLabels, threshold: 0.7, logits: logitsFor(2, 10)}

	res, err := newTestClassifier().Classify(context.Background(), testImage(t), primary, secondary)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultConfident, res.Kind)
	assert.Equal(t, "grua_taller", res.PredictedLabel)
	assert.Equal(t, domain.ModelSecondary, res.ModelUsed)
}

func TestClassify_SuggestionsFromBestOfBoth(t *testing.T) {
	// Primary peaks around 0.45, secondary around 0.55: both below their
	// confident thresholds, secondary wins the suggestion band.
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, logits: []float32{1.0, 0.5, 0.2, 0}}
	secondary := &stubModel{role: domain.ModelSecondary, labels: testLabels, threshold: 0.7, logits: []float32{0, 1.5, 0.8, 0.1}}

	res, err := newTestClassifier().Classify(context.Background(), testImage(t), primary, secondary)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSuggestions, res.Kind)
	assert.Equal(t, domain.ModelSecondary, res.ModelUsed)
	require.Len(t, res.Suggestions, 3)
	assert.Equal(t, "vagon_correo", res.Suggestions[0].Label)

	// Sorted descending.
	for i := 1; i < len(res.Suggestions); i++ {
		assert.GreaterOrEqual(t, res.Suggestions[i-1].Probability, res.Suggestions[i].Probability)
	}
}

func TestClassify_UnknownBelowSuggestionThreshold(t *testing.T) {
	// Uniform output: confidence 1/4 < 0.3.
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, logits: []float32{0, 0, 0, 0}}

	res, err := newTestClassifier().Classify(context.Background(), testImage(t), primary, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultUnknown, res.Kind)
	assert.Empty(t, res.Suggestions)
	assert.InDelta(t, 0.25, res.Confidence, 1e-9)
}

func TestClassify_ProbabilitiesSumToOne(t *testing.T) {
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, logits: []float32{3.2, -1.1, 0.7, 2.4}}

	res, err := newTestClassifier().Classify(context.Background(), testImage(t), primary, nil)
	require.NoError(t, err)

	sum := 0.0
	for _, p := range res.Probabilities {
		assert.GreaterOrEqual(t, p.Probability, 0.0)
		assert.LessOrEqual(t, p.Probability, 1.0)
		sum += p.Probability
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestClassify_SecondaryFailureKeepsPrimarySuggestions(t *testing.T) {
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, logits: []float32{1.2, 0.3, 0, 0}}
	secondary := &stubModel{role: domain.ModelSecondary, labels: testLabels, threshold: 0.7, err: errors.New("ort session died")}

	res, err := newTestClassifier().Classify(context.Background(), testImage(t), primary, secondary)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSuggestions, res.Kind)
	assert.Equal(t, domain.ModelPrimary, res.ModelUsed)
}

func TestClassify_PrimaryFailureIsInferenceError(t *testing.T) {
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, err: errors.New("ort session died")}

	_, err := newTestClassifier().Classify(context.Background(), testImage(t), primary, nil)
	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
	assert.Equal(t, domain.ModelPrimary, infErr.Model)
}

func TestClassify_LabelMismatchIsInferenceError(t *testing.T) {
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, logits: []float32{1, 2}}

	_, err := newTestClassifier().Classify(context.Background(), testImage(t), primary, nil)
	var infErr *InferenceError
	assert.ErrorAs(t, err, &infErr)
}

func TestClassify_MalformedImageIsPreprocessingError(t *testing.T) {
	primary := &stubModel{role: domain.ModelPrimary, labels: testLabels, threshold: 0.8, logits: logitsFor(0, 10)}

	_, err := newTestClassifier().Classify(context.Background(), []byte("definitely not an image"), primary, nil)
	var prepErr *PreprocessingError
	assert.ErrorAs(t, err, &prepErr)
}

func TestClassify_NoModelsSuppliedErrors(t *testing.T) {
	_, err := newTestClassifier().Classify(context.Background(), testImage(t), nil, nil)
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestClassify_SecondaryOnlyActsAsPrimary(t *testing.T) {
	secondary := &stubModel{role: domain.ModelSecondary, labels: testLabels, threshold: 0.7, logits: logitsFor(3, 10)}

	res, err := newTestClassifier().Classify(context.Background(), testImage(t), nil, secondary)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultConfident, res.Kind)
	assert.Equal(t, "otros", res.PredictedLabel)
}

func TestSoftmax_StableUnderLargeLogits(t *testing.T) {
	probs, err := softmax([]float32{1000, 999, 998})
	require.NoError(t, err)

	sum := 0.0
	for _, p := range probs {
		require.False(t, math.IsNaN(p))
		require.False(t, math.IsInf(p, 0))
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.Greater(t, probs[0], probs[1])
}

func TestSoftmax_RejectsNonFinite(t *testing.T) {
	_, err := softmax([]float32{float32(math.Inf(1)), 0})
	assert.Error(t, err)

	_, err = softmax(nil)
	assert.Error(t, err)
}
