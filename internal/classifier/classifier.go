package classifier

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/jsmcel/guideitor/internal/domain"
)

// Classifier applies the confidence-gated decision policy over one or two
// model handles: confident match, secondary-model rescue, suggestions, or
// unknown. Stateless; safe for concurrent use.
type Classifier struct {
	suggestionThreshold float64
	topN                int
	logger              *zap.Logger
}

func New(suggestionThreshold float64, topN int, logger *zap.Logger) *Classifier {
	return &Classifier{
		suggestionThreshold: suggestionThreshold,
		topN:                topN,
		logger:              logger,
	}
}

// modelRun is one model's softmaxed output.
type modelRun struct {
	model      domain.InferenceModel
	probs      []domain.ClassProbability
	argmax     int
	confidence float64
}

// Classify preprocesses the image, runs the primary model and applies the
// decision policy, cascading to the secondary model as a rescue path when
// the primary misses its threshold. "Unknown" is a legitimate result; any
// error return is a genuine failure.
func (c *Classifier) Classify(ctx context.Context, imageData []byte, primary, secondary domain.InferenceModel) (*domain.ClassificationResult, error) {
	first := primary
	if first == nil {
		first, secondary = secondary, nil
	}
	if first == nil {
		return nil, ErrNoModel
	}

	// One preprocessed tensor per distinct input size; both tenant models
	// share 224 in practice.
	tensors := map[int][]float32{}
	prep := func(m domain.InferenceModel) ([]float32, error) {
		if t, ok := tensors[m.InputSize()]; ok {
			return t, nil
		}
		t, err := Preprocess(imageData, m.InputSize())
		if err != nil {
			return nil, err
		}
		tensors[m.InputSize()] = t
		return t, nil
	}

	firstRun, err := c.run(ctx, first, prep)
	if err != nil {
		return nil, err
	}

	if firstRun.confidence >= first.Threshold() {
		return resultFrom(firstRun, domain.ResultConfident, nil), nil
	}

	best := firstRun
	if secondary != nil {
		secondRun, err := c.run(ctx, secondary, prep)
		if err != nil {
			// The rescue path must not take down the primary's suggestion
			// path; same recovery the recognition server always had.
			c.logger.Warn("secondary model inference failed",
				zap.Error(err))
		} else {
			if secondRun.confidence >= secondary.Threshold() {
				return resultFrom(secondRun, domain.ResultConfident, nil), nil
			}
			// Best-of-both by raw confidence decides whose output feeds the
			// suggestion list.
			if secondRun.confidence > best.confidence {
				best = secondRun
			}
		}
	}

	if best.confidence >= c.suggestionThreshold {
		return resultFrom(best, domain.ResultSuggestions, c.topSuggestions(best.probs)), nil
	}

	return resultFrom(best, domain.ResultUnknown, nil), nil
}

func (c *Classifier) run(ctx context.Context, m domain.InferenceModel, prep func(domain.InferenceModel) ([]float32, error)) (*modelRun, error) {
	tensor, err := prep(m)
	if err != nil {
		return nil, err
	}

	logits, err := m.Run(ctx, tensor)
	if err != nil {
		return nil, &InferenceError{Model: m.Role(), Err: err}
	}

	labels := m.Labels()
	if len(logits) != len(labels) {
		return nil, &InferenceError{
			Model: m.Role(),
			Err:   fmt.Errorf("model returned %d classes, label list has %d", len(logits), len(labels)),
		}
	}

	probs, err := softmax(logits)
	if err != nil {
		return nil, &InferenceError{Model: m.Role(), Err: err}
	}

	run := &modelRun{model: m, probs: make([]domain.ClassProbability, len(labels))}
	for i, p := range probs {
		run.probs[i] = domain.ClassProbability{Label: labels[i], Probability: p}
		if p > run.confidence {
			run.confidence = p
			run.argmax = i
		}
	}
	return run, nil
}

// softmax converts logits to probabilities with max subtraction for
// numerical stability. Output is finite, non-negative and sums to 1.
func softmax(logits []float32) ([]float64, error) {
	if len(logits) == 0 {
		return nil, fmt.Errorf("empty logit vector")
	}

	maxLogit := float64(logits[0])
	for _, v := range logits[1:] {
		if float64(v) > maxLogit {
			maxLogit = float64(v)
		}
	}
	if math.IsNaN(maxLogit) || math.IsInf(maxLogit, 0) {
		return nil, fmt.Errorf("non-finite logits")
	}

	probs := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		e := math.Exp(float64(v) - maxLogit)
		probs[i] = e
		sum += e
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("invalid exponential sum")
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs, nil
}

// topSuggestions returns the topN labels by probability. The sort is stable
// so equal probabilities keep label insertion order.
func (c *Classifier) topSuggestions(probs []domain.ClassProbability) []domain.ClassProbability {
	ranked := make([]domain.ClassProbability, len(probs))
	copy(ranked, probs)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Probability > ranked[j].Probability
	})

	n := c.topN
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

func resultFrom(run *modelRun, kind domain.ResultKind, suggestions []domain.ClassProbability) *domain.ClassificationResult {
	return &domain.ClassificationResult{
		Kind:           kind,
		PredictedLabel: run.probs[run.argmax].Label,
		Confidence:     run.confidence,
		Probabilities:  run.probs,
		Suggestions:    suggestions,
		ModelUsed:      run.model.Role(),
	}
}
