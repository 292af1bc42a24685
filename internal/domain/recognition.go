package domain

// ClassProbability pairs a label with its softmax probability.
type ClassProbability struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// ResultKind is the outcome of the confidence-gated decision policy.
type ResultKind string

const (
	ResultConfident   ResultKind = "confident"
	ResultSuggestions ResultKind = "suggestions"
	ResultUnknown     ResultKind = "none"
)

// ModelRole identifies which model in the cascade produced a result.
type ModelRole string

const (
	ModelPrimary   ModelRole = "primary"
	ModelSecondary ModelRole = "secondary"
)

// ClassificationResult is the full output of one classification, including
// the ranked probability vector and any low-confidence suggestions.
// Suggestions is non-empty only when Kind is ResultSuggestions; it is sorted
// descending by probability with ties broken by label order.
type ClassificationResult struct {
	Kind           ResultKind         `json:"kind"`
	PredictedLabel string             `json:"predicted_label"`
	Confidence     float64            `json:"confidence"`
	Probabilities  []ClassProbability `json:"probabilities,omitempty"`
	Suggestions    []ClassProbability `json:"suggestions,omitempty"`
	ModelUsed      ModelRole          `json:"model_used"`
}

// Thresholds holds the confidence gates for the decision policy.
type Thresholds struct {
	Similarity          float64 `json:"similarity"`
	SimilaritySecondary float64 `json:"similarity_secondary"`
	Suggestion          float64 `json:"suggestion"`
	TopNSuggestions     int     `json:"top_n_suggestions"`
}
