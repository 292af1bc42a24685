package domain

import "context"

// InferenceModel is a loaded, immutable inference session. Implementations
// must be safe for concurrent Run calls; all metadata is fixed at load time.
type InferenceModel interface {
	Role() ModelRole
	Labels() []string
	InputSize() int
	Threshold() float64
	Run(ctx context.Context, input []float32) ([]float32, error)
}

// ModelProvider resolves the models available to a tenant, primary first.
// Resolution is idempotent and memoized; Invalidate drops the cached handles
// so changed files on disk are picked up on the next Resolve.
type ModelProvider interface {
	Resolve(ctx context.Context, tenantID string) (primary, secondary InferenceModel, err error)
	Invalidate(tenantID string)
}
