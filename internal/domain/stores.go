package domain

import (
	"context"
	"time"
)

// RecognitionEvent is one recorded classification attempt.
type RecognitionEvent struct {
	ID             int64     `json:"id,omitempty"`
	TenantID       string    `json:"tenant_id"`
	SessionID      string    `json:"session_id,omitempty"`
	PieceName      string    `json:"piece_name"`
	Confidence     float64   `json:"confidence"`
	Kind           ResultKind `json:"kind"`
	FallbackUsed   string    `json:"fallback_used,omitempty"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// ActivationEvent is one recorded trigger-machine decision.
type ActivationEvent struct {
	ID             int64        `json:"id,omitempty"`
	TenantID       string       `json:"tenant_id"`
	SessionID      string       `json:"session_id"`
	LandmarkID     string       `json:"landmark_id"`
	Kind           DecisionKind `json:"kind"`
	DistanceMeters float64      `json:"distance_meters"`
	UserSelected   bool         `json:"user_selected"`
	CreatedAt      time.Time    `json:"created_at,omitempty"`
}

// AnalyticsSummary aggregates events for one tenant.
type AnalyticsSummary struct {
	TenantID          string         `json:"tenant_id"`
	Recognitions      int64          `json:"recognitions"`
	ConfidentResults  int64          `json:"confident_results"`
	AvgConfidence     float64        `json:"avg_confidence"`
	Activations       int64          `json:"activations"`
	ActivationsByKind map[string]int64 `json:"activations_by_kind"`
	TopPieces         []PieceCount   `json:"top_pieces"`
}

// PieceCount is a piece with its recognition count.
type PieceCount struct {
	PieceName string `json:"piece_name"`
	Count     int64  `json:"count"`
}

// AnalyticsStore persists recognition and activation events.
type AnalyticsStore interface {
	RecordRecognition(ctx context.Context, e *RecognitionEvent) error
	RecordActivation(ctx context.Context, e *ActivationEvent) error
	Summary(ctx context.Context, tenantID string, since time.Time) (*AnalyticsSummary, error)
}

// ReferenceEmbedding is a stored dataset embedding for one catalog piece.
type ReferenceEmbedding struct {
	TenantID  string    `json:"tenant_id"`
	Label     string    `json:"label"`
	PieceName string    `json:"piece_name"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// PieceScore is a catalog piece ranked by embedding similarity.
type PieceScore struct {
	Label     string  `json:"label"`
	PieceName string  `json:"piece_name"`
	Score     float64 `json:"score"`
}

// EmbeddingStore persists reference embeddings and answers nearest-neighbor
// queries over them.
type EmbeddingStore interface {
	Upsert(ctx context.Context, e *ReferenceEmbedding) error
	NearestByEmbedding(ctx context.Context, tenantID string, probe []float32, limit int) ([]PieceScore, error)
	CountByTenant(ctx context.Context, tenantID string) (int, error)
}
