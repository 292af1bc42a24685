package service

import (
	"context"
	"errors"

	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/jsmcel/guideitor/internal/tenant"
	"go.uber.org/zap"
)

var (
	ErrEmbeddingEmpty    = errors.New("embedding vector is required")
	ErrEmbeddingMismatch = errors.New("all embeddings must share one dimension")
	ErrLabelEmpty        = errors.New("label is required")
)

const defaultSimilarLimit = 3

// EmbeddingService manages the reference embedding dataset used for
// similarity lookups over the catalog.
type EmbeddingService struct {
	registry *tenant.Registry
	store    domain.EmbeddingStore
	logger   *zap.Logger
}

func NewEmbeddingService(registry *tenant.Registry, store domain.EmbeddingStore, logger *zap.Logger) *EmbeddingService {
	return &EmbeddingService{registry: registry, store: store, logger: logger}
}

// Import upserts a batch of reference embeddings for a tenant and returns
// how many were written.
func (s *EmbeddingService) Import(ctx context.Context, tenantID string, embeddings []domain.ReferenceEmbedding) (int, error) {
	if _, err := s.registry.Get(tenantID); err != nil {
		return 0, ErrTenantUnknown
	}
	dim := 0
	for i := range embeddings {
		if embeddings[i].Label == "" {
			return 0, ErrLabelEmpty
		}
		if len(embeddings[i].Embedding) == 0 {
			return 0, ErrEmbeddingEmpty
		}
		if dim == 0 {
			dim = len(embeddings[i].Embedding)
		} else if len(embeddings[i].Embedding) != dim {
			return 0, ErrEmbeddingMismatch
		}
	}

	written := 0
	for i := range embeddings {
		embeddings[i].TenantID = tenantID
		if err := s.store.Upsert(ctx, &embeddings[i]); err != nil {
			return written, err
		}
		written++
	}
	s.logger.Info("imported reference embeddings",
		zap.String("tenant_id", tenantID), zap.Int("count", written))
	return written, nil
}

// Similar ranks catalog pieces by cosine similarity to a probe embedding.
func (s *EmbeddingService) Similar(ctx context.Context, tenantID string, probe []float32, limit int) ([]domain.PieceScore, error) {
	if _, err := s.registry.Get(tenantID); err != nil {
		return nil, ErrTenantUnknown
	}
	if len(probe) == 0 {
		return nil, ErrEmbeddingEmpty
	}
	if limit <= 0 {
		limit = defaultSimilarLimit
	}
	return s.store.NearestByEmbedding(ctx, tenantID, probe, limit)
}

func (s *EmbeddingService) Count(ctx context.Context, tenantID string) (int, error) {
	if _, err := s.registry.Get(tenantID); err != nil {
		return 0, ErrTenantUnknown
	}
	return s.store.CountByTenant(ctx, tenantID)
}
