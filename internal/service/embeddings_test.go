package service

import (
	"context"
	"testing"

	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEmbeddingStore struct {
	upserts []domain.ReferenceEmbedding
	scores  []domain.PieceScore
}

func (s *fakeEmbeddingStore) Upsert(ctx context.Context, e *domain.ReferenceEmbedding) error {
	s.upserts = append(s.upserts, *e)
	return nil
}

func (s *fakeEmbeddingStore) NearestByEmbedding(ctx context.Context, tenantID string, probe []float32, limit int) ([]domain.PieceScore, error) {
	if limit < len(s.scores) {
		return s.scores[:limit], nil
	}
	return s.scores, nil
}

func (s *fakeEmbeddingStore) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	return len(s.upserts), nil
}

func TestEmbeddingImport(t *testing.T) {
	store := &fakeEmbeddingStore{}
	svc := NewEmbeddingService(newTestRegistry(t), store, zap.NewNop())

	n, err := svc.Import(context.Background(), "museo_ferrocarril", []domain.ReferenceEmbedding{
		{Label: "locomotora_030", PieceName: "Locomotora 030", Embedding: []float32{0.1, 0.2}},
		{Label: "vagon_correo", PieceName: "Vagón Correo", Embedding: []float32{0.3, 0.4}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, store.upserts, 2)
	assert.Equal(t, "museo_ferrocarril", store.upserts[0].TenantID)
}

func TestEmbeddingImport_Validation(t *testing.T) {
	svc := NewEmbeddingService(newTestRegistry(t), &fakeEmbeddingStore{}, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Import(ctx, "nope", []domain.ReferenceEmbedding{{Label: "x", Embedding: []float32{1}}})
	assert.ErrorIs(t, err, ErrTenantUnknown)

	_, err = svc.Import(ctx, "museo_ferrocarril", []domain.ReferenceEmbedding{{Embedding: []float32{1}}})
	assert.ErrorIs(t, err, ErrLabelEmpty)

	_, err = svc.Import(ctx, "museo_ferrocarril", []domain.ReferenceEmbedding{{Label: "x"}})
	assert.ErrorIs(t, err, ErrEmbeddingEmpty)

	_, err = svc.Import(ctx, "museo_ferrocarril", []domain.ReferenceEmbedding{
		{Label: "x", Embedding: []float32{1, 2}},
		{Label: "y", Embedding: []float32{1}},
	})
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestEmbeddingSimilar(t *testing.T) {
	store := &fakeEmbeddingStore{scores: []domain.PieceScore{
		{Label: "locomotora_030", PieceName: "Locomotora 030", Score: 0.92},
		{Label: "grua_taller", PieceName: "Grúa de Taller", Score: 0.61},
	}}
	svc := NewEmbeddingService(newTestRegistry(t), store, zap.NewNop())

	scores, err := svc.Similar(context.Background(), "museo_ferrocarril", []float32{0.1, 0.2}, 0)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "locomotora_030", scores[0].Label)

	_, err = svc.Similar(context.Background(), "museo_ferrocarril", nil, 3)
	assert.ErrorIs(t, err, ErrEmbeddingEmpty)
}
