package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jsmcel/guideitor/internal/domain"
	pgvector "github.com/pgvector/pgvector-go"
)

type EmbeddingStore struct {
	db *pgxpool.Pool
}

func NewEmbeddingStore(db *pgxpool.Pool) *EmbeddingStore {
	return &EmbeddingStore{db: db}
}

func (s *EmbeddingStore) Upsert(ctx context.Context, e *domain.ReferenceEmbedding) error {
	embedding := pgvector.NewVector(e.Embedding)
	return s.db.QueryRow(ctx,
		`INSERT INTO reference_embeddings (tenant_id, label, piece_name, embedding)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, label)
		 DO UPDATE SET piece_name = EXCLUDED.piece_name, embedding = EXCLUDED.embedding, created_at = NOW()
		 RETURNING created_at`,
		e.TenantID, e.Label, e.PieceName, embedding,
	).Scan(&e.CreatedAt)
}

func (s *EmbeddingStore) NearestByEmbedding(ctx context.Context, tenantID string, probe []float32, limit int) ([]domain.PieceScore, error) {
	if limit <= 0 {
		limit = 3
	}
	vec := pgvector.NewVector(probe)
	rows, err := s.db.Query(ctx,
		`SELECT label, piece_name, 1 - (embedding <=> $2) AS score
		 FROM reference_embeddings
		 WHERE tenant_id = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		tenantID, vec, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []domain.PieceScore
	for rows.Next() {
		var ps domain.PieceScore
		if err := rows.Scan(&ps.Label, &ps.PieceName, &ps.Score); err != nil {
			return nil, err
		}
		scores = append(scores, ps)
	}
	return scores, rows.Err()
}

func (s *EmbeddingStore) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM reference_embeddings WHERE tenant_id = $1`,
		tenantID,
	).Scan(&count)
	return count, err
}
