package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jsmcel/guideitor/internal/domain"
)

type AnalyticsStore struct {
	db *pgxpool.Pool
}

func NewAnalyticsStore(db *pgxpool.Pool) *AnalyticsStore {
	return &AnalyticsStore{db: db}
}

func (s *AnalyticsStore) RecordRecognition(ctx context.Context, e *domain.RecognitionEvent) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO recognition_events (tenant_id, session_id, piece_name, confidence, kind, fallback_used, response_time_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		e.TenantID, e.SessionID, e.PieceName, e.Confidence, e.Kind, e.FallbackUsed, e.ResponseTimeMS,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *AnalyticsStore) RecordActivation(ctx context.Context, e *domain.ActivationEvent) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO activation_events (tenant_id, session_id, landmark_id, kind, distance_meters, user_selected)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		e.TenantID, e.SessionID, e.LandmarkID, e.Kind, e.DistanceMeters, e.UserSelected,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *AnalyticsStore) Summary(ctx context.Context, tenantID string, since time.Time) (*domain.AnalyticsSummary, error) {
	summary := &domain.AnalyticsSummary{
		TenantID:          tenantID,
		ActivationsByKind: map[string]int64{},
	}

	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE kind = 'confident'),
		        COALESCE(AVG(confidence), 0)
		 FROM recognition_events
		 WHERE tenant_id = $1 AND created_at >= $2`,
		tenantID, since,
	).Scan(&summary.Recognitions, &summary.ConfidentResults, &summary.AvgConfidence)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT kind, COUNT(*)
		 FROM activation_events
		 WHERE tenant_id = $1 AND created_at >= $2
		 GROUP BY kind`,
		tenantID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		summary.ActivationsByKind[kind] = count
		summary.Activations += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pieces, err := s.db.Query(ctx,
		`SELECT piece_name, COUNT(*) AS recognitions
		 FROM recognition_events
		 WHERE tenant_id = $1 AND created_at >= $2 AND piece_name <> ''
		 GROUP BY piece_name
		 ORDER BY recognitions DESC, piece_name ASC
		 LIMIT 5`,
		tenantID, since,
	)
	if err != nil {
		return nil, err
	}
	defer pieces.Close()
	for pieces.Next() {
		var pc domain.PieceCount
		if err := pieces.Scan(&pc.PieceName, &pc.Count); err != nil {
			return nil, err
		}
		summary.TopPieces = append(summary.TopPieces, pc)
	}
	if err := pieces.Err(); err != nil {
		return nil, err
	}

	return summary, nil
}
