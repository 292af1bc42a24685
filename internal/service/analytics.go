package service

import (
	"context"
	"errors"
	"time"

	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/jsmcel/guideitor/internal/tenant"
	"go.uber.org/zap"
)

const defaultSummaryWindow = 30 * 24 * time.Hour

// AnalyticsService answers aggregate questions about recognition and
// activation traffic.
type AnalyticsService struct {
	registry *tenant.Registry
	store    domain.AnalyticsStore
	logger   *zap.Logger
}

func NewAnalyticsService(registry *tenant.Registry, store domain.AnalyticsStore, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{registry: registry, store: store, logger: logger}
}

// Summary aggregates a tenant's events since the given time. A zero since
// defaults to the last 30 days.
func (s *AnalyticsService) Summary(ctx context.Context, tenantID string, since time.Time) (*domain.AnalyticsSummary, error) {
	if _, err := s.registry.Get(tenantID); err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return nil, ErrTenantUnknown
		}
		return nil, err
	}
	if since.IsZero() {
		since = time.Now().Add(-defaultSummaryWindow)
	}
	return s.store.Summary(ctx, tenantID, since)
}
