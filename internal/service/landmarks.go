package service

import (
	"errors"

	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/jsmcel/guideitor/internal/proximity"
	"github.com/jsmcel/guideitor/internal/tenant"
	"go.uber.org/zap"
)

var (
	ErrLandmarkNotFound = errors.New("landmark not found")
	ErrLocationInvalid  = errors.New("valid latitude and longitude are required")
	ErrNoCatalog        = errors.New("tenant has no landmark catalog")
)

type LandmarkService struct {
	registry *tenant.Registry
	logger   *zap.Logger
}

func NewLandmarkService(registry *tenant.Registry, logger *zap.Logger) *LandmarkService {
	return &LandmarkService{registry: registry, logger: logger}
}

func (s *LandmarkService) All(tenantID string) ([]domain.Landmark, error) {
	landmarks, err := s.registry.Landmarks(tenantID)
	if err != nil {
		return nil, s.mapRegistryErr(err)
	}
	return landmarks, nil
}

func (s *LandmarkService) Get(tenantID, landmarkID string) (*domain.Landmark, error) {
	landmarks, err := s.registry.Landmarks(tenantID)
	if err != nil {
		return nil, s.mapRegistryErr(err)
	}
	for i := range landmarks {
		if landmarks[i].ID == landmarkID {
			return &landmarks[i], nil
		}
	}
	return nil, ErrLandmarkNotFound
}

// Nearest returns the closest catalog landmark to the user's position.
func (s *LandmarkService) Nearest(tenantID string, user domain.Coordinates) (*domain.ProximitySample, error) {
	if !user.Valid() {
		return nil, ErrLocationInvalid
	}
	landmarks, err := s.registry.Landmarks(tenantID)
	if err != nil {
		return nil, s.mapRegistryErr(err)
	}
	sample := proximity.Nearest(user, landmarks)
	if sample == nil {
		return nil, ErrLandmarkNotFound
	}
	return sample, nil
}

// Itinerary builds a greedy walking route over the tenant's catalog.
func (s *LandmarkService) Itinerary(tenantID string) (*proximity.Itinerary, error) {
	landmarks, err := s.registry.Landmarks(tenantID)
	if err != nil {
		return nil, s.mapRegistryErr(err)
	}
	return proximity.BuildItinerary(landmarks), nil
}

func (s *LandmarkService) mapRegistryErr(err error) error {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		return ErrTenantUnknown
	case errors.Is(err, tenant.ErrNoCoordinates):
		return ErrNoCatalog
	default:
		return err
	}
}
