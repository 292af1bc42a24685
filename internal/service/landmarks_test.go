package service

import (
	"testing"

	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLandmarkService(t *testing.T) *LandmarkService {
	t.Helper()
	return NewLandmarkService(newTestRegistry(t), zap.NewNop())
}

func TestLandmarksAll(t *testing.T) {
	svc := newLandmarkService(t)

	landmarks, err := svc.All("parque_europa")
	require.NoError(t, err)
	require.Len(t, landmarks, 2)
	assert.Equal(t, "puerta_brandeburgo", landmarks[0].ID)
	assert.Equal(t, "torre_eiffel", landmarks[1].ID)
}

func TestLandmarksAll_TenantWithoutCatalog(t *testing.T) {
	svc := newLandmarkService(t)

	_, err := svc.All("museo_ferrocarril")
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestLandmarksGet(t *testing.T) {
	svc := newLandmarkService(t)

	lm, err := svc.Get("parque_europa", "torre_eiffel")
	require.NoError(t, err)
	assert.Equal(t, "Torre Eiffel", lm.Name)

	_, err = svc.Get("parque_europa", "atomium")
	assert.ErrorIs(t, err, ErrLandmarkNotFound)
}

func TestLandmarksNearest(t *testing.T) {
	svc := newLandmarkService(t)

	sample, err := svc.Nearest("parque_europa", domain.Coordinates{Latitude: 40.4239, Longitude: -3.4607})
	require.NoError(t, err)
	assert.Equal(t, "torre_eiffel", sample.Landmark.ID)
	assert.Less(t, sample.DistanceMeters, 50.0)
}

func TestLandmarksNearest_InvalidLocation(t *testing.T) {
	svc := newLandmarkService(t)

	_, err := svc.Nearest("parque_europa", domain.Coordinates{Latitude: 123, Longitude: 0})
	assert.ErrorIs(t, err, ErrLocationInvalid)
}

func TestLandmarksItinerary(t *testing.T) {
	svc := newLandmarkService(t)

	it, err := svc.Itinerary("parque_europa")
	require.NoError(t, err)
	require.Len(t, it.Stops, 2)
	// The route starts at the northernmost landmark.
	assert.Equal(t, "puerta_brandeburgo", it.Stops[0].ID)
	assert.Equal(t, 0.0, it.Stops[0].DistanceFromPrevious)
	assert.Greater(t, it.Stops[1].DistanceFromPrevious, 0.0)
	assert.Equal(t, it.Stops[1].CumulativeDistance, it.TotalDistanceMeters)
}
