package proximity

import (
	"testing"

	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildItinerary_StartsAtNorthernmost(t *testing.T) {
	landmarks := []domain.Landmark{
		{ID: "south", Coordinates: &domain.Coordinates{Latitude: 40.40, Longitude: -3.70}},
		{ID: "north", Coordinates: &domain.Coordinates{Latitude: 40.44, Longitude: -3.70}},
		{ID: "middle", Coordinates: &domain.Coordinates{Latitude: 40.42, Longitude: -3.70}},
	}

	it := BuildItinerary(landmarks)
	require.Len(t, it.Stops, 3)
	assert.Equal(t, "north", it.Stops[0].ID)
	assert.Equal(t, "middle", it.Stops[1].ID)
	assert.Equal(t, "south", it.Stops[2].ID)
	assert.Equal(t, 0.0, it.Stops[0].DistanceFromPrevious)
	assert.Equal(t, 1, it.Stops[0].Order)
	assert.Equal(t, 3, it.Stops[2].Order)
}

func TestBuildItinerary_CumulativeDistances(t *testing.T) {
	landmarks := []domain.Landmark{
		{ID: "a", Coordinates: &domain.Coordinates{Latitude: 40.44, Longitude: -3.70}},
		{ID: "b", Coordinates: &domain.Coordinates{Latitude: 40.43, Longitude: -3.70}},
		{ID: "c", Coordinates: &domain.Coordinates{Latitude: 40.41, Longitude: -3.70}},
	}

	it := BuildItinerary(landmarks)
	require.Len(t, it.Stops, 3)

	legSum := 0.0
	for _, stop := range it.Stops {
		legSum += stop.DistanceFromPrevious
		assert.InDelta(t, legSum, stop.CumulativeDistance, 1e-9)
	}
	assert.InDelta(t, legSum, it.TotalDistanceMeters, 1e-9)
	assert.Greater(t, it.TotalDistanceMeters, 0.0)
}

func TestBuildItinerary_SkipsInvalidAndHandlesEmpty(t *testing.T) {
	it := BuildItinerary([]domain.Landmark{{ID: "bare"}})
	assert.Empty(t, it.Stops)
	assert.Equal(t, 0.0, it.TotalDistanceMeters)

	it = BuildItinerary(nil)
	assert.Empty(t, it.Stops)
}
