package proximity

import (
	"math"
	"sort"

	"github.com/jsmcel/guideitor/internal/domain"
)

// ItineraryStop is one landmark in a suggested walking order.
type ItineraryStop struct {
	Order                int              `json:"order"`
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Coordinates          domain.Coordinates `json:"coordinates"`
	DistanceFromPrevious float64          `json:"distance_from_previous"`
	CumulativeDistance   float64          `json:"cumulative_distance"`
	Country              string           `json:"country,omitempty"`
	City                 string           `json:"city,omitempty"`
}

// Itinerary is a complete suggested walking route over a tenant's landmarks.
type Itinerary struct {
	Stops               []ItineraryStop `json:"order"`
	TotalDistanceMeters float64         `json:"total_distance_meters"`
}

// BuildItinerary orders landmarks as a greedy nearest-neighbour walk starting
// from the northernmost one. Landmarks without valid coordinates are left out.
func BuildItinerary(landmarks []domain.Landmark) *Itinerary {
	valid := make([]domain.Landmark, 0, len(landmarks))
	for _, lm := range landmarks {
		if lm.Coordinates.Valid() {
			valid = append(valid, lm)
		}
	}
	if len(valid) == 0 {
		return &Itinerary{Stops: []ItineraryStop{}}
	}

	// Start at the highest latitude; the rest follow greedily.
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Coordinates.Latitude > valid[j].Coordinates.Latitude
	})

	remaining := valid[1:]
	current := valid[0]
	stops := []ItineraryStop{stopFrom(current, 1, 0, 0)}
	total := 0.0

	for len(remaining) > 0 {
		nearestIdx := 0
		nearestDist := math.MaxFloat64
		for i, cand := range remaining {
			d := DistanceMeters(*current.Coordinates, *cand.Coordinates)
			if d < nearestDist {
				nearestDist = d
				nearestIdx = i
			}
		}

		current = remaining[nearestIdx]
		remaining = append(remaining[:nearestIdx], remaining[nearestIdx+1:]...)
		total += nearestDist
		stops = append(stops, stopFrom(current, len(stops)+1, nearestDist, total))
	}

	return &Itinerary{Stops: stops, TotalDistanceMeters: total}
}

func stopFrom(lm domain.Landmark, order int, leg, cumulative float64) ItineraryStop {
	return ItineraryStop{
		Order:                order,
		ID:                   lm.ID,
		Name:                 lm.Name,
		Coordinates:          *lm.Coordinates,
		DistanceFromPrevious: leg,
		CumulativeDistance:   cumulative,
		Country:              lm.Country,
		City:                 lm.City,
	}
}
