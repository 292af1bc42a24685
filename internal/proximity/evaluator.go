package proximity

import (
	"math"

	"github.com/jsmcel/guideitor/internal/domain"
)

const earthRadiusMeters = 6371000.0

// DistanceMeters computes the great-circle distance between two points using
// the haversine formula.
func DistanceMeters(a, b domain.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180.0
	lon1 := a.Longitude * math.Pi / 180.0
	lat2 := b.Latitude * math.Pi / 180.0
	lon2 := b.Longitude * math.Pi / 180.0

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Nearest returns the closest landmark to the user position, or nil if no
// landmark carries valid coordinates. Landmarks with missing or out-of-range
// coordinates are skipped, not errored. Pure function, safe on every tick.
func Nearest(user domain.Coordinates, landmarks []domain.Landmark) *domain.ProximitySample {
	if !(&user).Valid() {
		return nil
	}

	var best *domain.ProximitySample
	for _, lm := range landmarks {
		if !lm.Coordinates.Valid() {
			continue
		}
		d := DistanceMeters(user, *lm.Coordinates)
		if best == nil || d < best.DistanceMeters {
			best = &domain.ProximitySample{Landmark: lm, DistanceMeters: d}
		}
	}
	return best
}
