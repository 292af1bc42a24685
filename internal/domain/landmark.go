package domain

import "math"

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point is a usable coordinate pair.
func (c *Coordinates) Valid() bool {
	if c == nil {
		return false
	}
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Landmark is a GPS-tagged point of interest. Static reference data owned by
// tenant configuration; read-only everywhere else.
type Landmark struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Coordinates *Coordinates `json:"coordinates"`
	Country     string       `json:"country,omitempty"`
	City        string       `json:"city,omitempty"`
}

// ProximitySample is the nearest landmark to a user position, derived fresh
// on every location update and never persisted.
type ProximitySample struct {
	Landmark       Landmark `json:"landmark"`
	DistanceMeters float64  `json:"distance_meters"`
}
