package domain

// TenantMode is the frontend mode a tenant runs in: camera recognition or
// GPS proximity.
type TenantMode string

const (
	TenantModeVision TenantMode = "vision"
	TenantModeGPS    TenantMode = "gps"
)

// Tenant is one deployment of the guide (a park, a museum). Loaded from the
// tenants directory at startup; read-only afterwards.
type Tenant struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	Description         string      `json:"description,omitempty"`
	Mode                TenantMode  `json:"frontend_mode"`
	TriggerRadiusMeters float64     `json:"trigger_radius_meters,omitempty"`
	Thresholds          *Thresholds `json:"thresholds,omitempty"`
}

// RecognitionEnabled reports whether the image path is available for this
// tenant. GPS-only tenants reject recognition requests outright.
func (t *Tenant) RecognitionEnabled() bool {
	return t.Mode != TenantModeGPS
}
