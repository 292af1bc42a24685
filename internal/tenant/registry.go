package tenant

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/jsmcel/guideitor/internal/domain"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrNoCoordinates  = errors.New("no coordinates configured for tenant")
)

const (
	configFile      = "config.json"
	coordinatesFile = "coordinates.json"

	landmarkCacheTTL = 5 * time.Minute
)

// tenantConfig is the on-disk shape of tenants/<id>/config.json.
type tenantConfig struct {
	Name                string             `json:"name"`
	Description         string             `json:"description"`
	FrontendMode        string             `json:"frontendMode"`
	TriggerRadiusMeters float64            `json:"triggerRadiusMeters"`
	Thresholds          *domain.Thresholds `json:"thresholds"`
}

// coordinatesDoc is the on-disk shape of tenants/<id>/coordinates.json.
type coordinatesDoc struct {
	Monuments map[string]struct {
		Name        string              `json:"name"`
		Coordinates *domain.Coordinates `json:"coordinates"`
		Country     string              `json:"original_country"`
		City        string              `json:"original_city"`
	} `json:"monuments"`
}

// Registry loads tenant configuration from the tenants directory and serves
// it read-only. Landmark catalogs are cached with a TTL and can be
// invalidated explicitly after a redeploy of coordinate files.
type Registry struct {
	dir           string
	defaultRadius float64
	logger        *zap.Logger

	mu      sync.RWMutex
	tenants map[string]*domain.Tenant

	landmarks *gocache.Cache
}

// NewRegistry scans dir for tenant subdirectories carrying a config.json.
func NewRegistry(dir string, defaultRadius float64, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		dir:           dir,
		defaultRadius: defaultRadius,
		logger:        logger,
		tenants:       make(map[string]*domain.Tenant),
		landmarks:     gocache.New(landmarkCacheTTL, 10*time.Minute),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-scans the tenants directory. Unknown or malformed tenants are
// skipped with a warning; an unreadable root directory is fatal.
func (r *Registry) Reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read tenants dir %s: %w", r.dir, err)
	}

	loaded := make(map[string]*domain.Tenant)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		t, err := r.loadTenant(id)
		if err != nil {
			r.logger.Warn("skipping tenant", zap.String("tenant_id", id), zap.Error(err))
			continue
		}
		loaded[id] = t
	}

	r.mu.Lock()
	r.tenants = loaded
	r.mu.Unlock()

	r.logger.Info("tenant registry loaded", zap.Int("tenants", len(loaded)))
	return nil
}

func (r *Registry) loadTenant(id string) (*domain.Tenant, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, id, configFile))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg tenantConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	mode := domain.TenantMode(cfg.FrontendMode)
	if mode != domain.TenantModeVision && mode != domain.TenantModeGPS {
		mode = domain.TenantModeVision
	}

	radius := cfg.TriggerRadiusMeters
	if radius <= 0 {
		radius = r.defaultRadius
	}

	name := cfg.Name
	if name == "" {
		name = id
	}

	return &domain.Tenant{
		ID:                  id,
		Name:                name,
		Description:         cfg.Description,
		Mode:                mode,
		TriggerRadiusMeters: radius,
		Thresholds:          cfg.Thresholds,
	}, nil
}

// Get returns one tenant by id.
func (r *Registry) Get(id string) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return t, nil
}

// List returns all tenants sorted by id.
func (r *Registry) List() []*domain.Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Landmarks returns the tenant's landmark catalog sorted by id, cached with
// a TTL. Tenants without a coordinates file yield ErrNoCoordinates.
func (r *Registry) Landmarks(tenantID string) ([]domain.Landmark, error) {
	if _, err := r.Get(tenantID); err != nil {
		return nil, err
	}

	if cached, ok := r.landmarks.Get(tenantID); ok {
		return cached.([]domain.Landmark), nil
	}

	path := filepath.Join(r.dir, tenantID, coordinatesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCoordinates
		}
		return nil, fmt.Errorf("read coordinates %s: %w", path, err)
	}

	var doc coordinatesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse coordinates %s: %w", path, err)
	}
	if len(doc.Monuments) == 0 {
		return nil, ErrNoCoordinates
	}

	landmarks := make([]domain.Landmark, 0, len(doc.Monuments))
	for id, m := range doc.Monuments {
		name := m.Name
		if name == "" {
			name = id
		}
		landmarks = append(landmarks, domain.Landmark{
			ID:          id,
			Name:        name,
			Coordinates: m.Coordinates,
			Country:     m.Country,
			City:        m.City,
		})
	}
	sort.Slice(landmarks, func(i, j int) bool { return landmarks[i].ID < landmarks[j].ID })

	r.landmarks.Set(tenantID, landmarks, gocache.DefaultExpiration)
	return landmarks, nil
}

// InvalidateLandmarks drops the cached catalog for one tenant, or for all
// tenants when id is empty.
func (r *Registry) InvalidateLandmarks(tenantID string) {
	if tenantID == "" {
		r.landmarks.Flush()
		return
	}
	r.landmarks.Delete(tenantID)
}
