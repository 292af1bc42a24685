package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jsmcel/guideitor/internal/domain"
)

var ErrModelUnavailable = errors.New("no model available for tenant")

const (
	primaryModelFile   = "swin_t_best_model.onnx"
	secondaryModelFile = "efficientnet_b0_model.onnx"
	labelsFile         = "labels.json"
)

// loaderFunc builds a model handle from a spec. Swappable in tests so the
// provider's resolution logic runs without a real ONNX runtime.
type loaderFunc func(spec HandleSpec) (domain.InferenceModel, error)

type resolved struct {
	primary   domain.InferenceModel
	secondary domain.InferenceModel
}

// FSProvider resolves tenant model handles from the tenants directory:
// <dir>/<tenant>/models/{swin_t_best_model,efficientnet_b0_model}.onnx and
// <dir>/<tenant>/labels.json. Handles are loaded lazily, memoized per
// tenant, and concurrent first-requests collapse into one load.
type FSProvider struct {
	dir                string
	libraryPath        string
	inputSize          int
	primaryThreshold   float64
	secondaryThreshold float64
	loader             loaderFunc
	logger             *zap.Logger

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]*resolved
}

// Options configures an FSProvider.
type Options struct {
	TenantsDir          string
	ONNXLibraryPath     string
	InputSize           int
	SimilarityThreshold float64
	SecondaryThreshold  float64
}

func NewFSProvider(opts Options, logger *zap.Logger) *FSProvider {
	p := &FSProvider{
		dir:                opts.TenantsDir,
		libraryPath:        opts.ONNXLibraryPath,
		inputSize:          opts.InputSize,
		primaryThreshold:   opts.SimilarityThreshold,
		secondaryThreshold: opts.SecondaryThreshold,
		logger:             logger,
		cache:              make(map[string]*resolved),
	}
	p.loader = func(spec HandleSpec) (domain.InferenceModel, error) {
		return loadHandle(spec, p.libraryPath)
	}
	return p
}

// Resolve returns the tenant's primary and secondary handles. Either may be
// nil; both nil yields ErrModelUnavailable and the caller must not attempt
// inference.
func (p *FSProvider) Resolve(ctx context.Context, tenantID string) (domain.InferenceModel, domain.InferenceModel, error) {
	if cached, ok := p.cached(tenantID); ok {
		return cached.primary, cached.secondary, nil
	}

	v, err, _ := p.group.Do(tenantID, func() (any, error) {
		// Re-check under the flight: a racing caller may have populated it.
		if cached, ok := p.cached(tenantID); ok {
			return cached, nil
		}
		r, err := p.load(tenantID)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.cache[tenantID] = r
		p.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return nil, nil, err
	}

	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	r := v.(*resolved)
	return r.primary, r.secondary, nil
}

// Invalidate drops the cached handles for a tenant so the next Resolve
// re-reads the filesystem.
func (p *FSProvider) Invalidate(tenantID string) {
	p.mu.Lock()
	delete(p.cache, tenantID)
	p.mu.Unlock()
}

func (p *FSProvider) cached(tenantID string) (*resolved, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.cache[tenantID]
	return r, ok
}

func (p *FSProvider) load(tenantID string) (*resolved, error) {
	tenantDir := filepath.Join(p.dir, tenantID)
	labels, err := p.loadLabels(tenantDir)
	if err != nil {
		return nil, err
	}

	r := &resolved{}

	primaryPath := filepath.Join(tenantDir, "models", primaryModelFile)
	if fileExists(primaryPath) {
		h, err := p.loader(HandleSpec{
			Role:      domain.ModelPrimary,
			Path:      primaryPath,
			Labels:    labels,
			InputSize: p.inputSize,
			Threshold: p.primaryThreshold,
		})
		if err != nil {
			return nil, fmt.Errorf("load primary model for %s: %w", tenantID, err)
		}
		r.primary = h
		p.logger.Info("loaded primary model",
			zap.String("tenant_id", tenantID),
			zap.String("path", primaryPath),
			zap.Int("labels", len(labels)))
	}

	secondaryPath := filepath.Join(tenantDir, "models", secondaryModelFile)
	if fileExists(secondaryPath) {
		h, err := p.loader(HandleSpec{
			Role:      domain.ModelSecondary,
			Path:      secondaryPath,
			Labels:    labels,
			InputSize: p.inputSize,
			Threshold: p.secondaryThreshold,
		})
		if err != nil {
			// A broken secondary must not take down the primary path.
			p.logger.Warn("secondary model failed to load",
				zap.String("tenant_id", tenantID),
				zap.String("path", secondaryPath),
				zap.Error(err))
		} else {
			r.secondary = h
			p.logger.Info("loaded secondary model",
				zap.String("tenant_id", tenantID),
				zap.String("path", secondaryPath))
		}
	}

	if r.primary == nil && r.secondary == nil {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrModelUnavailable)
	}
	return r, nil
}

func (p *FSProvider) loadLabels(tenantDir string) ([]string, error) {
	path := filepath.Join(tenantDir, labelsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels %s: %w", path, err)
	}
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("parse labels %s: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels %s: empty label list", path)
	}
	return labels, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
