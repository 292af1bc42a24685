package model

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeModel struct {
	role   domain.ModelRole
	labels []string
}

func (f *fakeModel) Role() domain.ModelRole { return f.role }
func (f *fakeModel) Labels() []string       { return f.labels }
func (f *fakeModel) InputSize() int         { return 224 }
func (f *fakeModel) Threshold() float64     { return 0.8 }
func (f *fakeModel) Run(_ context.Context, _ []float32) ([]float32, error) {
	return make([]float32, len(f.labels)), nil
}

func writeTenantFixture(t *testing.T, dir, tenant string, primary, secondary bool) {
	t.Helper()
	tenantDir := filepath.Join(dir, tenant)
	require.NoError(t, os.MkdirAll(filepath.Join(tenantDir, "models"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tenantDir, "labels.json"),
		[]byte(`["locomotora_030", "vagon_correo", "otros"]`), 0o644))
	if primary {
		require.NoError(t, os.WriteFile(filepath.Join(tenantDir, "models", primaryModelFile), []byte("onnx"), 0o644))
	}
	if secondary {
		require.NoError(t, os.WriteFile(filepath.Join(tenantDir, "models", secondaryModelFile), []byte("onnx"), 0o644))
	}
}

func newTestProvider(t *testing.T, dir string, loads *atomic.Int32) *FSProvider {
	t.Helper()
	p := NewFSProvider(Options{
		TenantsDir:          dir,
		InputSize:           224,
		SimilarityThreshold: 0.8,
		SecondaryThreshold:  0.7,
	}, zap.NewNop())
	p.loader = func(spec HandleSpec) (domain.InferenceModel, error) {
		if loads != nil {
			loads.Add(1)
		}
		return &fakeModel{role: spec.Role, labels: spec.Labels}, nil
	}
	return p
}

func TestFSProvider_ResolvePrimaryAndSecondary(t *testing.T) {
	dir := t.TempDir()
	writeTenantFixture(t, dir, "museo_ferrocarril", true, true)
	p := newTestProvider(t, dir, nil)

	primary, secondary, err := p.Resolve(context.Background(), "museo_ferrocarril")
	require.NoError(t, err)
	require.NotNil(t, primary)
	require.NotNil(t, secondary)
	assert.Equal(t, domain.ModelPrimary, primary.Role())
	assert.Equal(t, domain.ModelSecondary, secondary.Role())
	assert.Equal(t, []string{"locomotora_030", "vagon_correo", "otros"}, primary.Labels())
}

func TestFSProvider_SecondaryOnlyFallsBack(t *testing.T) {
	dir := t.TempDir()
	writeTenantFixture(t, dir, "bembibre", false, true)
	p := newTestProvider(t, dir, nil)

	primary, secondary, err := p.Resolve(context.Background(), "bembibre")
	require.NoError(t, err)
	assert.Nil(t, primary)
	require.NotNil(t, secondary)
}

func TestFSProvider_NoModelsIsModelUnavailable(t *testing.T) {
	dir := t.TempDir()
	writeTenantFixture(t, dir, "parque_europa", false, false)
	p := newTestProvider(t, dir, nil)

	_, _, err := p.Resolve(context.Background(), "parque_europa")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestFSProvider_ResolveIsMemoized(t *testing.T) {
	dir := t.TempDir()
	writeTenantFixture(t, dir, "museo_ferrocarril", true, false)
	var loads atomic.Int32
	p := newTestProvider(t, dir, &loads)

	for i := 0; i < 5; i++ {
		_, _, err := p.Resolve(context.Background(), "museo_ferrocarril")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), loads.Load())
}

func TestFSProvider_ConcurrentFirstResolveLoadsOnce(t *testing.T) {
	dir := t.TempDir()
	writeTenantFixture(t, dir, "museo_ferrocarril", true, false)
	var loads atomic.Int32
	p := newTestProvider(t, dir, &loads)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := p.Resolve(context.Background(), "museo_ferrocarril")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), loads.Load())
}

func TestFSProvider_InvalidateForcesReload(t *testing.T) {
	dir := t.TempDir()
	writeTenantFixture(t, dir, "museo_ferrocarril", true, false)
	var loads atomic.Int32
	p := newTestProvider(t, dir, &loads)

	_, _, err := p.Resolve(context.Background(), "museo_ferrocarril")
	require.NoError(t, err)
	p.Invalidate("museo_ferrocarril")
	_, _, err = p.Resolve(context.Background(), "museo_ferrocarril")
	require.NoError(t, err)

	assert.Equal(t, int32(2), loads.Load())
}

func TestFSProvider_MissingLabelsFileFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "naked", "models"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "naked", "models", primaryModelFile), []byte("onnx"), 0o644))
	p := newTestProvider(t, dir, nil)

	_, _, err := p.Resolve(context.Background(), "naked")
	assert.Error(t, err)
}
