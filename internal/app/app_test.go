package app_test

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/atmosight/internal/app"
	"github.com/derickschaefer/atmosight/internal/config"
	"github.com/derickschaefer/atmosight/internal/dataset"
	"github.com/derickschaefer/atmosight/internal/geocode"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Format:      config.DefaultFormat,
		Timeout:     config.DefaultTimeout,
		Concurrency: 1,
		Rate:        1,
		PowerURL:    config.DefaultPowerURL,
		GeocoderURL: config.DefaultGeocoderURL,
		DBPath:      filepath.Join(t.TempDir(), "nested", "atmosight.db"),
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

func TestRunnerUsesCacheByDefault(t *testing.T) {
	deps := app.New(testConfig(t), io.Discard)
	t.Cleanup(func() { _ = deps.Close() })

	r, err := deps.Runner()
	require.NoError(t, err)
	require.NotNil(t, deps.Store, "store should be opened for caching")

	assert.IsType(t, &dataset.Cached{}, r.Fetcher)
	assert.IsType(t, &geocode.CachedGeocoder{}, r.Geocoder)

	again, err := deps.Runner()
	require.NoError(t, err)
	assert.Same(t, r, again)
}

func TestRunnerNoCacheSkipsStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.NoCache = true
	deps := app.New(cfg, io.Discard)

	r, err := deps.Runner()
	require.NoError(t, err)
	assert.Nil(t, deps.Store)
	assert.IsType(t, dataset.Power{}, r.Fetcher)
	assert.IsType(t, &geocode.Nominatim{}, r.Geocoder)
}

func TestRequireStoreWithoutPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBPath = ""
	deps := app.New(cfg, io.Discard)
	assert.Error(t, deps.RequireStore())
}

func TestCloseIsIdempotent(t *testing.T) {
	deps := app.New(testConfig(t), io.Discard)
	require.NoError(t, deps.RequireStore())
	assert.NoError(t, deps.Close())
	assert.NoError(t, deps.Close())
}
