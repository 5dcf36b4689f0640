package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "osrm", cfg.Routing.Provider)
	assert.Equal(t, 10*time.Second, cfg.Routing.Timeout)
	assert.Equal(t, 100, cfg.Render.ArcPoints)
	assert.Equal(t, 1600, cfg.Export.Width)
	assert.Equal(t, 30*time.Minute, cfg.Server.MapIdleTTL)
	assert.Equal(t, 2*time.Hour, cfg.Server.DraftTTL)
	assert.Equal(t, "name", cfg.Export.RegionNameProperty)
	assert.Empty(t, cfg.Export.RegionsPath)
}

func TestLoad_NilUsesDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestFromMap_OverlaysDefaults(t *testing.T) {
	cfg, err := FromMap(map[string]interface{}{
		"routing.provider":       "google",
		"routing.google.api_key": "secret",
		"routing.timeout":        "3s",
		"render.arc_points":      50,
	})
	require.NoError(t, err)

	assert.Equal(t, "google", cfg.Routing.Provider)
	assert.Equal(t, "secret", cfg.Routing.Google.APIKey)
	assert.Equal(t, 3*time.Second, cfg.Routing.Timeout)
	assert.Equal(t, 50, cfg.Render.ArcPoints)
	// untouched fields keep their defaults
	assert.Equal(t, 24*time.Hour, cfg.Routing.CacheTTL)
	assert.Equal(t, "https://routes.googleapis.com", cfg.Routing.Google.BaseURL)
	assert.Equal(t, "tripmap.db", cfg.Store.Path)
}

func TestFromMap_Invalid(t *testing.T) {
	_, err := FromMap(map[string]interface{}{"routing.provider": "carrier-pigeon"})
	assert.Error(t, err)

	_, err = FromMap(map[string]interface{}{"routing.provider": "google"})
	assert.ErrorContains(t, err, "api_key")

	_, err = FromMap(map[string]interface{}{"export.width": 0})
	assert.Error(t, err)

	_, err = FromMap(map[string]interface{}{"server.draft_ttl": "-1m"})
	assert.ErrorContains(t, err, "TTL")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tripmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  path: /var/lib/tripmap/trips.db
geocoding:
  user_agent: example/2.0
export:
  tile_provider: osm
  disable_tiles: true
  regions_path: /srv/tripmap/countries.geo.json
server:
  map_idle_ttl: 10m
`), 0o600))

	t.Setenv("TRIPMAP_RENDER__ARC_POINTS", "24")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/tripmap/trips.db", cfg.Store.Path)
	assert.Equal(t, "example/2.0", cfg.Geocoding.UserAgent)
	assert.Equal(t, "osm", cfg.Export.TileProvider)
	assert.True(t, cfg.Export.DisableTiles)
	assert.Equal(t, 24, cfg.Render.ArcPoints)
	assert.Equal(t, 1200, cfg.Export.Height)
	assert.Equal(t, "/srv/tripmap/countries.geo.json", cfg.Export.RegionsPath)
	assert.Equal(t, 10*time.Minute, cfg.Server.MapIdleTTL)
	assert.Equal(t, 2*time.Hour, cfg.Server.DraftTTL)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
