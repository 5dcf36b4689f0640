package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix selects environment overrides for LoadFile, e.g.
// TRIPMAP_ROUTING__PROVIDER=google sets routing.provider.
const EnvPrefix = "TRIPMAP_"

// Config represents the complete server configuration
type Config struct {
	Server    ServerConfig    `koanf:"server" yaml:"server"`
	Store     StoreConfig     `koanf:"store" yaml:"store"`
	Routing   RoutingConfig   `koanf:"routing" yaml:"routing"`
	Geocoding GeocodingConfig `koanf:"geocoding" yaml:"geocoding"`
	Render    RenderConfig    `koanf:"render" yaml:"render"`
	Export    ExportConfig    `koanf:"export" yaml:"export"`
}

// ServerConfig holds HTTP API settings. The listen address itself belongs
// to prefab's own server section.
type ServerConfig struct {
	APIPrefix      string        `koanf:"api_prefix" yaml:"api_prefix"`
	MetricsPath    string        `koanf:"metrics_path" yaml:"metrics_path"`
	CorsOrigins    []string      `koanf:"cors_origins" yaml:"cors_origins"`
	CacheCleanup   time.Duration `koanf:"cache_cleanup" yaml:"cache_cleanup"`
	RequestTimeout time.Duration `koanf:"request_timeout" yaml:"request_timeout"`

	// Live maps and open trip forms are dropped after these idle periods,
	// checked every EvictionInterval. Zero keeps them until shutdown.
	MapIdleTTL       time.Duration `koanf:"map_idle_ttl" yaml:"map_idle_ttl"`
	DraftTTL         time.Duration `koanf:"draft_ttl" yaml:"draft_ttl"`
	EvictionInterval time.Duration `koanf:"eviction_interval" yaml:"eviction_interval"`
}

// StoreConfig holds trip database settings
type StoreConfig struct {
	Path string `koanf:"path" yaml:"path"`
}

// RoutingConfig selects and configures the ground routing provider
type RoutingConfig struct {
	Provider string        `koanf:"provider" yaml:"provider"` // osrm, google or none
	Timeout  time.Duration `koanf:"timeout" yaml:"timeout"`
	CacheTTL time.Duration `koanf:"cache_ttl" yaml:"cache_ttl"`
	OSRM     OSRMConfig    `koanf:"osrm" yaml:"osrm"`
	Google   GoogleConfig  `koanf:"google" yaml:"google"`
}

// OSRMConfig holds OSRM route service settings
type OSRMConfig struct {
	BaseURL   string `koanf:"base_url" yaml:"base_url"`
	UserAgent string `koanf:"user_agent" yaml:"user_agent"`
}

// GoogleConfig holds Google Routes API settings
type GoogleConfig struct {
	APIKey  string `koanf:"api_key" yaml:"api_key"`
	BaseURL string `koanf:"base_url" yaml:"base_url"`
}

// GeocodingConfig holds Nominatim settings
type GeocodingConfig struct {
	BaseURL   string        `koanf:"base_url" yaml:"base_url"`
	UserAgent string        `koanf:"user_agent" yaml:"user_agent"`
	CacheTTL  time.Duration `koanf:"cache_ttl" yaml:"cache_ttl"`
}

// RenderConfig holds map rendering settings
type RenderConfig struct {
	ArcPoints        int           `koanf:"arc_points" yaml:"arc_points"`
	RolloverInterval time.Duration `koanf:"rollover_interval" yaml:"rollover_interval"`
}

// ExportConfig holds image export settings
type ExportConfig struct {
	Width        int    `koanf:"width" yaml:"width"`
	Height       int    `koanf:"height" yaml:"height"`
	Padding      int    `koanf:"padding" yaml:"padding"`
	TileProvider string `koanf:"tile_provider" yaml:"tile_provider"`
	DisableTiles bool   `koanf:"disable_tiles" yaml:"disable_tiles"`

	// RegionsPath is a GeoJSON FeatureCollection of region boundaries shaded
	// by visit status, named by RegionNameProperty. Empty draws no regions.
	RegionsPath        string `koanf:"regions_path" yaml:"regions_path"`
	RegionNameProperty string `koanf:"region_name_property" yaml:"region_name_property"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			APIPrefix:      "/api/v1/",
			MetricsPath:    "/metrics",
			CorsOrigins:    []string{"*"},
			CacheCleanup:   time.Hour,
			RequestTimeout: 30 * time.Second,

			MapIdleTTL:       30 * time.Minute,
			DraftTTL:         2 * time.Hour,
			EvictionInterval: time.Minute,
		},
		Store: StoreConfig{
			Path: "tripmap.db",
		},
		Routing: RoutingConfig{
			Provider: "osrm",
			Timeout:  10 * time.Second,
			CacheTTL: 24 * time.Hour,
			OSRM: OSRMConfig{
				BaseURL:   "https://router.project-osrm.org",
				UserAgent: "tripmap/1.0",
			},
			Google: GoogleConfig{
				BaseURL: "https://routes.googleapis.com",
			},
		},
		Geocoding: GeocodingConfig{
			BaseURL:   "https://nominatim.openstreetmap.org",
			UserAgent: "tripmap/1.0",
			CacheTTL:  7 * 24 * time.Hour,
		},
		Render: RenderConfig{
			ArcPoints:        100,
			RolloverInterval: time.Minute,
		},
		Export: ExportConfig{
			Width:        1600,
			Height:       1200,
			Padding:      50,
			TileProvider: "carto-light",

			RegionNameProperty: "name",
		},
	}
}

// Load overlays the sections present in k onto the defaults
func Load(k *koanf.Koanf) (*Config, error) {
	cfg := DefaultConfig()
	if k == nil {
		return cfg, nil
	}
	for _, section := range []struct {
		key    string
		target interface{}
	}{
		{"server", &cfg.Server},
		{"store", &cfg.Store},
		{"routing", &cfg.Routing},
		{"geocoding", &cfg.Geocoding},
		{"render", &cfg.Render},
		{"export", &cfg.Export},
	} {
		if !k.Exists(section.key) {
			continue
		}
		if err := k.Unmarshal(section.key, section.target); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s section: %w", section.key, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML file, when path is set, then TRIPMAP_ environment
// overrides. Nested keys use a double underscore.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	return Load(k)
}

// FromMap builds a config from nested values, e.g. flag overrides
func FromMap(values map[string]interface{}) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load config values: %w", err)
	}
	return Load(k)
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks settings that would otherwise fail at first use
func (c *Config) Validate() error {
	switch c.Routing.Provider {
	case "osrm", "none":
	case "google":
		if c.Routing.Google.APIKey == "" {
			return fmt.Errorf("routing.google.api_key is required when routing.provider is google")
		}
	default:
		return fmt.Errorf("unknown routing provider %q", c.Routing.Provider)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Server.MapIdleTTL < 0 || c.Server.DraftTTL < 0 {
		return fmt.Errorf("idle TTLs must not be negative")
	}
	if c.Export.Width <= 0 || c.Export.Height <= 0 {
		return fmt.Errorf("export size must be positive, got %dx%d", c.Export.Width, c.Export.Height)
	}
	return nil
}
