package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dpup/prefab"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/tripmap/internal/cache"
	"github.com/dpup/tripmap/internal/clients/google"
	"github.com/dpup/tripmap/internal/clients/nominatim"
	"github.com/dpup/tripmap/internal/clients/osrm"
	"github.com/dpup/tripmap/internal/config"
	"github.com/dpup/tripmap/internal/export"
	"github.com/dpup/tripmap/internal/lib/routing"
	"github.com/dpup/tripmap/internal/metrics"
	"github.com/dpup/tripmap/internal/services"
	"github.com/dpup/tripmap/internal/store"
)

func main() {
	// Load configuration using Prefab's config system
	appConfig := loadConfig()

	ctx, cancel := context.WithCancel(logging.With(context.Background(), logging.NewProdLogger()))
	defer cancel()

	// Shared cache for routes and geocoding results
	cacheInstance := cache.NewCache()
	cacheInstance.StartPeriodicCleanup(ctx, appConfig.Server.CacheCleanup)

	collector, err := metrics.New(nil)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	tripStore, err := store.Open(store.Config{Path: appConfig.Store.Path})
	if err != nil {
		log.Fatalf("Failed to open trip store: %v", err)
	}
	defer tripStore.Close()

	acquirer := newAcquirer(appConfig, cacheInstance, collector)
	geocoder := nominatim.NewClient(appConfig.Geocoding.BaseURL, appConfig.Geocoding.UserAgent,
		nominatim.WithCache(cacheInstance, appConfig.Geocoding.CacheTTL),
		nominatim.WithMetrics(collector))

	tripService := services.NewTripService(tripStore, acquirer)
	var mapOpts []services.MapServiceOption
	if path := appConfig.Export.RegionsPath; path != "" {
		regions, err := export.LoadRegions(path, appConfig.Export.RegionNameProperty)
		if err != nil {
			log.Fatalf("Failed to load region boundaries: %v", err)
		}
		log.Printf("Loaded %d region boundaries from %s", regions.Len(), path)
		mapOpts = append(mapOpts, services.WithRegions(regions))
	}

	mapService := services.NewMapService(tripStore, tripService, geocoder, appConfig, collector, mapOpts...)
	defer mapService.Close()
	mapService.StartEviction(ctx, appConfig.Server.EvictionInterval)

	rollover := services.NewDayRollover(mapService, appConfig.Render.RolloverInterval)
	rollover.Start(ctx)
	defer rollover.Stop()

	log.Printf("Trip map server starting")
	log.Printf("Store: %s", appConfig.Store.Path)
	log.Printf("Routing provider: %s", appConfig.Routing.Provider)

	apiPrefix := appConfig.Server.APIPrefix
	if !strings.HasSuffix(apiPrefix, "/") {
		apiPrefix += "/"
	}

	// Server configuration (port, etc.) will be loaded from prefab.yaml/env vars
	server := prefab.New(
		prefab.WithHTTPHandlerFunc(apiPrefix, mapService.Handler().ServeHTTP),
		prefab.WithHTTPHandlerFunc(appConfig.Server.MetricsPath, collector.Handler().ServeHTTP),
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
	)

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// newAcquirer builds the ground routing pipeline for the configured provider.
// Returns nil when routing is disabled; routed trips then draw straight lines.
func newAcquirer(cfg *config.Config, c *cache.Cache, m *metrics.Collector) *routing.Acquirer {
	var service routing.RouteService
	switch cfg.Routing.Provider {
	case "osrm":
		service = osrm.NewClient(cfg.Routing.OSRM.BaseURL, cfg.Routing.OSRM.UserAgent)
	case "google":
		service = google.NewClientWithHTTPDoer(cfg.Routing.Google.APIKey, cfg.Routing.Google.BaseURL, &http.Client{Timeout: cfg.Routing.Timeout})
	default:
		log.Printf("Ground routing disabled")
		return nil
	}
	return routing.NewAcquirer(service, cfg.Routing.Provider,
		routing.WithCache(c, cfg.Routing.CacheTTL),
		routing.WithTimeout(cfg.Routing.Timeout),
		routing.WithMetrics(m))
}

// loadConfig loads configuration using Prefab's config system
// Configuration is loaded from prefab.yaml and environment variables with PF__ prefix
func loadConfig() *config.Config {
	appConfig, err := config.Load(prefab.Config)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return appConfig
}

// homepageHandler serves a simple HTML homepage at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	// Only handle the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	html := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>tripmap</title>
    <style>
        body {
            font-family: 'Courier New', Consolas, monospace;
            background: #000;
            color: #0f0;
            padding: 20px;
            line-height: 1.4;
        }
        a { color: #0ff; text-decoration: none; }
        a:hover { text-decoration: underline; }
        pre { margin: 0; }
        .header { color: #ff0; }
    </style>
</head>
<body>
<pre>
<span class="header">tripmap</span>

Travel log map server. Trips are drawn as great-circle arcs, road and rail
routes or straight lines, colored by transport, with visited regions shaded.

<span class="header">Map API:</span>
  GET    /api/v1/maps/{owner}/layers          - Route lines and markers (GeoJSON)
  GET    /api/v1/maps/{owner}/visited         - Visited regions
  GET    /api/v1/maps/{owner}/export.png      - Map image
  GET    /api/v1/maps/{owner}/export.kml      - KML document
         all accept ?start=YYYY-MM-DD&amp;end=YYYY-MM-DD

<span class="header">Trips API:</span>
  GET    /api/v1/maps/{owner}/trips
  POST   /api/v1/maps/{owner}/trips
  GET    /api/v1/maps/{owner}/trips/{id}
  PUT    /api/v1/maps/{owner}/trips/{id}
  DELETE /api/v1/maps/{owner}/trips/{id}

<span class="header">Trip forms:</span>
  POST   /api/v1/maps/{owner}/drafts
  POST   /api/v1/maps/{owner}/drafts/{draft}/lookup
  PUT    /api/v1/maps/{owner}/drafts/{draft}/coordinates
  POST   /api/v1/maps/{owner}/drafts/{draft}/save
  DELETE /api/v1/maps/{owner}/drafts/{draft}

<span class="header">Lookups:</span>
  <a href="/api/v1/transports">GET /api/v1/transports</a>
  GET    /api/v1/geocode?place=...&amp;region=...

<span class="header">Data Sources:</span>
  • OSRM or Google Routes API - Ground routes for train, bus and car trips
  • Nominatim                 - Place name geocoding
</pre>
</body>
</html>`

	if _, err := fmt.Fprint(w, html); err != nil {
		slog.Error("Failed to write homepage HTML", "error", err)
	}
}
