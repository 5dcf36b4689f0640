package routing

import (
	"context"
	"log"
	"time"

	"github.com/dpup/tripmap/internal/cache"
	"github.com/dpup/tripmap/internal/lib/geo"
	"github.com/dpup/tripmap/internal/lib/trip"
	"github.com/dpup/tripmap/internal/metrics"
)

// DefaultTimeout bounds a single routing call
const DefaultTimeout = 10 * time.Second

// DefaultCacheTTL is how long a resolved ground route is reused
const DefaultCacheTTL = 24 * time.Hour

// Acquirer fetches ground routes for routed trips at save time
type Acquirer struct {
	service  RouteService
	provider string
	cache    *cache.Cache
	cacheTTL time.Duration
	timeout  time.Duration
	metrics  *metrics.Collector
}

// AcquirerOption configures an Acquirer
type AcquirerOption func(*Acquirer)

// WithCache reuses routes for identical endpoints
func WithCache(c *cache.Cache, ttl time.Duration) AcquirerOption {
	return func(a *Acquirer) {
		a.cache = c
		if ttl > 0 {
			a.cacheTTL = ttl
		}
	}
}

// WithTimeout overrides DefaultTimeout
func WithTimeout(d time.Duration) AcquirerOption {
	return func(a *Acquirer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithMetrics records acquisition outcomes
func WithMetrics(m *metrics.Collector) AcquirerOption {
	return func(a *Acquirer) { a.metrics = m }
}

// NewAcquirer creates an acquirer for service. provider names the service in
// cache keys and metrics.
func NewAcquirer(service RouteService, provider string, opts ...AcquirerOption) *Acquirer {
	a := &Acquirer{
		service:  service,
		provider: provider,
		cacheTTL: DefaultCacheTTL,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the configured provider name
func (a *Acquirer) Provider() string {
	return a.provider
}

// Acquire returns the ground route for t, or nil when the trip is not routed
// or the service fails. Failures are logged and never returned; the caller
// persists the trip either way and the resolver falls back to a straight line.
func (a *Acquirer) Acquire(ctx context.Context, t *trip.Trip) []geo.Point {
	if a == nil || a.service == nil || !t.Info().UsesGroundRoute {
		return nil
	}
	origin, okOrigin := t.Origin()
	dest, okDest := t.Destination()
	if !okOrigin || !okDest {
		a.metrics.RouteAcquired(a.provider, metrics.OutcomeSkipped)
		return nil
	}

	if a.cache != nil {
		route, found, err := a.cache.GetRoute(a.provider, origin, dest)
		if err != nil {
			log.Printf("Failed to read cached route for trip %s: %v", t.ID, err)
		} else if found {
			a.metrics.RouteAcquired(a.provider, metrics.OutcomeCached)
			return route
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	route, err := a.service.Route(ctx, origin, dest)
	if err != nil {
		log.Printf("Failed to acquire %s route for trip %s: %v", a.provider, t.ID, err)
		a.metrics.RouteAcquired(a.provider, metrics.OutcomeError)
		return nil
	}
	if len(route) < 2 {
		log.Printf("Routing provider %s returned %d points for trip %s, using straight line", a.provider, len(route), t.ID)
		a.metrics.RouteAcquired(a.provider, metrics.OutcomeEmpty)
		return nil
	}

	if a.cache != nil {
		if err := a.cache.SetRoute(a.provider, origin, dest, route, a.cacheTTL); err != nil {
			log.Printf("Failed to cache route for trip %s: %v", t.ID, err)
		}
	}
	a.metrics.RouteAcquired(a.provider, metrics.OutcomeOK)
	return route
}
