// Package metrics exposes Prometheus collectors for route acquisition,
// geocoding and map refreshes.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by acquisition and lookup counters
const (
	OutcomeOK      = "ok"
	OutcomeCached  = "cached"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeStale   = "stale"
	OutcomeSkipped = "skipped"
)

// Collector bundles the tripmap Prometheus metrics. A nil *Collector is valid
// and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	RouteAcquisitions *prometheus.CounterVec
	GeocodeLookups    *prometheus.CounterVec
	Refreshes         prometheus.Counter
	RenderedLayers    *prometheus.GaugeVec
}

// New registers the collectors against reg, defaulting to the global
// Prometheus registry when nil.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	routes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmap_route_acquisitions_total",
		Help: "Ground route acquisitions at trip save time, labeled by provider and outcome.",
	}, []string{"provider", "outcome"}), "tripmap_route_acquisitions_total")
	if err != nil {
		return nil, err
	}

	geocodes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripmap_geocode_lookups_total",
		Help: "Place name lookups, labeled by outcome.",
	}, []string{"outcome"}), "tripmap_geocode_lookups_total")
	if err != nil {
		return nil, err
	}

	refreshes, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tripmap_refreshes_total",
		Help: "Full map re-renders performed by refresh controllers.",
	}), "tripmap_refreshes_total")
	if err != nil {
		return nil, err
	}

	layers, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tripmap_rendered_layers",
		Help: "Layers in the most recent frame, labeled by layer kind.",
	}, []string{"kind"}), "tripmap_rendered_layers")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		RouteAcquisitions: routes,
		GeocodeLookups:    geocodes,
		Refreshes:         refreshes,
		RenderedLayers:    layers,
	}, nil
}

// RouteAcquired records one acquisition attempt
func (c *Collector) RouteAcquired(provider, outcome string) {
	if c == nil {
		return
	}
	c.RouteAcquisitions.WithLabelValues(provider, outcome).Inc()
}

// GeocodeLooked records one geocoding lookup
func (c *Collector) GeocodeLooked(outcome string) {
	if c == nil {
		return
	}
	c.GeocodeLookups.WithLabelValues(outcome).Inc()
}

// Refreshed records a completed refresh with its layer counts
func (c *Collector) Refreshed(lines, markers int) {
	if c == nil {
		return
	}
	c.Refreshes.Inc()
	c.RenderedLayers.WithLabelValues("line").Set(float64(lines))
	c.RenderedLayers.WithLabelValues("marker").Set(float64(markers))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
