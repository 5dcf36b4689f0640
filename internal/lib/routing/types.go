package routing

import (
	"context"

	"github.com/dpup/tripmap/internal/lib/geo"
)

// Source records which rule produced a trip's line geometry
type Source string

const (
	GreatCircle Source = "great_circle"
	GroundRoute Source = "ground_route"
	Straight    Source = "straight"
)

// Geometry is the point sequence drawn for one trip
type Geometry struct {
	Points []geo.Point `json:"points"`
	Source Source      `json:"source"`
}

// RouteService computes a road or rail path between two points. Points are
// returned in lat/lng order regardless of the provider's wire format.
type RouteService interface {
	Route(ctx context.Context, from, to geo.Point) ([]geo.Point, error)
}

// RouteServiceFunc adapts a function to RouteService
type RouteServiceFunc func(ctx context.Context, from, to geo.Point) ([]geo.Point, error)

// Route calls f
func (f RouteServiceFunc) Route(ctx context.Context, from, to geo.Point) ([]geo.Point, error) {
	return f(ctx, from, to)
}
