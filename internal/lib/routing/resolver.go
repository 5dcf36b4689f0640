package routing

import (
	"github.com/dpup/tripmap/internal/lib/geo"
	"github.com/dpup/tripmap/internal/lib/trip"
)

// Resolve picks the geometry for a trip's line. The rules apply in order:
// great-circle kinds always get an arc, even when a ground route is stored;
// routed kinds use the stored ground route verbatim; everything else is a
// straight segment. ok is false when either endpoint is missing.
func Resolve(t *trip.Trip, arcPoints int) (Geometry, bool) {
	origin, okOrigin := t.Origin()
	dest, okDest := t.Destination()
	if !okOrigin || !okDest {
		return Geometry{}, false
	}

	info := t.Info()
	switch {
	case info.GreatCircle:
		return Geometry{Points: geo.GreatCircle(origin, dest, arcPoints), Source: GreatCircle}, true
	case info.UsesGroundRoute && len(t.GroundRoute) > 0:
		points := make([]geo.Point, len(t.GroundRoute))
		copy(points, t.GroundRoute)
		return Geometry{Points: points, Source: GroundRoute}, true
	default:
		return Geometry{Points: []geo.Point{origin, dest}, Source: Straight}, true
	}
}
