package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/dpup/tripmap/internal/lib/geo"
)

// Route and geocode helpers. Keys round coordinates to 1e-5 degrees, the
// precision of an encoded polyline, so re-saving the same trip hits the cache.

// RouteKey builds the cache key for a routed leg
func RouteKey(provider string, from, to geo.Point) string {
	return fmt.Sprintf("route:%s:%.5f,%.5f;%.5f,%.5f", provider,
		from.Latitude, from.Longitude, to.Latitude, to.Longitude)
}

// GeocodeKey builds the cache key for a place lookup
func GeocodeKey(place, region string) string {
	return "geocode:" + strings.ToLower(strings.TrimSpace(place)) + "|" + strings.ToLower(strings.TrimSpace(region))
}

// SetRoute caches a resolved ground route
func (c *Cache) SetRoute(provider string, from, to geo.Point, route []geo.Point, ttl time.Duration) error {
	return c.Set(RouteKey(provider, from, to), route, ttl, "route")
}

// GetRoute returns a cached ground route
func (c *Cache) GetRoute(provider string, from, to geo.Point) ([]geo.Point, bool, error) {
	var route []geo.Point
	found, err := c.Get(RouteKey(provider, from, to), &route)
	if err != nil || !found {
		return nil, false, err
	}
	return route, true, nil
}

// SetGeocode caches a resolved place
func (c *Cache) SetGeocode(place, region string, point geo.Point, ttl time.Duration) error {
	return c.Set(GeocodeKey(place, region), point, ttl, "geocode")
}

// GetGeocode returns a cached place
func (c *Cache) GetGeocode(place, region string) (*geo.Point, bool, error) {
	var point geo.Point
	found, err := c.Get(GeocodeKey(place, region), &point)
	if err != nil || !found {
		return nil, false, err
	}
	return &point, true, nil
}
