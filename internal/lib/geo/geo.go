package geo

import (
	"errors"
	"math"

	"github.com/twpayne/go-polyline"
)

// Earth's mean radius in meters
const earthRadius = 6371000

// geoUtils implements the GeoUtils interface
type geoUtils struct{}

// NewGeoUtils creates a new GeoUtils implementation
func NewGeoUtils() GeoUtils {
	return &geoUtils{}
}

// PointToPoint calculates great-circle distance between two points using Haversine formula
func (g *geoUtils) PointToPoint(p1, p2 Point) (float64, error) {
	if !isValidCoordinate(p1) || !isValidCoordinate(p2) {
		return 0, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}

	if p1 == p2 {
		return 0, nil
	}

	return earthRadius * CentralAngle(p1, p2), nil
}

// PathLength sums the great-circle length of every segment of a path
func (g *geoUtils) PathLength(points []Point) (float64, error) {
	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		d, err := g.PointToPoint(points[i], points[i+1])
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

// DecodePolyline decodes Google polyline string to point sequence
func (g *geoUtils) DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{
			Latitude:  coord[0],
			Longitude: coord[1],
		}

		if !isValidCoordinate(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

// EncodePolyline encodes points with the standard 1e5 precision
func (g *geoUtils) EncodePolyline(points []Point) string {
	if len(points) == 0 {
		return ""
	}
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

// DistanceFromCoords calculates distance between two coordinate pairs
// Convenience method for raw latitude/longitude values
func (g *geoUtils) DistanceFromCoords(lat1, lon1, lat2, lon2 float64) (float64, error) {
	return g.PointToPoint(Point{Latitude: lat1, Longitude: lon1}, Point{Latitude: lat2, Longitude: lon2})
}

// Coordinate Conversion Utilities

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !isValidCoordinate(point) {
		return Point{}, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return point, nil
}

// IsValid reports whether the point is within latitude/longitude ranges
func (p Point) IsValid() bool {
	return isValidCoordinate(p)
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}

// Extend grows the bounds to include p
func (b *Bounds) Extend(p Point) {
	if !b.valid {
		*b = Bounds{South: p.Latitude, North: p.Latitude, West: p.Longitude, East: p.Longitude, valid: true}
		return
	}
	b.South = math.Min(b.South, p.Latitude)
	b.North = math.Max(b.North, p.Latitude)
	b.West = math.Min(b.West, p.Longitude)
	b.East = math.Max(b.East, p.Longitude)
}

// IsEmpty reports whether no point has been added
func (b Bounds) IsEmpty() bool {
	return !b.valid
}

// Center returns the midpoint of the box in plain lat/lng space
func (b Bounds) Center() Point {
	return Point{
		Latitude:  (b.South + b.North) / 2,
		Longitude: (b.West + b.East) / 2,
	}
}
