package geo

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Polyline represents an encoded polyline with optional decoded points
type Polyline struct {
	EncodedPolyline string  `json:"encoded_polyline"`
	Points          []Point `json:"points"`
}

// Bounds is a lat/lng bounding box. The zero value is empty; use Extend to grow it.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
	valid bool
}

// GeoUtils interface defines geographic calculation utilities
type GeoUtils interface {
	// Calculate great-circle distance between two points in meters
	PointToPoint(p1, p2 Point) (float64, error)

	// Sum of segment distances along a path in meters
	PathLength(points []Point) (float64, error)

	// Decode Google polyline string to point sequence
	DecodePolyline(encoded string) ([]Point, error)

	// Encode a point sequence as a Google polyline string
	EncodePolyline(points []Point) string

	// Calculate distance between coordinate pairs (convenience method)
	DistanceFromCoords(lat1, lon1, lat2, lon2 float64) (float64, error)
}

// NewGeoUtils is implemented in geo.go
