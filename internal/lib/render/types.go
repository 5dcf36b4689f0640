package render

import (
	"github.com/dpup/tripmap/internal/lib/geo"
	"github.com/dpup/tripmap/internal/lib/routing"
	"github.com/dpup/tripmap/internal/lib/transport"
	"github.com/dpup/tripmap/internal/lib/trip"
	"github.com/dpup/tripmap/internal/lib/visited"
)

// Line and marker styling shared by every map surface
const (
	LineWeight   = 3
	LineOpacity  = 0.8
	DashPattern  = "10, 10"
	MarkerRadius = 4
)

// MarkerRole tells whether a marker sits at the start or end of a trip
type MarkerRole string

const (
	RoleOrigin      MarkerRole = "origin"
	RoleDestination MarkerRole = "destination"
)

// RouteLine is the drawn path of one trip
type RouteLine struct {
	TripID    string         `json:"trip_id"`
	Transport transport.Kind `json:"transport"`
	Points    []geo.Point    `json:"points"`
	Color     string         `json:"color"`
	Dashed    bool           `json:"dashed"`
	Popup     string         `json:"popup"`
	Source    routing.Source `json:"source"`
}

// PointMarker is a small circle at a trip endpoint
type PointMarker struct {
	TripID string     `json:"trip_id"`
	Point  geo.Point  `json:"point"`
	Color  string     `json:"color"`
	Role   MarkerRole `json:"role"`
}

// Layer is one overlay on the map. Exactly one field is set.
type Layer struct {
	Line   *RouteLine   `json:"line,omitempty"`
	Marker *PointMarker `json:"marker,omitempty"`
}

// Frame is the complete overlay state produced by one refresh
type Frame struct {
	Layers        []Layer        `json:"layers"`
	Visited       visited.Set    `json:"-"`
	Today         string         `json:"today"`
	Filter        trip.DateRange `json:"filter"`
	Bounds        *geo.Bounds    `json:"bounds,omitempty"`
	DateRangeText string         `json:"date_range_text"`
}

// Options controls Compute
type Options struct {
	Today     string // YYYY-MM-DD; defaults to the current UTC date
	Filter    trip.DateRange
	ArcPoints int // great-circle segments; defaults to geo.DefaultArcPoints
}

// Sink receives every freshly computed frame, replacing whatever it showed
// before. Implementations must not call back into the Controller.
type Sink interface {
	Render(frame Frame)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Frame)

// Render calls f
func (f SinkFunc) Render(frame Frame) { f(frame) }
