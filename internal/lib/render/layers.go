// Package render turns trip snapshots into map overlays.
package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dpup/tripmap/internal/lib/geo"
	"github.com/dpup/tripmap/internal/lib/routing"
	"github.com/dpup/tripmap/internal/lib/trip"
	"github.com/dpup/tripmap/internal/lib/visited"
)

// Compute builds a frame from scratch. The date filter is applied first and
// the visited set is derived from the same filtered trips as the layers.
// Compute does not modify trips.
func Compute(trips []trip.Trip, opts Options) Frame {
	today := opts.Today
	if today == "" {
		today = trip.DateOf(time.Now())
	}

	subset := trip.Filter(trips, opts.Filter)
	frame := Frame{
		Layers:        make([]Layer, 0, len(subset)*3),
		Visited:       visited.Aggregate(subset, today),
		Today:         today,
		Filter:        opts.Filter,
		DateRangeText: trip.SpanText(subset),
	}

	var bounds geo.Bounds
	for i := range subset {
		t := &subset[i]
		origin, okOrigin := t.Origin()
		dest, okDest := t.Destination()
		if okOrigin {
			bounds.Extend(origin)
		}
		if okDest {
			bounds.Extend(dest)
		}

		geometry, ok := routing.Resolve(t, opts.ArcPoints)
		if !ok {
			continue
		}
		info := t.Info()
		frame.Layers = append(frame.Layers,
			Layer{Line: &RouteLine{
				TripID:    t.ID,
				Transport: info.Kind,
				Points:    geometry.Points,
				Color:     info.Color,
				Dashed:    !t.StartedBy(today),
				Popup:     Popup(t),
				Source:    geometry.Source,
			}},
			Layer{Marker: &PointMarker{TripID: t.ID, Point: origin, Color: info.Color, Role: RoleOrigin}},
			Layer{Marker: &PointMarker{TripID: t.ID, Point: dest, Color: info.Color, Role: RoleDestination}},
		)
	}
	if !bounds.IsEmpty() {
		frame.Bounds = &bounds
	}
	return frame
}

// Popup renders the text attached to a trip's line, e.g.
//
//	Taipei ➝ Tokyo
//	Plane | 2024-05-15 09:30
//	TWD 8500
func Popup(t *trip.Trip) string {
	var b strings.Builder
	b.WriteString(placeName(t.OriginPlace, t.OriginRegion))
	b.WriteString(" ➝ ")
	b.WriteString(placeName(t.DestPlace, t.DestRegion))
	b.WriteString("\n")
	b.WriteString(t.Info().Label)
	b.WriteString(" | ")
	b.WriteString(t.StartDisplay())
	if t.Cost != nil && t.Cost.Amount != 0 {
		fmt.Fprintf(&b, "\n%s %s", t.Cost.Currency, strconv.FormatFloat(t.Cost.Amount, 'f', -1, 64))
	}
	return b.String()
}

func placeName(place, region string) string {
	if place != "" {
		return place
	}
	return region
}

// Lines returns the route lines in layer order
func (f Frame) Lines() []*RouteLine {
	var lines []*RouteLine
	for _, l := range f.Layers {
		if l.Line != nil {
			lines = append(lines, l.Line)
		}
	}
	return lines
}

// Markers returns the point markers in layer order
func (f Frame) Markers() []*PointMarker {
	var markers []*PointMarker
	for _, l := range f.Layers {
		if l.Marker != nil {
			markers = append(markers, l.Marker)
		}
	}
	return markers
}

// Equal compares frames ignoring layer order
func (f Frame) Equal(other Frame) bool {
	if f.Today != other.Today || f.Filter != other.Filter || f.DateRangeText != other.DateRangeText {
		return false
	}
	if !f.Visited.Equal(other.Visited) {
		return false
	}
	if (f.Bounds == nil) != (other.Bounds == nil) || (f.Bounds != nil && *f.Bounds != *other.Bounds) {
		return false
	}
	a, b := layerKeys(f.Layers), layerKeys(other.Layers)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func layerKeys(layers []Layer) []string {
	keys := make([]string, len(layers))
	for i, l := range layers {
		switch {
		case l.Line != nil:
			keys[i] = fmt.Sprintf("line:%+v", *l.Line)
		case l.Marker != nil:
			keys[i] = fmt.Sprintf("marker:%+v", *l.Marker)
		}
	}
	sort.Strings(keys)
	return keys
}
