// Package export renders frames as GeoJSON, KML and PNG.
package export

import (
	geojson "github.com/paulmach/go.geojson"

	"github.com/dpup/tripmap/internal/lib/geo"
	"github.com/dpup/tripmap/internal/lib/render"
)

// Values of the "kind" feature property
const (
	KindRouteLine   = "route_line"
	KindPointMarker = "point_marker"
)

// GeoJSON converts a frame to a feature collection using simplestyle
// property names (stroke, marker-color) so generic viewers style it too.
func GeoJSON(frame render.Frame) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, layer := range frame.Layers {
		switch {
		case layer.Line != nil:
			fc.AddFeature(lineFeature(layer.Line))
		case layer.Marker != nil:
			fc.AddFeature(markerFeature(layer.Marker))
		}
	}
	return fc
}

func lineFeature(line *render.RouteLine) *geojson.Feature {
	f := geojson.NewLineStringFeature(lngLats(line.Points))
	f.SetProperty("kind", KindRouteLine)
	f.SetProperty("trip_id", line.TripID)
	f.SetProperty("transport", string(line.Transport))
	f.SetProperty("source", string(line.Source))
	f.SetProperty("stroke", line.Color)
	f.SetProperty("stroke-width", render.LineWeight)
	f.SetProperty("stroke-opacity", render.LineOpacity)
	f.SetProperty("dashed", line.Dashed)
	if line.Dashed {
		f.SetProperty("stroke-dasharray", render.DashPattern)
	}
	f.SetProperty("popup", line.Popup)
	return f
}

func markerFeature(marker *render.PointMarker) *geojson.Feature {
	f := geojson.NewPointFeature([]float64{marker.Point.Longitude, marker.Point.Latitude})
	f.SetProperty("kind", KindPointMarker)
	f.SetProperty("trip_id", marker.TripID)
	f.SetProperty("role", string(marker.Role))
	f.SetProperty("marker-color", marker.Color)
	f.SetProperty("radius", render.MarkerRadius)
	return f
}

// lngLats converts points to GeoJSON coordinate order
func lngLats(points []geo.Point) [][]float64 {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Longitude, p.Latitude}
	}
	return coords
}
