package export

import (
	"math"

	sm "github.com/flopp/go-staticmaps"
	"github.com/fogleman/gg"
	"github.com/golang/geo/s2"

	"github.com/dpup/tripmap/internal/lib/render"
	"github.com/dpup/tripmap/internal/lib/visited"
)

// regionBorder matches the white outline of region polygons on the web map
const regionBorder = 1

// regionShape fills one region's polygons. It implements sm.MapObject.
type regionShape struct {
	polygons [][][][]float64
	fill     visited.Fill
}

func (r *regionShape) Bounds() s2.Rect {
	rect := s2.EmptyRect()
	for _, polygon := range r.polygons {
		for _, ring := range polygon {
			for _, c := range ring {
				if len(c) >= 2 {
					rect = rect.AddPoint(s2.LatLngFromDegrees(c[1], c[0]))
				}
			}
		}
	}
	return rect
}

func (r *regionShape) ExtraMarginPixels() (float64, float64, float64, float64) {
	return 0, 0, 0, 0
}

func (r *regionShape) Draw(dc *gg.Context, t *sm.Transformer) {
	for _, polygon := range r.polygons {
		for _, ring := range polygon {
			lls := make([]s2.LatLng, 0, len(ring))
			for _, c := range ring {
				if len(c) >= 2 {
					lls = append(lls, s2.LatLngFromDegrees(c[1], c[0]))
				}
			}
			dc.NewSubPath()
			for _, px := range projectPath(t, lls, float64(dc.Width())) {
				dc.LineTo(px.x, px.y)
			}
			dc.ClosePath()
		}
	}
	fill := parseHexColor(r.fill.Color)
	fill.A = uint8(r.fill.Opacity * 255)
	dc.SetFillRuleEvenOdd()
	dc.SetColor(fill)
	dc.FillPreserve()
	dc.SetRGB(1, 1, 1)
	dc.SetLineWidth(regionBorder)
	dc.Stroke()
}

// routePath strokes one trip's line
type routePath struct {
	line *render.RouteLine
}

func (p *routePath) Bounds() s2.Rect {
	rect := s2.EmptyRect()
	for _, pt := range p.line.Points {
		rect = rect.AddPoint(s2.LatLngFromDegrees(pt.Latitude, pt.Longitude))
	}
	return rect
}

func (p *routePath) ExtraMarginPixels() (float64, float64, float64, float64) {
	m := float64(render.LineWeight) / 2
	return m, m, m, m
}

func (p *routePath) Draw(dc *gg.Context, t *sm.Transformer) {
	if len(p.line.Points) < 2 {
		return
	}
	lls := make([]s2.LatLng, len(p.line.Points))
	for i, pt := range p.line.Points {
		lls[i] = s2.LatLngFromDegrees(pt.Latitude, pt.Longitude)
	}
	for i, px := range projectPath(t, lls, float64(dc.Width())) {
		if i == 0 {
			dc.MoveTo(px.x, px.y)
		} else {
			dc.LineTo(px.x, px.y)
		}
	}
	c := parseHexColor(p.line.Color)
	c.A = uint8(render.LineOpacity * 255)
	dc.SetColor(c)
	dc.SetLineWidth(render.LineWeight)
	if p.line.Dashed {
		dc.SetDash(10, 10)
	} else {
		dc.SetDash()
	}
	dc.Stroke()
	dc.SetDash()
}

// markerDot is a filled circle at a trip endpoint
type markerDot struct {
	marker *render.PointMarker
}

func (m *markerDot) Bounds() s2.Rect {
	return s2.RectFromLatLng(s2.LatLngFromDegrees(m.marker.Point.Latitude, m.marker.Point.Longitude))
}

func (m *markerDot) ExtraMarginPixels() (float64, float64, float64, float64) {
	r := float64(render.MarkerRadius)
	return r, r, r, r
}

func (m *markerDot) Draw(dc *gg.Context, t *sm.Transformer) {
	x, y := t.LatLngToXY(s2.LatLngFromDegrees(m.marker.Point.Latitude, m.marker.Point.Longitude))
	dc.DrawCircle(x, y, render.MarkerRadius)
	dc.SetColor(parseHexColor(m.marker.Color))
	dc.Fill()
}

type pixel struct{ x, y float64 }

// projectPath maps a connected path to canvas pixels. sm.Transformer wraps
// every off-view point on its own, which tears paths that cross the
// antimeridian or leave the view, so consecutive points are kept within half
// a world of each other and the whole path is then shifted by whole worlds to
// sit nearest the middle of the canvas.
func projectPath(t *sm.Transformer, lls []s2.LatLng, canvasWidth float64) []pixel {
	if len(lls) == 0 {
		return nil
	}
	world := worldWidth(t)
	out := make([]pixel, len(lls))
	minX, maxX := math.Inf(1), math.Inf(-1)
	for i, ll := range lls {
		x, y := t.LatLngToXY(ll)
		if i > 0 && world > 0 {
			prev := out[i-1].x
			for x-prev > world/2 {
				x -= world
			}
			for prev-x > world/2 {
				x += world
			}
		}
		out[i] = pixel{x: x, y: y}
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
	}
	if world > 0 {
		if shift := math.Round((canvasWidth/2-(minX+maxX)/2)/world) * world; shift != 0 {
			for i := range out {
				out[i].x += shift
			}
		}
	}
	return out
}

// worldWidth is the pixel width of 360 degrees of longitude at the
// transformer's zoom
func worldWidth(t *sm.Transformer) float64 {
	d := t.XYToLatLng(1, 0).Lng.Degrees() - t.XYToLatLng(0, 0).Lng.Degrees()
	if d < -180 {
		d += 360
	}
	if d <= 0 {
		return 0
	}
	return 360 / d
}
