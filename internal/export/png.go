package export

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	sm "github.com/flopp/go-staticmaps"
	"github.com/fogleman/gg"
	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/dpup/tripmap/internal/lib/render"
	"github.com/dpup/tripmap/internal/lib/trip"
)

// Defaults for image export
const (
	DefaultWidth        = 1600
	DefaultHeight       = 1200
	DefaultPadding      = 50
	DefaultTileProvider = "carto-light"
)

// Smallest span in degrees padded around a single point, and the latitude
// limit of the Web Mercator tiles.
const (
	minSpan        = 0.01
	maxMercatorLat = 85
)

// World view used when the frame has no markers
var (
	worldCenter = s2.LatLngFromDegrees(20, 0)
	worldZoom   = 2
)

// Options controls PNG rendering
type Options struct {
	Width   int
	Height  int
	Padding int // pixels kept free around the fitted trips

	// TileProvider names a go-staticmaps provider such as "carto-light" or
	// "osm". "none" or DisableTiles renders on a plain background.
	TileProvider string
	DisableTiles bool
	UserAgent    string

	// Regions are shaded with visited.Highlight or visited.Base. Nil draws
	// no region polygons.
	Regions *Regions
}

// DefaultOptions returns the export settings of the web map
func DefaultOptions() Options {
	return Options{
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		Padding:      DefaultPadding,
		TileProvider: DefaultTileProvider,
	}
}

// Image renders the frame over map tiles: fitted to the trips' bounds with
// padding, or a world view when there is nothing to fit. Regions in
// opts.Regions are shaded by whether the frame visited them.
func Image(frame render.Frame, opts Options) (image.Image, error) {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}

	ctx := sm.NewContext()
	ctx.SetSize(opts.Width, opts.Height)
	ctx.SetBackground(color.RGBA{0xf8, 0xfa, 0xfc, 0xff})
	if opts.DisableTiles || opts.TileProvider == "none" {
		// offline with no tile cache: every fetch misses and the background shows
		ctx.SetTileProvider(blankTiles())
		ctx.SetOnline(false)
		ctx.SetCache(nil)
	} else {
		ctx.SetTileProvider(tileProvider(opts.TileProvider))
	}
	if opts.UserAgent != "" {
		ctx.SetUserAgent(opts.UserAgent)
	}

	if frame.Bounds != nil {
		ctx.SetBoundingBox(paddedRect(frame, opts))
	} else {
		ctx.SetCenter(worldCenter)
		ctx.SetZoom(worldZoom)
	}

	for _, name := range opts.Regions.Names() {
		ctx.AddObject(&regionShape{polygons: opts.Regions.polygons(name), fill: frame.Visited.Style(name)})
	}
	for _, line := range frame.Lines() {
		ctx.AddObject(&routePath{line: line})
	}
	for _, marker := range frame.Markers() {
		ctx.AddObject(&markerDot{marker: marker})
	}

	base, err := ctx.Render()
	if err != nil {
		return nil, fmt.Errorf("failed to render map: %w", err)
	}

	dc := gg.NewContextForImage(base)
	drawCaption(dc, frame)

	return dc.Image(), nil
}

// PNG renders the frame and writes it as PNG
func PNG(w io.Writer, frame render.Frame, opts Options) error {
	img, err := Image(frame, opts)
	if err != nil {
		return err
	}
	dc := gg.NewContextForImage(img)
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

// Filename names an export the way the web app does, e.g.
// travel-map-all-2024-06-15.png or travel-map-2024-01-01-to-2024-03-31-2024-06-15.png
func Filename(filter trip.DateRange, today, ext string) string {
	rangeText := "all"
	if !filter.IsZero() {
		start, end := filter.Start, filter.End
		if start == "" {
			start = "any"
		}
		if end == "" {
			end = "any"
		}
		rangeText = start + "-to-" + end
	}
	return fmt.Sprintf("travel-map-%s-%s.%s", rangeText, today, ext)
}

func tileProvider(name string) *sm.TileProvider {
	if p, ok := sm.GetTileProviders()[name]; ok {
		return p
	}
	return sm.NewTileProviderCartoLight()
}

func blankTiles() *sm.TileProvider {
	return &sm.TileProvider{Name: "none", TileSize: 256, IgnoreNotFound: true}
}

// paddedRect grows the frame bounds so that, at the fitted zoom, roughly
// opts.Padding pixels stay free on each side. Arcs can bulge past the
// endpoint bounds so their points are included too.
func paddedRect(frame render.Frame, opts Options) s2.Rect {
	b := frame.Bounds
	south, west, north, east := b.South, b.West, b.North, b.East
	for _, line := range frame.Lines() {
		for _, p := range line.Points {
			south = math.Min(south, p.Latitude)
			north = math.Max(north, p.Latitude)
			west = math.Min(west, p.Longitude)
			east = math.Max(east, p.Longitude)
		}
	}

	padding := opts.Padding
	if padding < 0 {
		padding = 0
	}
	latSpan := math.Max(north-south, minSpan)
	lngSpan := math.Max(east-west, minSpan)
	fracY := float64(padding) / math.Max(float64(opts.Height-2*padding), 1)
	fracX := float64(padding) / math.Max(float64(opts.Width-2*padding), 1)

	south = math.Max(south-latSpan*fracY, -maxMercatorLat)
	north = math.Min(north+latSpan*fracY, maxMercatorLat)
	west = math.Max(west-lngSpan*fracX, -180)
	east = math.Min(east+lngSpan*fracX, 180)

	return s2.Rect{
		Lat: r1.Interval{Lo: radians(south), Hi: radians(north)},
		Lng: s1.IntervalFromEndpoints(radians(west), radians(east)),
	}
}

func radians(deg float64) float64 {
	return (s1.Angle(deg) * s1.Degree).Radians()
}

// drawCaption writes the date range in the lower left corner
func drawCaption(dc *gg.Context, frame render.Frame) {
	text := frame.DateRangeText
	if text == "" {
		return
	}
	const margin = 16
	w, h := dc.MeasureString(text)
	y := float64(dc.Height()) - margin - h - 8
	dc.SetColor(color.RGBA{0xff, 0xff, 0xff, 0xe6})
	dc.DrawRoundedRectangle(margin, y, w+16, h+8, 4)
	dc.Fill()
	dc.SetColor(color.RGBA{0x1f, 0x29, 0x37, 0xff})
	dc.DrawStringAnchored(text, margin+8, y+4+h/2, 0, 0.5)
}
