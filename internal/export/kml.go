package export

import (
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"

	"github.com/twpayne/go-kml"

	"github.com/dpup/tripmap/internal/lib/render"
)

// KML writes the frame as a KML document: one placemark per route line and
// marker, plus a folder naming the visited regions.
func KML(w io.Writer, frame render.Frame, title string) error {
	styles := map[string]*kml.SharedElement{}
	var styleElements []kml.Element
	styleFor := func(id string, build func() *kml.SharedElement) string {
		if s, ok := styles[id]; ok {
			return s.URL()
		}
		s := build()
		styles[id] = s
		styleElements = append(styleElements, s)
		return s.URL()
	}

	var lines, markers []kml.Element
	for _, layer := range frame.Layers {
		switch {
		case layer.Line != nil:
			line := layer.Line
			c := parseHexColor(line.Color)
			id := "line-" + strings.TrimPrefix(line.Color, "#")
			width := float64(render.LineWeight)
			if line.Dashed {
				// KML has no dash pattern; planned trips are drawn thinner and translucent
				id += "-planned"
				c.A = 0x80
				width = 2
			} else {
				c.A = uint8(render.LineOpacity * 255)
			}
			url := styleFor(id, func() *kml.SharedElement {
				return kml.SharedStyle(id, kml.LineStyle(kml.Color(c), kml.Width(width)))
			})
			lines = append(lines, kml.Placemark(
				kml.Name(firstLine(line.Popup)),
				kml.Description(line.Popup),
				kml.StyleURL(url),
				kml.LineString(
					kml.Tessellate(true),
					kml.Coordinates(coordinates(line)...),
				),
			))
		case layer.Marker != nil:
			m := layer.Marker
			id := "marker-" + strings.TrimPrefix(m.Color, "#")
			url := styleFor(id, func() *kml.SharedElement {
				return kml.SharedStyle(id, kml.IconStyle(kml.Color(parseHexColor(m.Color)), kml.Scale(0.5)))
			})
			markers = append(markers, kml.Placemark(
				kml.Name(fmt.Sprintf("%s (%s)", m.TripID, m.Role)),
				kml.StyleURL(url),
				kml.Point(kml.Coordinates(kml.Coordinate{Lon: m.Point.Longitude, Lat: m.Point.Latitude})),
			))
		}
	}

	var regions []kml.Element
	for _, region := range frame.Visited.Sorted() {
		regions = append(regions, kml.Placemark(kml.Name(region)))
	}

	description := "Trips"
	if frame.DateRangeText != "" {
		description = frame.DateRangeText
	}

	children := []kml.Element{kml.Name(title), kml.Description(description)}
	children = append(children, styleElements...)
	children = append(children,
		kml.Folder(append([]kml.Element{kml.Name("Routes")}, lines...)...),
		kml.Folder(append([]kml.Element{kml.Name("Endpoints")}, markers...)...),
		kml.Folder(append([]kml.Element{kml.Name("Visited regions")}, regions...)...),
	)

	if err := kml.KML(kml.Document(children...)).WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write KML: %w", err)
	}
	return nil
}

func coordinates(line *render.RouteLine) []kml.Coordinate {
	coords := make([]kml.Coordinate, len(line.Points))
	for i, p := range line.Points {
		coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
	}
	return coords
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// parseHexColor parses "#rrggbb". Invalid input yields opaque black.
func parseHexColor(hex string) color.RGBA {
	hex = strings.TrimPrefix(hex, "#")
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || len(hex) != 6 {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
