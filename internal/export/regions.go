package export

import (
	"fmt"
	"os"
	"sort"

	geojson "github.com/paulmach/go.geojson"
)

// DefaultRegionNameProperty is the feature property holding the region name
// in world.geo.json style boundary files.
const DefaultRegionNameProperty = "name"

// Regions holds region boundary polygons keyed by region name. Image exports
// shade them with the visited-region fill.
type Regions struct {
	shapes map[string][][][][]float64 // name -> polygons -> rings -> lon,lat
}

// LoadRegions reads a GeoJSON FeatureCollection of region boundaries
func LoadRegions(path, nameProperty string) (*Regions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read regions file: %w", err)
	}
	return ParseRegions(data, nameProperty)
}

// ParseRegions decodes region boundaries. Features without a name or without
// a Polygon/MultiPolygon geometry are skipped.
func ParseRegions(data []byte, nameProperty string) (*Regions, error) {
	if nameProperty == "" {
		nameProperty = DefaultRegionNameProperty
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regions: %w", err)
	}

	r := &Regions{shapes: make(map[string][][][][]float64)}
	for _, f := range fc.Features {
		name := f.PropertyMustString(nameProperty)
		if name == "" || f.Geometry == nil {
			continue
		}
		switch {
		case f.Geometry.IsPolygon():
			r.shapes[name] = append(r.shapes[name], f.Geometry.Polygon)
		case f.Geometry.IsMultiPolygon():
			r.shapes[name] = append(r.shapes[name], f.Geometry.MultiPolygon...)
		}
	}
	return r, nil
}

// Len returns the number of named regions
func (r *Regions) Len() int {
	if r == nil {
		return 0
	}
	return len(r.shapes)
}

// Names returns the region names in sorted order
func (r *Regions) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.shapes))
	for name := range r.shapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Regions) polygons(name string) [][][][]float64 {
	if r == nil {
		return nil
	}
	return r.shapes[name]
}
