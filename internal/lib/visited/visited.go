// Package visited derives the set of regions a traveller has been to.
package visited

import (
	"sort"

	"github.com/dpup/tripmap/internal/lib/trip"
)

// Fill is the polygon style for a region on the map
type Fill struct {
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
}

var (
	// Highlight marks visited regions
	Highlight = Fill{Color: "#fcd34d", Opacity: 0.8}
	// Base is used for every other region
	Base = Fill{Color: "#cbd5e1", Opacity: 0.5}
)

// Set is an unordered set of region names
type Set map[string]struct{}

// Aggregate collects the destination, origin and target regions of every trip
// that started on or before today. Undated and future trips contribute nothing.
func Aggregate(trips []trip.Trip, today string) Set {
	set := make(Set)
	for i := range trips {
		t := &trips[i]
		if !t.StartedBy(today) {
			continue
		}
		set.add(t.DestRegion)
		set.add(t.OriginRegion)
		set.add(t.TargetRegion)
	}
	return set
}

func (s Set) add(region string) {
	if region != "" {
		s[region] = struct{}{}
	}
}

// Has reports whether region was visited
func (s Set) Has(region string) bool {
	_, ok := s[region]
	return ok
}

// Len returns the number of regions
func (s Set) Len() int {
	return len(s)
}

// Sorted returns region names in lexical order
func (s Set) Sorted() []string {
	regions := make([]string, 0, len(s))
	for region := range s {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions
}

// Equal reports whether both sets hold the same regions
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for region := range s {
		if !other.Has(region) {
			return false
		}
	}
	return true
}

// Style returns the fill for region
func (s Set) Style(region string) Fill {
	if s.Has(region) {
		return Highlight
	}
	return Base
}
