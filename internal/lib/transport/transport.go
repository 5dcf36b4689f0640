// Package transport holds the static transport taxonomy used to style and
// route trips. All tables are immutable after package initialization.
package transport

import "strings"

// Kind identifies how a trip was travelled
type Kind string

const (
	Plane Kind = "plane"
	Train Kind = "train"
	Bus   Kind = "bus"
	Car   Kind = "car"
	Boat  Kind = "boat"
)

// Info describes how a transport kind is displayed and routed
type Info struct {
	Kind  Kind
	Label string
	Color string // hex, e.g. "#2563eb"

	// UsesGroundRoute is true for kinds that follow roads or rails and get a
	// polyline from the routing service at save time.
	UsesGroundRoute bool

	// GreatCircle is true for kinds drawn as curved great-circle arcs.
	GreatCircle bool
}

// Boat is neither routed nor curved; it is drawn as a straight line.
var taxonomy = [...]Info{
	{Kind: Plane, Label: "Plane", Color: "#2563eb", UsesGroundRoute: false, GreatCircle: true},
	{Kind: Train, Label: "Train", Color: "#dc2626", UsesGroundRoute: true},
	{Kind: Bus, Label: "Bus", Color: "#15803d", UsesGroundRoute: true},
	{Kind: Car, Label: "Car", Color: "#84cc16", UsesGroundRoute: true},
	{Kind: Boat, Label: "Boat", Color: "#000000", UsesGroundRoute: false},
}

// Default is the kind used for unrecognized values
const Default = Plane

// Lookup returns the taxonomy entry for kind. Unknown kinds get the plane entry.
func Lookup(kind Kind) Info {
	for _, info := range taxonomy {
		if info.Kind == kind {
			return info
		}
	}
	return taxonomy[0]
}

// Known reports whether kind is part of the taxonomy
func Known(kind Kind) bool {
	for _, info := range taxonomy {
		if info.Kind == kind {
			return true
		}
	}
	return false
}

// Kinds returns all transport kinds in display order
func Kinds() []Kind {
	kinds := make([]Kind, len(taxonomy))
	for i, info := range taxonomy {
		kinds[i] = info.Kind
	}
	return kinds
}

// ParseKind normalizes user input. Unknown values are returned as-is so the
// caller can still store them; Lookup handles the fallback.
func ParseKind(s string) Kind {
	return Kind(strings.ToLower(strings.TrimSpace(s)))
}

// Info returns the taxonomy entry for k
func (k Kind) Info() Info {
	return Lookup(k)
}
