package trip

import (
	"time"

	"github.com/dpup/tripmap/internal/lib/geo"
	"github.com/dpup/tripmap/internal/lib/transport"
)

// Trip is one logged journey segment. The store owns trips; rendering code
// only reads snapshots and never mutates them.
type Trip struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`

	OriginRegion string   `json:"origin_region,omitempty"`
	OriginPlace  string   `json:"origin_place,omitempty"`
	OriginLat    *float64 `json:"origin_lat,omitempty"`
	OriginLng    *float64 `json:"origin_lng,omitempty"`

	DestRegion string   `json:"dest_region,omitempty"`
	DestPlace  string   `json:"dest_place,omitempty"`
	DestLat    *float64 `json:"dest_lat,omitempty"`
	DestLng    *float64 `json:"dest_lng,omitempty"`

	DateStart string `json:"date_start,omitempty"` // YYYY-MM-DD
	TimeStart string `json:"time_start,omitempty"` // HH:MM
	DateEnd   string `json:"date_end,omitempty"`
	TimeEnd   string `json:"time_end,omitempty"`

	Transport     transport.Kind      `json:"transport"`
	Cost          *Money              `json:"cost,omitempty"`
	CarrierNumber string              `json:"carrier_number,omitempty"`
	SeatNumber    string              `json:"seat_number,omitempty"`
	SeatClass     transport.SeatClass `json:"seat_class,omitempty"`
	Notes         string              `json:"notes,omitempty"`

	// GroundRoute is set at save time for routed kinds when the routing
	// service answered. Endpoints may be snapped to roads.
	GroundRoute []geo.Point `json:"ground_route,omitempty"`

	// TargetRegion tags the region a trip was created from; it only feeds
	// the visited-region highlight.
	TargetRegion string `json:"target_region,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Money is a cost in a given currency
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// DateRange is an inclusive range of ISO dates. Either bound may be empty.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}
