package trip

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/dpup/tripmap/internal/lib/geo"
	"github.com/dpup/tripmap/internal/lib/transport"
)

// ISODate is the layout for DateStart/DateEnd
const ISODate = "2006-01-02"

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid trip")

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Origin returns the origin coordinate if both parts are set
func (t *Trip) Origin() (geo.Point, bool) {
	if t.OriginLat == nil || t.OriginLng == nil {
		return geo.Point{}, false
	}
	return geo.Point{Latitude: *t.OriginLat, Longitude: *t.OriginLng}, true
}

// Destination returns the destination coordinate if both parts are set
func (t *Trip) Destination() (geo.Point, bool) {
	if t.DestLat == nil || t.DestLng == nil {
		return geo.Point{}, false
	}
	return geo.Point{Latitude: *t.DestLat, Longitude: *t.DestLng}, true
}

// SetOrigin sets both origin coordinates
func (t *Trip) SetOrigin(p geo.Point) {
	lat, lng := p.Latitude, p.Longitude
	t.OriginLat, t.OriginLng = &lat, &lng
}

// SetDestination sets both destination coordinates
func (t *Trip) SetDestination(p geo.Point) {
	lat, lng := p.Latitude, p.Longitude
	t.DestLat, t.DestLng = &lat, &lng
}

// HasLine reports whether the trip can be drawn as a line
func (t *Trip) HasLine() bool {
	_, okOrigin := t.Origin()
	_, okDest := t.Destination()
	return okOrigin && okDest
}

// Info returns the taxonomy entry for the trip's transport kind
func (t *Trip) Info() transport.Info {
	return transport.Lookup(t.Transport)
}

// StartedBy reports whether the trip has a start date on or before today.
// Trips without a start date have not started.
func (t *Trip) StartedBy(today string) bool {
	return t.DateStart != "" && t.DateStart <= today
}

// StartDisplay formats start date and time for popups, e.g. "2024-05-15 09:30"
func (t *Trip) StartDisplay() string {
	if t.DateStart == "" {
		return ""
	}
	if t.TimeStart == "" {
		return t.DateStart
	}
	return t.DateStart + " " + t.TimeStart
}

// Clone returns a deep copy
func (t Trip) Clone() Trip {
	c := t
	c.OriginLat = cloneFloat(t.OriginLat)
	c.OriginLng = cloneFloat(t.OriginLng)
	c.DestLat = cloneFloat(t.DestLat)
	c.DestLng = cloneFloat(t.DestLng)
	if t.Cost != nil {
		cost := *t.Cost
		c.Cost = &cost
	}
	if t.GroundRoute != nil {
		c.GroundRoute = append([]geo.Point(nil), t.GroundRoute...)
	}
	return c
}

// Validate checks field formats. Unknown transport kinds are accepted and
// rendered with the default taxonomy entry.
func (t *Trip) Validate() error {
	for name, value := range map[string]string{"date_start": t.DateStart, "date_end": t.DateEnd} {
		if value != "" && !IsISODate(value) {
			return fmt.Errorf("%w: %s %q is not YYYY-MM-DD", ErrInvalid, name, value)
		}
	}
	for name, value := range map[string]string{"time_start": t.TimeStart, "time_end": t.TimeEnd} {
		if value != "" && !clockPattern.MatchString(value) {
			return fmt.Errorf("%w: %s %q is not HH:MM", ErrInvalid, name, value)
		}
	}
	if (t.OriginLat == nil) != (t.OriginLng == nil) {
		return fmt.Errorf("%w: origin needs both latitude and longitude", ErrInvalid)
	}
	if (t.DestLat == nil) != (t.DestLng == nil) {
		return fmt.Errorf("%w: destination needs both latitude and longitude", ErrInvalid)
	}
	if p, ok := t.Origin(); ok && !p.IsValid() {
		return fmt.Errorf("%w: origin coordinates out of range", ErrInvalid)
	}
	if p, ok := t.Destination(); ok && !p.IsValid() {
		return fmt.Errorf("%w: destination coordinates out of range", ErrInvalid)
	}
	if !t.SeatClass.Valid() {
		return fmt.Errorf("%w: unknown seat class %q", ErrInvalid, t.SeatClass)
	}
	if t.Cost != nil {
		if t.Cost.Amount < 0 {
			return fmt.Errorf("%w: cost must not be negative", ErrInvalid)
		}
		if !transport.IsCurrency(t.Cost.Currency) {
			return fmt.Errorf("%w: unsupported currency %q", ErrInvalid, t.Cost.Currency)
		}
	}
	if len(t.GroundRoute) == 1 {
		return fmt.Errorf("%w: ground route needs at least two points", ErrInvalid)
	}
	return nil
}

// IsISODate reports whether s is a real calendar date in YYYY-MM-DD form
func IsISODate(s string) bool {
	if len(s) != len(ISODate) {
		return false
	}
	_, err := time.Parse(ISODate, s)
	return err == nil
}

// DateOf formats t as an ISO date in UTC
func DateOf(t time.Time) string {
	return t.UTC().Format(ISODate)
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
