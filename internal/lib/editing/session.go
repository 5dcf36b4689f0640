// Package editing tracks open trip forms and applies geocoding results to
// them in request order.
package editing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dpup/tripmap/internal/lib/geo"
	"github.com/dpup/tripmap/internal/lib/trip"
)

var (
	// ErrStale is returned when a newer lookup, a manual pick or Close
	// superseded the request. The result was discarded.
	ErrStale = errors.New("geocode result is stale")

	// ErrNotFound is returned when the geocoder found nothing. The draft is
	// left unchanged and can still be saved.
	ErrNotFound = errors.New("place not found")
)

// Field selects which endpoint of the trip a lookup fills in
type Field string

const (
	Origin      Field = "origin"
	Destination Field = "destination"
)

// Geocoder resolves a place name within a region. It returns nil, nil when
// nothing matches.
type Geocoder interface {
	Resolve(ctx context.Context, place, region string) (*geo.Point, error)
}

// Session is one open trip form
type Session struct {
	geocoder Geocoder

	mu          sync.Mutex
	draft       trip.Trip
	generations map[Field]uint64
	closed      bool
}

// NewSession opens a form for draft. The draft is copied.
func NewSession(geocoder Geocoder, draft trip.Trip) *Session {
	return &Session{
		geocoder:    geocoder,
		draft:       draft.Clone(),
		generations: make(map[Field]uint64),
	}
}

// Lookup geocodes place for field and applies the coordinates if no later
// lookup, pick or Close happened in the meantime. It also records place and
// region on the draft.
func (s *Session) Lookup(ctx context.Context, field Field, place, region string) (geo.Point, error) {
	if err := field.validate(); err != nil {
		return geo.Point{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return geo.Point{}, ErrStale
	}
	s.generations[field]++
	gen := s.generations[field]
	s.setNamesLocked(field, place, region)
	s.mu.Unlock()

	point, err := s.geocoder.Resolve(ctx, place, region)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.generations[field] != gen {
		return geo.Point{}, ErrStale
	}
	if err != nil {
		return geo.Point{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if point == nil {
		return geo.Point{}, ErrNotFound
	}
	s.setPointLocked(field, *point)
	return *point, nil
}

// SetCoordinates applies a manually picked point. In-flight lookups for the
// same field are invalidated.
func (s *Session) SetCoordinates(field Field, point geo.Point) error {
	if err := field.validate(); err != nil {
		return err
	}
	if !point.IsValid() {
		return fmt.Errorf("%w: coordinates out of range", trip.ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStale
	}
	s.generations[field]++
	s.setPointLocked(field, point)
	return nil
}

// Close ends the session. Responses arriving afterwards are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed reports whether Close was called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Draft returns a copy of the trip being edited
func (s *Session) Draft() trip.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

func (s *Session) setNamesLocked(field Field, place, region string) {
	if field == Origin {
		s.draft.OriginPlace, s.draft.OriginRegion = place, region
	} else {
		s.draft.DestPlace, s.draft.DestRegion = place, region
	}
}

func (s *Session) setPointLocked(field Field, p geo.Point) {
	if field == Origin {
		s.draft.SetOrigin(p)
	} else {
		s.draft.SetDestination(p)
	}
}

func (f Field) validate() error {
	if f != Origin && f != Destination {
		return fmt.Errorf("%w: unknown field %q", trip.ErrInvalid, f)
	}
	return nil
}
