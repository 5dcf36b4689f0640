package services

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/dpup/tripmap/internal/lib/geo"
	"github.com/dpup/tripmap/internal/lib/routing"
	"github.com/dpup/tripmap/internal/lib/trip"
	"github.com/dpup/tripmap/internal/store"
)

// TripService validates trips, attaches ground routes and persists them
type TripService struct {
	store    store.Store
	acquirer *routing.Acquirer
}

// NewTripService creates a new trip service. acquirer may be nil to disable
// ground routing.
func NewTripService(s store.Store, acquirer *routing.Acquirer) *TripService {
	return &TripService{store: s, acquirer: acquirer}
}

// Save creates the trip when id is empty and replaces it otherwise. Ground
// routes are owned by the service: any route on the input is ignored, an
// existing route is kept while the endpoints and kind are unchanged, and a
// new one is fetched otherwise. Routing failures never fail the save; the
// trip is stored without a route and rendered as a straight line.
func (s *TripService) Save(ctx context.Context, owner, id string, t trip.Trip) (trip.Trip, error) {
	t = t.Clone()
	if err := t.Validate(); err != nil {
		return trip.Trip{}, err
	}
	t.GroundRoute = nil

	var existing *trip.Trip
	if id != "" {
		current, err := s.store.Get(ctx, owner, id)
		if err != nil {
			return trip.Trip{}, err
		}
		existing = &current
	}

	if t.Info().UsesGroundRoute {
		if existing != nil && sameLeg(existing, &t) && len(existing.GroundRoute) > 0 {
			t.GroundRoute = existing.GroundRoute
		} else {
			t.GroundRoute = s.acquirer.Acquire(ctx, &t)
		}
	}

	var (
		saved trip.Trip
		err   error
	)
	if existing == nil {
		saved, err = s.store.Create(ctx, owner, t)
	} else {
		saved, err = s.store.Update(ctx, owner, id, t)
	}
	if err != nil {
		return trip.Trip{}, fmt.Errorf("failed to save trip: %w", err)
	}

	log.Printf("Saved %s trip %s for %s (ground route points: %d)", saved.Transport, saved.ID, owner, len(saved.GroundRoute))
	return saved, nil
}

// Get returns one trip
func (s *TripService) Get(ctx context.Context, owner, id string) (trip.Trip, error) {
	return s.store.Get(ctx, owner, id)
}

// List returns the owner's trips, newest first
func (s *TripService) List(ctx context.Context, owner string) ([]trip.Trip, error) {
	return s.store.List(ctx, owner)
}

// Delete removes a trip
func (s *TripService) Delete(ctx context.Context, owner, id string) error {
	return s.store.Delete(ctx, owner, id)
}

// sameLeg reports whether a stored route still applies to the updated trip
func sameLeg(a, b *trip.Trip) bool {
	if a.Info().Kind != b.Info().Kind {
		return false
	}
	ao, aok := a.Origin()
	bo, bok := b.Origin()
	ad, adok := a.Destination()
	bd, bdok := b.Destination()
	return aok && bok && adok && bdok && samePoint(ao, bo) && samePoint(ad, bd)
}

// samePoint compares at the 1e-5 degree precision routes are stored with
func samePoint(a, b geo.Point) bool {
	const eps = 5e-6
	return math.Abs(a.Latitude-b.Latitude) < eps && math.Abs(a.Longitude-b.Longitude) < eps
}
