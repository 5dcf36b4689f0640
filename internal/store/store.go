// Package store persists trips per map owner and pushes full snapshots to
// subscribers after every change.
package store

import (
	"context"
	"errors"

	"github.com/dpup/tripmap/internal/lib/trip"
)

// ErrNotFound is returned when a trip does not exist for the owner
var ErrNotFound = errors.New("trip not found")

// Store is the trip persistence collaborator. Snapshots are ordered newest
// first and are never mutated after delivery.
type Store interface {
	// Subscribe delivers the owner's current snapshot immediately and a new
	// one after each change. A slow reader only sees the latest snapshot.
	// The channel is closed when ctx is done.
	Subscribe(ctx context.Context, owner string) (<-chan []trip.Trip, error)

	List(ctx context.Context, owner string) ([]trip.Trip, error)
	Get(ctx context.Context, owner, id string) (trip.Trip, error)

	// Create assigns an ID when t.ID is empty and returns the stored trip
	Create(ctx context.Context, owner string, t trip.Trip) (trip.Trip, error)

	// Update replaces every field of an existing trip except CreatedAt
	Update(ctx context.Context, owner, id string, t trip.Trip) (trip.Trip, error)

	Delete(ctx context.Context, owner, id string) error
}
