package store

import (
	"sync"

	"github.com/dpup/tripmap/internal/lib/trip"
)

// broker fans snapshots out to per-owner subscribers. Each subscriber has a
// one-slot buffer; publishing replaces an unread snapshot with the newer one.
type broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan []trip.Trip
}

func newBroker() *broker {
	return &broker{subs: make(map[string]map[int]chan []trip.Trip)}
}

func (b *broker) subscribe(owner string, initial []trip.Trip) (int, chan []trip.Trip) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan []trip.Trip, 1)
	ch <- initial

	b.nextID++
	if b.subs[owner] == nil {
		b.subs[owner] = make(map[int]chan []trip.Trip)
	}
	b.subs[owner][b.nextID] = ch
	return b.nextID, ch
}

func (b *broker) unsubscribe(owner string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[owner][id]
	if !ok {
		return
	}
	delete(b.subs[owner], id)
	if len(b.subs[owner]) == 0 {
		delete(b.subs, owner)
	}
	close(ch)
}

func (b *broker) hasSubscribers(owner string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[owner]) > 0
}

func (b *broker) publish(owner string, snapshot []trip.Trip) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[owner] {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (b *broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for owner, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, owner)
	}
}
