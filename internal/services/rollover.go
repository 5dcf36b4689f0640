package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dpup/tripmap/internal/lib/render"
	"github.com/dpup/tripmap/internal/lib/trip"
)

// ControllerSource lists the controllers to re-render on a date change
type ControllerSource interface {
	Controllers() []*render.Controller
}

// DayRollover re-renders every live map when the calendar date changes, so
// trips starting today become visited without a store update
type DayRollover struct {
	source   ControllerSource
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	stopChan chan struct{}
	running  bool
	today    string
}

// NewDayRollover creates a new rollover checker
func NewDayRollover(source ControllerSource, interval time.Duration) *DayRollover {
	if interval <= 0 {
		interval = time.Minute
	}
	return &DayRollover{
		source:   source,
		interval: interval,
		now:      time.Now,
	}
}

// Start begins checking the date in the background
func (d *DayRollover) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}

	d.running = true
	d.stopChan = make(chan struct{})
	d.today = trip.DateOf(d.now())

	log.Printf("Starting day rollover checks every %v", d.interval)
	go d.loop(ctx, d.stopChan)
}

// Stop halts the background checks
func (d *DayRollover) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}

	d.running = false
	close(d.stopChan)
	log.Printf("Stopped day rollover checks")
}

// IsRunning returns whether the checks are active
func (d *DayRollover) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *DayRollover) loop(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Day rollover stopping due to context cancellation")
			return
		case <-stop:
			return
		case <-ticker.C:
			d.check()
		}
	}
}

// check re-renders the maps when the date differs from the last check. It
// returns the number of controllers refreshed.
func (d *DayRollover) check() int {
	today := trip.DateOf(d.now())

	d.mu.Lock()
	if today == d.today {
		d.mu.Unlock()
		return 0
	}
	previous := d.today
	d.today = today
	d.mu.Unlock()

	controllers := d.source.Controllers()
	for _, c := range controllers {
		c.Rerender()
	}
	log.Printf("Date changed from %s to %s, re-rendered %d maps", previous, today, len(controllers))
	return len(controllers)
}
