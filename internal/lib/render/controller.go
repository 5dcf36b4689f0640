package render

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/tripmap/internal/lib/trip"
	"github.com/dpup/tripmap/internal/metrics"
)

// Controller keeps the latest trip snapshot and date filter for one map and
// pushes a complete new frame to its sink whenever either changes. Refreshes
// always replace the previous frame; nothing is patched incrementally.
type Controller struct {
	mu        sync.Mutex
	sink      Sink
	snapshot  []trip.Trip
	filter    trip.DateRange
	arcPoints int
	now       func() time.Time
	metrics   *metrics.Collector
	current   Frame
	refreshes int
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithArcPoints sets the great-circle resolution
func WithArcPoints(n int) ControllerOption {
	return func(c *Controller) { c.arcPoints = n }
}

// WithClock overrides time.Now for computing today
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithCollector records refreshes
func WithCollector(m *metrics.Collector) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

// NewController creates a controller. sink may be nil.
func NewController(sink Sink, opts ...ControllerOption) *Controller {
	c := &Controller{sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.current = c.computeLocked()
	return c
}

// Refresh replaces the snapshot and re-renders
func (c *Controller) Refresh(snapshot []trip.Trip) Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = snapshot
	return c.renderLocked()
}

// SetFilter replaces the date filter and re-renders
func (c *Controller) SetFilter(r trip.DateRange) (Frame, error) {
	if err := r.Validate(); err != nil {
		return Frame{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = r
	return c.renderLocked(), nil
}

// Rerender recomputes from the current snapshot, picking up a new "today"
func (c *Controller) Rerender() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderLocked()
}

// Current returns the last rendered frame
func (c *Controller) Current() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Snapshot returns the trips last passed to Refresh. Callers must treat the
// slice as read-only.
func (c *Controller) Snapshot() []trip.Trip {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Today returns the date the current frame was rendered for
func (c *Controller) Today() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Today
}

// Refreshes counts completed renders, excluding the initial empty frame
func (c *Controller) Refreshes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes
}

// Run refreshes from each snapshot received on updates until ctx is done or
// the channel is closed. A panicking sink stops the loop and is logged.
func (c *Controller) Run(ctx context.Context, updates <-chan []trip.Trip) {
	ctx = logging.EnsureLogger(ctx)
	defer func() {
		if r := recover(); r != nil {
			err, _ := errors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			logging.Errorw(ctx, "Render controller: recovered from panic",
				"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			c.Refresh(snapshot)
		}
	}
}

func (c *Controller) renderLocked() Frame {
	c.current = c.computeLocked()
	c.refreshes++
	lines := len(c.current.Lines())
	c.metrics.Refreshed(lines, len(c.current.Layers)-lines)
	if c.sink != nil {
		c.sink.Render(c.current)
	}
	return c.current
}

func (c *Controller) computeLocked() Frame {
	return Compute(c.snapshot, Options{
		Today:     trip.DateOf(c.now()),
		Filter:    c.filter,
		ArcPoints: c.arcPoints,
	})
}
