package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dpup/tripmap/internal/lib/editing"
	"github.com/dpup/tripmap/internal/lib/geo"
	"github.com/dpup/tripmap/internal/lib/trip"
	"github.com/dpup/tripmap/internal/metrics"
)

var errDraftNotFound = errors.New("draft not found")

// draft is an open trip form. tripID is the stored trip being edited, empty for
// new trips.
type draft struct {
	owner   string
	tripID  string
	session *editing.Session
	touched time.Time
}

// DraftService keeps open trip forms so geocoding results can be applied in
// request order
type DraftService struct {
	trips    *TripService
	geocoder editing.Geocoder
	metrics  *metrics.Collector
	now      func() time.Time

	// saved runs after a draft is persisted
	saved func(ctx context.Context, owner string)

	mu     sync.Mutex
	drafts map[string]*draft
}

// NewDraftService creates a new draft service
func NewDraftService(trips *TripService, geocoder editing.Geocoder, m *metrics.Collector) *DraftService {
	return &DraftService{
		trips:    trips,
		geocoder: geocoder,
		metrics:  m,
		now:      time.Now,
		drafts:   make(map[string]*draft),
	}
}

// Open starts a form. When tripID is set the form is prefilled from the
// stored trip.
func (d *DraftService) Open(ctx context.Context, owner, tripID string, initial trip.Trip) (string, trip.Trip, error) {
	if tripID != "" {
		existing, err := d.trips.Get(ctx, owner, tripID)
		if err != nil {
			return "", trip.Trip{}, err
		}
		initial = existing
	}

	id := uuid.New().String()
	session := editing.NewSession(d.geocoder, initial)

	d.mu.Lock()
	d.drafts[id] = &draft{owner: owner, tripID: tripID, session: session, touched: d.now()}
	d.mu.Unlock()

	return id, session.Draft(), nil
}

// Lookup geocodes a place into one endpoint of the draft
func (d *DraftService) Lookup(ctx context.Context, owner, id string, field editing.Field, place, region string) (trip.Trip, geo.Point, error) {
	dr, err := d.get(owner, id)
	if err != nil {
		return trip.Trip{}, geo.Point{}, err
	}

	p, err := dr.session.Lookup(ctx, field, place, region)
	// the geocoder counts its own outcomes; only the discard is visible here
	if errors.Is(err, editing.ErrStale) {
		d.metrics.GeocodeLooked(metrics.OutcomeStale)
	}
	return dr.session.Draft(), p, err
}

// SetCoordinates applies a point picked on the map
func (d *DraftService) SetCoordinates(owner, id string, field editing.Field, p geo.Point) (trip.Trip, error) {
	dr, err := d.get(owner, id)
	if err != nil {
		return trip.Trip{}, err
	}
	if err := dr.session.SetCoordinates(field, p); err != nil {
		return trip.Trip{}, err
	}
	return dr.session.Draft(), nil
}

// Save persists the draft with the form fields in t, keeping the draft's
// place names and coordinates. The form is closed on success.
func (d *DraftService) Save(ctx context.Context, owner, id string, t trip.Trip) (trip.Trip, error) {
	dr, err := d.get(owner, id)
	if err != nil {
		return trip.Trip{}, err
	}

	current := dr.session.Draft()
	t.OriginPlace, t.OriginRegion = current.OriginPlace, current.OriginRegion
	t.DestPlace, t.DestRegion = current.DestPlace, current.DestRegion
	t.OriginLat, t.OriginLng = current.OriginLat, current.OriginLng
	t.DestLat, t.DestLng = current.DestLat, current.DestLng

	saved, err := d.trips.Save(ctx, owner, dr.tripID, t)
	if err != nil {
		return trip.Trip{}, err
	}
	d.Close(owner, id)
	if d.saved != nil {
		d.saved(ctx, owner)
	}
	return saved, nil
}

// Close discards the form. In-flight lookups become stale.
func (d *DraftService) Close(owner, id string) bool {
	d.mu.Lock()
	dr, ok := d.drafts[id]
	if ok && dr.owner == owner {
		delete(d.drafts, id)
	}
	d.mu.Unlock()

	if !ok || dr.owner != owner {
		return false
	}
	dr.session.Close()
	return true
}

// Expire discards forms last used before cutoff and returns how many
func (d *DraftService) Expire(cutoff time.Time) int {
	d.mu.Lock()
	var expired []*draft
	for id, dr := range d.drafts {
		if dr.touched.Before(cutoff) {
			expired = append(expired, dr)
			delete(d.drafts, id)
		}
	}
	d.mu.Unlock()

	for _, dr := range expired {
		dr.session.Close()
	}
	return len(expired)
}

// Len returns the number of open forms
func (d *DraftService) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.drafts)
}

func (d *DraftService) get(owner, id string) (*draft, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dr, ok := d.drafts[id]
	if !ok || dr.owner != owner {
		return nil, fmt.Errorf("%w: %s", errDraftNotFound, id)
	}
	dr.touched = d.now()
	return dr, nil
}

// Register mounts the draft endpoints on r
func (d *DraftService) Register(r *gin.RouterGroup) {
	r.POST("", d.openDraft)
	r.GET("/:draft", d.getDraft)
	r.POST("/:draft/lookup", d.lookup)
	r.PUT("/:draft/coordinates", d.setCoordinates)
	r.POST("/:draft/save", d.save)
	r.DELETE("/:draft", d.closeDraft)
}

type openRequest struct {
	TripID string    `json:"trip_id"`
	Draft  trip.Trip `json:"draft"`
}

type lookupRequest struct {
	Field  editing.Field `json:"field" binding:"required"`
	Place  string        `json:"place" binding:"required"`
	Region string        `json:"region"`
}

type coordinatesRequest struct {
	Field editing.Field `json:"field" binding:"required"`
	Point geo.Point     `json:"point"`
}

func (d *DraftService) openDraft(c *gin.Context) {
	var req openRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, fmt.Errorf("%w: %v", trip.ErrInvalid, err))
			return
		}
	}
	id, t, err := d.Open(c.Request.Context(), c.Param("owner"), req.TripID, req.Draft)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "draft": t})
}

func (d *DraftService) getDraft(c *gin.Context) {
	dr, err := d.get(c.Param("owner"), c.Param("draft"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("draft"), "draft": dr.session.Draft()})
}

func (d *DraftService) lookup(c *gin.Context) {
	var req lookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", trip.ErrInvalid, err))
		return
	}
	t, p, err := d.Lookup(c.Request.Context(), c.Param("owner"), c.Param("draft"), req.Field, req.Place, req.Region)
	if err != nil {
		if errors.Is(err, editing.ErrNotFound) {
			log.Printf("No coordinates for %q (%s): %v", req.Place, req.Region, err)
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"point": p, "draft": t})
}

func (d *DraftService) setCoordinates(c *gin.Context) {
	var req coordinatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", trip.ErrInvalid, err))
		return
	}
	t, err := d.SetCoordinates(c.Param("owner"), c.Param("draft"), req.Field, req.Point)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": t})
}

func (d *DraftService) save(c *gin.Context) {
	var t trip.Trip
	if err := c.ShouldBindJSON(&t); err != nil {
		respondError(c, fmt.Errorf("%w: %v", trip.ErrInvalid, err))
		return
	}
	saved, err := d.Save(c.Request.Context(), c.Param("owner"), c.Param("draft"), t)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (d *DraftService) closeDraft(c *gin.Context) {
	if !d.Close(c.Param("owner"), c.Param("draft")) {
		respondError(c, fmt.Errorf("%w: %s", errDraftNotFound, c.Param("draft")))
		return
	}
	c.Status(http.StatusNoContent)
}
