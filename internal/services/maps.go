package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	prefaberrors "github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
	"github.com/gin-gonic/gin"

	"github.com/dpup/tripmap/internal/config"
	"github.com/dpup/tripmap/internal/export"
	"github.com/dpup/tripmap/internal/lib/editing"
	"github.com/dpup/tripmap/internal/lib/render"
	"github.com/dpup/tripmap/internal/lib/transport"
	"github.com/dpup/tripmap/internal/lib/trip"
	"github.com/dpup/tripmap/internal/metrics"
	"github.com/dpup/tripmap/internal/store"
)

// MapService serves map overlays, exports and trip CRUD over HTTP. Owners
// with trips get a live render controller fed by a store subscription; maps
// idle for longer than server.map_idle_ttl are evicted.
type MapService struct {
	store    store.Store
	trips    *TripService
	geocoder editing.Geocoder
	config   *config.Config
	metrics  *metrics.Collector
	regions  *export.Regions
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	controllers map[string]*liveMap

	drafts *DraftService
}

// liveMap is one owner's controller and the subscription feeding it
type liveMap struct {
	controller *render.Controller
	cancel     context.CancelFunc
	lastUsed   time.Time
}

// MapServiceOption configures a MapService
type MapServiceOption func(*MapService)

// WithRegions shades visited regions on PNG exports
func WithRegions(r *export.Regions) MapServiceOption {
	return func(s *MapService) { s.regions = r }
}

// NewMapService creates a new map service. Subscriptions live until evicted
// or Close.
func NewMapService(s store.Store, trips *TripService, geocoder editing.Geocoder, cfg *config.Config, m *metrics.Collector, opts ...MapServiceOption) *MapService {
	ctx, cancel := context.WithCancel(logging.EnsureLogger(context.Background()))
	svc := &MapService{
		store:       s,
		trips:       trips,
		geocoder:    geocoder,
		config:      cfg,
		metrics:     m,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		controllers: make(map[string]*liveMap),
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.drafts = NewDraftService(trips, geocoder, m)
	svc.drafts.now = func() time.Time { return svc.now() }
	svc.drafts.saved = svc.refreshLive
	return svc
}

// Close stops all controllers and subscriptions
func (s *MapService) Close() {
	s.cancel()
}

// Controller returns the live controller for owner, subscribing on first use
func (s *MapService) Controller(owner string) (*render.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.controllers[owner]; ok {
		m.lastUsed = s.now()
		return m.controller, nil
	}

	ctx, cancel := context.WithCancel(s.ctx)
	updates, err := s.store.Subscribe(ctx, owner)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", owner, err)
	}

	c := render.NewController(nil,
		render.WithArcPoints(s.config.Render.ArcPoints),
		render.WithClock(s.now),
		render.WithCollector(s.metrics))
	// apply the initial snapshot before anyone reads the controller
	if snapshot, ok := <-updates; ok {
		c.Refresh(snapshot)
	}
	go c.Run(ctx, updates)

	s.controllers[owner] = &liveMap{controller: c, cancel: cancel, lastUsed: s.now()}
	log.Printf("Started map controller for %s", owner)
	return c, nil
}

// Controllers returns every live controller
func (s *MapService) Controllers() []*render.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	controllers := make([]*render.Controller, 0, len(s.controllers))
	for _, m := range s.controllers {
		controllers = append(controllers, m.controller)
	}
	return controllers
}

func (s *MapService) live(owner string) (*render.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.controllers[owner]
	if !ok {
		return nil, false
	}
	m.lastUsed = s.now()
	return m.controller, true
}

// Frame returns the overlays for owner. Unfiltered requests read the live
// controller, starting one when the owner has trips. Filtered requests and
// owners without trips are computed from a fresh snapshot.
func (s *MapService) Frame(ctx context.Context, owner string, filter trip.DateRange) (render.Frame, error) {
	if err := filter.Validate(); err != nil {
		return render.Frame{}, err
	}
	if filter.IsZero() {
		if c, ok := s.live(owner); ok {
			return c.Current(), nil
		}
	}

	trips, err := s.store.List(ctx, owner)
	if err != nil {
		return render.Frame{}, err
	}
	if filter.IsZero() && len(trips) > 0 {
		c, err := s.Controller(owner)
		if err != nil {
			return render.Frame{}, err
		}
		return c.Current(), nil
	}
	return render.Compute(trips, render.Options{
		Today:     trip.DateOf(s.now()),
		Filter:    filter,
		ArcPoints: s.config.Render.ArcPoints,
	}), nil
}

// refreshLive re-renders owner's live map from the store so that a read
// following a write sees it. Owners without a live map are skipped.
func (s *MapService) refreshLive(ctx context.Context, owner string) {
	s.mu.Lock()
	m, ok := s.controllers[owner]
	s.mu.Unlock()
	if !ok {
		return
	}
	trips, err := s.store.List(ctx, owner)
	if err != nil {
		log.Printf("Failed to refresh map for %s: %v", owner, err)
		return
	}
	m.controller.Refresh(trips)
}

// Evict stops live maps unused for longer than server.map_idle_ttl and
// discards drafts untouched for longer than server.draft_ttl. A zero TTL
// disables that half.
func (s *MapService) Evict() (maps, drafts int) {
	now := s.now()

	if ttl := s.config.Server.MapIdleTTL; ttl > 0 {
		s.mu.Lock()
		for owner, m := range s.controllers {
			if now.Sub(m.lastUsed) > ttl {
				m.cancel()
				delete(s.controllers, owner)
				maps++
			}
		}
		s.mu.Unlock()
	}
	if ttl := s.config.Server.DraftTTL; ttl > 0 {
		drafts = s.drafts.Expire(now.Add(-ttl))
	}
	return maps, drafts
}

// StartEviction runs Evict every interval until ctx is done
func (s *MapService) StartEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ctx = logging.EnsureLogger(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err, _ := prefaberrors.ParseStack(debug.Stack())
				skipFrames := 3
				numFrames := 5
				logging.Errorw(ctx, "Map eviction: recovered from panic",
					"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if maps, drafts := s.Evict(); maps > 0 || drafts > 0 {
					logging.Infow(ctx, "Map eviction: removed idle state", "maps", maps, "drafts", drafts)
				}
			}
		}
	}()
}

// Handler builds the gin engine serving the API under the configured prefix
func (s *MapService) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), s.cors(), requestTimeout(s.config.Server.RequestTimeout))

	api := r.Group(strings.TrimSuffix(s.config.Server.APIPrefix, "/"))
	api.GET("/transports", s.getTransports)
	api.GET("/geocode", s.getGeocode)

	maps := api.Group("/maps/:owner")
	{
		maps.GET("/layers", s.getLayers)
		maps.GET("/visited", s.getVisited)
		maps.GET("/export.png", s.getExportPNG)
		maps.GET("/export.kml", s.getExportKML)

		maps.GET("/trips", s.listTrips)
		maps.POST("/trips", s.createTrip)
		maps.GET("/trips/:id", s.getTrip)
		maps.PUT("/trips/:id", s.updateTrip)
		maps.DELETE("/trips/:id", s.deleteTrip)

		s.drafts.Register(maps.Group("/drafts"))
	}
	return r
}

func (s *MapService) getLayers(c *gin.Context) {
	frame, ok := s.frameFromRequest(c)
	if !ok {
		return
	}
	data, err := export.GeoJSON(frame).MarshalJSON()
	if err != nil {
		respondError(c, fmt.Errorf("failed to encode layers: %w", err))
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

func (s *MapService) getVisited(c *gin.Context) {
	frame, ok := s.frameFromRequest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"today":      frame.Today,
		"regions":    frame.Visited.Sorted(),
		"date_range": frame.DateRangeText,
	})
}

func (s *MapService) getExportPNG(c *gin.Context) {
	frame, ok := s.frameFromRequest(c)
	if !ok {
		return
	}
	opts := export.Options{
		Width:        s.config.Export.Width,
		Height:       s.config.Export.Height,
		Padding:      s.config.Export.Padding,
		TileProvider: s.config.Export.TileProvider,
		DisableTiles: s.config.Export.DisableTiles,
		UserAgent:    s.config.Routing.OSRM.UserAgent,
		Regions:      s.regions,
	}
	var buf bytes.Buffer
	if err := export.PNG(&buf, frame, opts); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(frame.Filter, frame.Today, "png")+`"`)
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *MapService) getExportKML(c *gin.Context) {
	frame, ok := s.frameFromRequest(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.KML(&buf, frame, c.Param("owner")); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(frame.Filter, frame.Today, "kml")+`"`)
	c.Data(http.StatusOK, "application/vnd.google-earth.kml+xml", buf.Bytes())
}

func (s *MapService) frameFromRequest(c *gin.Context) (render.Frame, bool) {
	filter := trip.DateRange{Start: c.Query("start"), End: c.Query("end")}
	frame, err := s.Frame(c.Request.Context(), c.Param("owner"), filter)
	if err != nil {
		respondError(c, err)
		return render.Frame{}, false
	}
	return frame, true
}

func (s *MapService) listTrips(c *gin.Context) {
	trips, err := s.trips.List(c.Request.Context(), c.Param("owner"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trips)
}

func (s *MapService) getTrip(c *gin.Context) {
	t, err := s.trips.Get(c.Request.Context(), c.Param("owner"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *MapService) createTrip(c *gin.Context) {
	s.saveTrip(c, "", http.StatusCreated)
}

func (s *MapService) updateTrip(c *gin.Context) {
	s.saveTrip(c, c.Param("id"), http.StatusOK)
}

func (s *MapService) saveTrip(c *gin.Context, id string, status int) {
	var t trip.Trip
	if err := c.ShouldBindJSON(&t); err != nil {
		respondError(c, fmt.Errorf("%w: %v", trip.ErrInvalid, err))
		return
	}
	saved, err := s.trips.Save(c.Request.Context(), c.Param("owner"), id, t)
	if err != nil {
		respondError(c, err)
		return
	}
	s.refreshLive(c.Request.Context(), c.Param("owner"))
	c.JSON(status, saved)
}

func (s *MapService) deleteTrip(c *gin.Context) {
	if err := s.trips.Delete(c.Request.Context(), c.Param("owner"), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	s.refreshLive(c.Request.Context(), c.Param("owner"))
	c.Status(http.StatusNoContent)
}

// getTransports lists the choices a trip form offers
func (s *MapService) getTransports(c *gin.Context) {
	kinds := make([]gin.H, 0, len(transport.Kinds()))
	for _, k := range transport.Kinds() {
		info := k.Info()
		kinds = append(kinds, gin.H{
			"kind":              info.Kind,
			"label":             info.Label,
			"color":             info.Color,
			"uses_ground_route": info.UsesGroundRoute,
			"great_circle":      info.GreatCircle,
		})
	}
	seats := make([]gin.H, 0, 4)
	for _, sc := range []transport.SeatClass{transport.SeatWindow, transport.SeatMiddle, transport.SeatAisle, transport.SeatNone} {
		seats = append(seats, gin.H{"class": sc, "label": sc.Label()})
	}
	c.JSON(http.StatusOK, gin.H{
		"transports":       kinds,
		"seat_classes":     seats,
		"currencies":       transport.Currencies(),
		"default_currency": transport.DefaultCurrency,
	})
}

func (s *MapService) getGeocode(c *gin.Context) {
	place := c.Query("place")
	if strings.TrimSpace(place) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "place is required"})
		return
	}
	p, err := s.geocoder.Resolve(c.Request.Context(), place, c.Query("region"))
	if err != nil {
		log.Printf("Geocoding %q failed: %v", place, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "geocoding failed"})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "place not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *MapService) cors() gin.HandlerFunc {
	origins := strings.Join(s.config.Server.CorsOrigins, ", ")
	return func(c *gin.Context) {
		if origins != "" {
			c.Header("Access-Control-Allow-Origin", origins)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// respondError maps domain errors to HTTP status codes
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, trip.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, errDraftNotFound):
		status = http.StatusNotFound
	case errors.Is(err, editing.ErrStale):
		status = http.StatusConflict
	case errors.Is(err, editing.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		log.Printf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// requestTimeout bounds the context handlers pass to the store and clients
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requestLogger logs each request after it completes
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		log.Printf("[%s] %s %s %d %v %s",
			c.Request.Method,
			path,
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(start),
			c.Errors.String(),
		)
	}
}
