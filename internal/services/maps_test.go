package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/tripmap/internal/config"
	"github.com/dpup/tripmap/internal/export"
	"github.com/dpup/tripmap/internal/lib/geo"
	"github.com/dpup/tripmap/internal/lib/routing"
	"github.com/dpup/tripmap/internal/lib/trip"
)

// stubGeocoder resolves lowercase place names from a fixed table
type stubGeocoder map[string]geo.Point

func (g stubGeocoder) Resolve(ctx context.Context, place, region string) (*geo.Point, error) {
	p, ok := g[strings.ToLower(place)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type testServer struct {
	svc    *MapService
	server *httptest.Server
	clock  *manualClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Export.DisableTiles = true
	cfg.Export.Width, cfg.Export.Height = 320, 240
	cfg.Render.ArcPoints = 16

	s := openStore(t)
	trips := NewTripService(s, routing.NewAcquirer(&countingRouter{}, "test"))
	geocoder := stubGeocoder{"taipei": taipei, "taichung": taichung}
	svc := NewMapService(s, trips, geocoder, cfg, nil)
	clock := &manualClock{now: time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)}
	svc.now = clock.Now

	server := httptest.NewServer(svc.Handler())
	t.Cleanup(func() {
		server.Close()
		svc.Close()
	})
	return &testServer{svc: svc, server: server, clock: clock}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.server.URL+"/api/v1"+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) createTrip(t *testing.T, owner string, in trip.Trip) trip.Trip {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/maps/"+owner+"/trips", in)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out trip.Trip
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (ts *testServer) layers(t *testing.T, owner, query string) *geojson.FeatureCollection {
	t.Helper()
	resp := ts.do(t, http.MethodGet, "/maps/"+owner+"/layers"+query, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(buf.Bytes())
	require.NoError(t, err)
	return fc
}

func countKind(fc *geojson.FeatureCollection, kind string) int {
	n := 0
	for _, f := range fc.Features {
		if f.Properties["kind"] == kind {
			n++
		}
	}
	return n
}

func flightTrip(date string) trip.Trip {
	t := trip.Trip{Transport: "plane", OriginPlace: "Taipei", OriginRegion: "Taiwan",
		DestPlace: "Tokyo", DestRegion: "Japan", DateStart: date}
	t.SetOrigin(taipei)
	t.SetDestination(geo.Point{Latitude: 35.6762, Longitude: 139.6503})
	return t
}

func TestMapService_LayersFollowStore(t *testing.T) {
	ts := newTestServer(t)
	ts.createTrip(t, "alice", trainTrip(taipei, taichung))

	fc := ts.layers(t, "alice", "")
	assert.Equal(t, 1, countKind(fc, export.KindRouteLine))
	assert.Equal(t, 2, countKind(fc, export.KindPointMarker))
	assert.Equal(t, "ground_route", fc.Features[0].Properties["source"])
	require.Len(t, ts.svc.Controllers(), 1)

	// the live map reflects a save as soon as the response arrives
	flight := ts.createTrip(t, "alice", flightTrip("2024-07-01"))
	assert.Equal(t, 2, countKind(ts.layers(t, "alice", ""), export.KindRouteLine))
	assert.Len(t, ts.svc.Controllers(), 1, "no new subscription")

	resp := ts.do(t, http.MethodDelete, "/maps/alice/trips/"+flight.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, countKind(ts.layers(t, "alice", ""), export.KindRouteLine))

	// other owners are isolated
	assert.Empty(t, ts.layers(t, "bob", "").Features)
}

func TestMapService_DraftSaveRefreshesLiveMap(t *testing.T) {
	ts := newTestServer(t)
	ts.createTrip(t, "alice", trainTrip(taipei, taichung))
	require.Equal(t, 1, countKind(ts.layers(t, "alice", ""), export.KindRouteLine))

	resp := ts.do(t, http.MethodPost, "/maps/alice/drafts", map[string]interface{}{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var opened struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&opened))
	base := "/maps/alice/drafts/" + opened.ID

	resp = ts.do(t, http.MethodPut, base+"/coordinates", map[string]interface{}{"field": "origin", "point": taichung})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = ts.do(t, http.MethodPut, base+"/coordinates", map[string]interface{}{"field": "destination", "point": taipei})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = ts.do(t, http.MethodPost, base+"/save", trip.Trip{Transport: "plane", DateStart: "2024-05-20"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 2, countKind(ts.layers(t, "alice", ""), export.KindRouteLine))
}

func TestMapService_UnknownOwnersStayStateless(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 20; i++ {
		owner := fmt.Sprintf("nobody-%d", i)
		assert.Empty(t, ts.layers(t, owner, "").Features)
		resp := ts.do(t, http.MethodGet, "/maps/"+owner+"/visited", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Empty(t, ts.svc.Controllers())
}

func TestMapService_EvictsIdleMaps(t *testing.T) {
	ts := newTestServer(t)
	ttl := ts.svc.config.Server.MapIdleTTL
	require.Positive(t, ttl)

	ts.createTrip(t, "alice", trainTrip(taipei, taichung))
	ts.createTrip(t, "bob", flightTrip("2024-05-01"))
	ts.layers(t, "alice", "")
	ts.layers(t, "bob", "")
	require.Len(t, ts.svc.Controllers(), 2)

	start := ts.clock.Now()
	ts.clock.Set(start.Add(ttl - time.Minute))
	ts.layers(t, "alice", "") // keeps alice warm

	ts.clock.Set(start.Add(ttl + time.Minute))
	maps, drafts := ts.svc.Evict()
	assert.Equal(t, 1, maps)
	assert.Equal(t, 0, drafts)
	require.Len(t, ts.svc.Controllers(), 1)

	// an evicted owner gets a fresh controller with current data
	assert.Equal(t, 1, countKind(ts.layers(t, "bob", ""), export.KindRouteLine))
	assert.Len(t, ts.svc.Controllers(), 2)
}

func TestMapService_ExpiresIdleDrafts(t *testing.T) {
	ts := newTestServer(t)
	ttl := ts.svc.config.Server.DraftTTL
	require.Positive(t, ttl)

	open := func() string {
		resp := ts.do(t, http.MethodPost, "/maps/alice/drafts", nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var opened struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&opened))
		return opened.ID
	}
	abandoned := open()
	active := open()

	start := ts.clock.Now()
	ts.clock.Set(start.Add(ttl - time.Minute))
	resp := ts.do(t, http.MethodGet, "/maps/alice/drafts/"+active, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ts.clock.Set(start.Add(ttl + time.Minute))
	maps, drafts := ts.svc.Evict()
	assert.Equal(t, 0, maps)
	assert.Equal(t, 1, drafts)
	assert.Equal(t, 1, ts.svc.drafts.Len())

	resp = ts.do(t, http.MethodGet, "/maps/alice/drafts/"+abandoned, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, "/maps/alice/drafts/"+active, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMapService_StartEvictionWithoutLogger(t *testing.T) {
	ts := newTestServer(t)
	ts.createTrip(t, "alice", trainTrip(taipei, taichung))
	ts.layers(t, "alice", "")
	require.Len(t, ts.svc.Controllers(), 1)

	ts.clock.Set(ts.clock.Now().Add(ts.svc.config.Server.MapIdleTTL + time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ts.svc.StartEviction(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return len(ts.svc.Controllers()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestMapService_FilteredLayers(t *testing.T) {
	ts := newTestServer(t)
	ts.createTrip(t, "alice", trainTrip(taipei, taichung)) // 2024-05-15
	ts.createTrip(t, "alice", flightTrip("2024-07-01"))

	fc := ts.layers(t, "alice", "?start=2024-06-01")
	require.Equal(t, 1, countKind(fc, export.KindRouteLine))
	assert.Equal(t, "plane", fc.Features[0].Properties["transport"])
	assert.Equal(t, true, fc.Features[0].Properties["dashed"], "future trips are dashed")

	resp := ts.do(t, http.MethodGet, "/maps/alice/layers?start=2024-07-01&end=2024-06-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/maps/alice/layers?start=June", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMapService_Visited(t *testing.T) {
	ts := newTestServer(t)
	ts.createTrip(t, "alice", trainTrip(taipei, taichung))
	ts.createTrip(t, "alice", flightTrip("2024-07-01"))

	resp := ts.do(t, http.MethodGet, "/maps/alice/visited", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Today     string   `json:"today"`
		Regions   []string `json:"regions"`
		DateRange string   `json:"date_range"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "2024-06-15", body.Today)
	assert.Equal(t, []string{"Taiwan"}, body.Regions, "Japan is only planned")
	assert.NotEmpty(t, body.DateRange)
}

func TestMapService_Exports(t *testing.T) {
	ts := newTestServer(t)
	ts.createTrip(t, "alice", trainTrip(taipei, taichung))

	resp := ts.do(t, http.MethodGet, "/maps/alice/export.png", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "travel-map-all-2024-06-15.png")
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())

	resp = ts.do(t, http.MethodGet, "/maps/alice/export.kml?start=2024-01-01&end=2024-12-31", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "travel-map-2024-01-01-to-2024-12-31-2024-06-15.kml")
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Taipei ➝ Taichung")
}

func TestMapService_TripCRUD(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createTrip(t, "alice", trainTrip(taipei, taichung))
	assert.Len(t, created.GroundRoute, 3)

	resp := ts.do(t, http.MethodGet, "/maps/alice/trips/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/maps/bob/trips/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	edit := created
	edit.Notes = "upgraded"
	resp = ts.do(t, http.MethodPut, "/maps/alice/trips/"+created.ID, edit)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated trip.Trip
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, "upgraded", updated.Notes)

	bad := trainTrip(taipei, taichung)
	bad.TimeStart = "25:00"
	resp = ts.do(t, http.MethodPost, "/maps/alice/trips", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/maps/alice/trips", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []trip.Trip
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 1)

	resp = ts.do(t, http.MethodDelete, "/maps/alice/trips/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodDelete, "/maps/alice/trips/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMapService_Geocode(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/geocode?place=Taipei&region=Taiwan", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p geo.Point
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, taipei, p)

	resp = ts.do(t, http.MethodGet, "/geocode?place=Atlantis", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/geocode", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMapService_Transports(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/transports", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Transports []struct {
			Kind  string `json:"kind"`
			Color string `json:"color"`
		} `json:"transports"`
		DefaultCurrency string `json:"default_currency"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Transports, 5)
	assert.Equal(t, "plane", body.Transports[0].Kind)
	assert.Equal(t, "#2563eb", body.Transports[0].Color)
	assert.Equal(t, "EUR", body.DefaultCurrency)
}

func TestMapService_DraftFlow(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/maps/alice/drafts", map[string]interface{}{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var opened struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&opened))
	require.NotEmpty(t, opened.ID)
	base := "/maps/alice/drafts/" + opened.ID

	resp = ts.do(t, http.MethodPost, base+"/lookup", map[string]string{"field": "origin", "place": "Taipei", "region": "Taiwan"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, base+"/lookup", map[string]string{"field": "destination", "place": "Nowhere"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPut, base+"/coordinates", map[string]interface{}{"field": "destination", "point": taichung})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, base+"/lookup", map[string]string{"field": "sideways", "place": "Taipei"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, base+"/save", trip.Trip{Transport: "bus", DateStart: "2024-05-20"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var saved trip.Trip
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&saved))
	assert.Equal(t, "Taipei", saved.OriginPlace)
	assert.Equal(t, "Nowhere", saved.DestPlace, "names stick even when the lookup found nothing")
	origin, ok := saved.Origin()
	require.True(t, ok)
	assert.Equal(t, taipei, origin)
	dest, ok := saved.Destination()
	require.True(t, ok)
	assert.Equal(t, taichung, dest)
	assert.Len(t, saved.GroundRoute, 3)

	// saving closes the draft
	resp = ts.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, ts.svc.drafts.Len())
}

func TestMapService_DraftForOtherOwner(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/maps/alice/drafts", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var opened struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&opened))

	resp = ts.do(t, http.MethodGet, "/maps/bob/drafts/"+opened.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/maps/alice/drafts/"+opened.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
