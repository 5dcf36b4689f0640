package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dpup/tripmap/internal/cache"
	"github.com/dpup/tripmap/internal/lib/geo"
	"github.com/dpup/tripmap/internal/metrics"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim instance
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// DefaultCacheTTL keeps resolved places for a week
const DefaultCacheTTL = 7 * 24 * time.Hour

// HTTPDoer is the subset of *http.Client used by the client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client resolves place names with the Nominatim search API
type Client struct {
	baseURL    string
	userAgent  string
	httpClient HTTPDoer
	cache      *cache.Cache
	cacheTTL   time.Duration
	metrics    *metrics.Collector
}

// Option configures a Client
type Option func(*Client)

// WithCache reuses earlier lookups
func WithCache(c *cache.Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		if ttl > 0 {
			cl.cacheTTL = ttl
		}
	}
}

// WithMetrics records lookup outcomes
func WithMetrics(m *metrics.Collector) Option {
	return func(cl *Client) { cl.metrics = m }
}

// WithHTTPDoer replaces the default HTTP client
func WithHTTPDoer(doer HTTPDoer) Option {
	return func(cl *Client) { cl.httpClient = doer }
}

// NewClient creates a Nominatim client. Nominatim's usage policy requires an
// identifying User-Agent.
func NewClient(baseURL, userAgent string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cacheTTL:   DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve returns the first match for "place, region". It returns nil, nil
// when nothing matches.
func (c *Client) Resolve(ctx context.Context, place, region string) (*geo.Point, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return nil, fmt.Errorf("place name is required")
	}

	if c.cache != nil {
		if p, found, err := c.cache.GetGeocode(place, region); err == nil && found {
			c.metrics.GeocodeLooked(metrics.OutcomeCached)
			return p, nil
		}
	}

	point, err := c.search(ctx, Query(place, region))
	switch {
	case err != nil:
		c.metrics.GeocodeLooked(metrics.OutcomeError)
		return nil, err
	case point == nil:
		c.metrics.GeocodeLooked(metrics.OutcomeEmpty)
		return nil, nil
	}

	if c.cache != nil {
		if err := c.cache.SetGeocode(place, region, *point, c.cacheTTL); err != nil {
			log.Printf("Failed to cache geocode for %q: %v", place, err)
		}
	}
	c.metrics.GeocodeLooked(metrics.OutcomeOK)
	return point, nil
}

// Query joins place and region the way the search box expects
func Query(place, region string) string {
	region = strings.TrimSpace(region)
	if region == "" {
		return place
	}
	return place + ", " + region
}

func (c *Client) search(ctx context.Context, query string) (*geo.Point, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}

	point, err := geo.NewPoint(lat, lon)
	if err != nil {
		return nil, err
	}
	return &point, nil
}
