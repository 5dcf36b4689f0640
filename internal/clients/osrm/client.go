package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/dpup/tripmap/internal/lib/geo"
)

// DefaultBaseURL is the public OSRM demo server
const DefaultBaseURL = "https://router.project-osrm.org"

// HTTPDoer is the subset of *http.Client used by the client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the OSRM route service with the driving profile
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	userAgent  string
}

// NewClient creates a new OSRM client
func NewClient(baseURL, userAgent string) *Client {
	return NewClientWithHTTPDoer(baseURL, userAgent, &http.Client{Timeout: 30 * time.Second})
}

// NewClientWithHTTPDoer creates a client with a custom transport, for tests
func NewClientWithHTTPDoer(baseURL, userAgent string, doer HTTPDoer) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: baseURL, httpClient: doer, userAgent: userAgent}
}

// RouteResponse is the subset of the OSRM /route response we read
type RouteResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message,omitempty"`
	Routes  []Route `json:"routes"`
}

// Route is one alternative returned by OSRM
type Route struct {
	Geometry *geojson.Geometry `json:"geometry"`
	Distance float64           `json:"distance"`
	Duration float64           `json:"duration"`
}

// Route returns the driving path between from and to in lat/lng order
func (c *Client) Route(ctx context.Context, from, to geo.Point) ([]geo.Point, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		c.baseURL, from.Longitude, from.Latitude, to.Longitude, to.Latitude)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 429 {
		return nil, fmt.Errorf("rate limit exceeded")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response RouteResponse
	if err := json.Unmarshal(body, &response); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// OSRM reports errors such as NoRoute with a 400 and a JSON body
	if response.Code != "Ok" {
		return nil, fmt.Errorf("routing failed with code %s: %s", response.Code, response.Message)
	}
	if len(response.Routes) == 0 {
		return nil, fmt.Errorf("no routes found in response")
	}

	return toPoints(response.Routes[0].Geometry)
}

// toPoints converts a GeoJSON LineString (lng,lat) to lat/lng points
func toPoints(g *geojson.Geometry) ([]geo.Point, error) {
	if g == nil || !g.IsLineString() {
		return nil, fmt.Errorf("route geometry is not a LineString")
	}
	points := make([]geo.Point, 0, len(g.LineString))
	for i, coord := range g.LineString {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has %d values", i, len(coord))
		}
		points = append(points, geo.Point{Latitude: coord[1], Longitude: coord[0]})
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("route geometry has %d points", len(points))
	}
	return points, nil
}
