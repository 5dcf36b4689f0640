package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dpup/tripmap/internal/lib/geo"
)

// DefaultBaseURL is the Google Routes API v2 endpoint
const DefaultBaseURL = "https://routes.googleapis.com"

// HTTPDoer is the subset of *http.Client used by the client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to Google Routes API v2
type Client struct {
	apiKey     string
	httpClient HTTPDoer
	baseURL    string
	geoUtils   geo.GeoUtils
}

// RouteData represents the processed route information from Google Routes API
type RouteData struct {
	DurationSeconds int32
	DistanceMeters  int32
	Polyline        string
	Points          []geo.Point
}

// NewClient creates a new Google Routes API client
func NewClient(apiKey string) *Client {
	return NewClientWithHTTPDoer(apiKey, DefaultBaseURL, &http.Client{Timeout: 30 * time.Second})
}

// NewClientWithHTTPDoer creates a client with a custom transport, for tests
func NewClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: doer,
		baseURL:    baseURL,
		geoUtils:   geo.NewGeoUtils(),
	}
}

// Route implements the routing service contract using the driving profile
func (c *Client) Route(ctx context.Context, from, to geo.Point) ([]geo.Point, error) {
	data, err := c.ComputeRoutes(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return data.Points, nil
}

// ComputeRoutes performs coordinate-based route computation
func (c *Client) ComputeRoutes(ctx context.Context, origin, destination geo.Point) (*RouteData, error) {
	requestBody := map[string]interface{}{
		"origin":            waypoint(origin),
		"destination":       waypoint(destination),
		"travelMode":        "DRIVE",
		"routingPreference": "TRAFFIC_UNAWARE",
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/directions/v2:computeRoutes", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// The API rejects requests without a field mask
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", "routes.duration,routes.distanceMeters,routes.polyline.encodedPolyline")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 429 {
		return nil, fmt.Errorf("rate limit exceeded (3K QPM)")
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var response GoogleRoutesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(response.Routes) == 0 {
		return nil, fmt.Errorf("no routes found in response")
	}

	return c.processRouteResponse(response.Routes[0])
}

func waypoint(p geo.Point) map[string]interface{} {
	return map[string]interface{}{
		"location": map[string]interface{}{
			"latLng": map[string]interface{}{
				"latitude":  p.Latitude,
				"longitude": p.Longitude,
			},
		},
	}
}

// processRouteResponse converts Google Routes API response to our RouteData format
func (c *Client) processRouteResponse(route GoogleRoute) (*RouteData, error) {
	durationSeconds, err := parseDuration(route.Duration)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration: %w", err)
	}

	points, err := c.geoUtils.DecodePolyline(route.Polyline.EncodedPolyline)
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}

	return &RouteData{
		DurationSeconds: durationSeconds,
		DistanceMeters:  route.DistanceMeters,
		Polyline:        route.Polyline.EncodedPolyline,
		Points:          points,
	}, nil
}

// parseDuration parses Google's duration format like "450s" to seconds
func parseDuration(durationStr string) (int32, error) {
	if durationStr == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	if len(durationStr) > 1 && durationStr[len(durationStr)-1] == 's' {
		durationStr = durationStr[:len(durationStr)-1]
	}

	var seconds int32
	_, err := fmt.Sscanf(durationStr, "%d", &seconds)
	return seconds, err
}

// GoogleRoutesResponse represents the API response structure
type GoogleRoutesResponse struct {
	Routes []GoogleRoute `json:"routes"`
}

// GoogleRoute represents a single route in the response
type GoogleRoute struct {
	Duration       string         `json:"duration"`
	DistanceMeters int32          `json:"distanceMeters"`
	Polyline       GooglePolyline `json:"polyline"`
}

// GooglePolyline represents the route polyline
type GooglePolyline struct {
	EncodedPolyline string `json:"encodedPolyline"`
}
