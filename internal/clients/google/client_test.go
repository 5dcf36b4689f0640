package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpup/tripmap/internal/lib/geo"
)

// MockHTTPDoer is a mock implementation of HTTPDoer
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

// Helper function to load test fixture data
func loadTestFixture(t *testing.T, filename string) string {
	data, err := os.ReadFile("../../../tests/testdata/google/" + filename)
	require.NoError(t, err, "Failed to load test fixture %s", filename)
	return string(data)
}

// Helper function to create mock HTTP response
func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

var (
	origin      = geo.Point{Latitude: 38.5, Longitude: -120.2}
	destination = geo.Point{Latitude: 43.252, Longitude: -126.453}
)

func TestComputeRoutes_Success(t *testing.T) {
	fixtureData := loadTestFixture(t, "sacramento_coast.json")

	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		if req.Header.Get("X-Goog-Api-Key") != "test-api-key" || req.Header.Get("X-Goog-FieldMask") == "" {
			return false
		}
		reader, err := req.GetBody()
		if err != nil {
			return false
		}
		var body map[string]interface{}
		if err := json.NewDecoder(reader).Decode(&body); err != nil {
			return false
		}
		return body["travelMode"] == "DRIVE"
	})).Return(createMockResponse(200, fixtureData), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.googleapis.com", mockHTTP)
	routeData, err := client.ComputeRoutes(context.Background(), origin, destination)

	require.NoError(t, err)
	require.NotNil(t, routeData)
	assert.Equal(t, int32(29340), routeData.DurationSeconds)
	assert.Equal(t, int32(812345), routeData.DistanceMeters)
	require.Len(t, routeData.Points, 3)
	assert.InDelta(t, 38.5, routeData.Points[0].Latitude, 1e-5)
	assert.InDelta(t, -120.2, routeData.Points[0].Longitude, 1e-5)
	assert.InDelta(t, 40.7, routeData.Points[1].Latitude, 1e-5)
	assert.InDelta(t, -126.453, routeData.Points[2].Longitude, 1e-5)
	mockHTTP.AssertExpectations(t)
}

func TestRoute_ReturnsPoints(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, loadTestFixture(t, "sacramento_coast.json")), nil)

	client := NewClientWithHTTPDoer("test-api-key", "", mockHTTP)
	points, err := client.Route(context.Background(), origin, destination)

	require.NoError(t, err)
	assert.Len(t, points, 3)
}

func TestComputeRoutes_EmptyResponse(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, loadTestFixture(t, "empty.json")), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://routes.googleapis.com", mockHTTP)
	_, err := client.ComputeRoutes(context.Background(), origin, destination)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no routes found")
}

func TestComputeRoutes_HTTPErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		contains string
	}{
		{"rate limited", 429, "", "rate limit"},
		{"bad key", 403, `{"error":{"status":"PERMISSION_DENIED"}}`, "API error 403"},
		{"bad polyline", 200, `{"routes":[{"duration":"10s","polyline":{"encodedPolyline":""}}]}`, "failed to decode polyline"},
		{"bad duration", 200, `{"routes":[{"duration":"","polyline":{"encodedPolyline":"_p~iF~ps|U"}}]}`, "failed to parse duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockHTTP := &MockHTTPDoer{}
			mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(createMockResponse(tt.status, tt.body), nil)

			client := NewClientWithHTTPDoer("test-api-key", "https://routes.googleapis.com", mockHTTP)
			_, err := client.ComputeRoutes(context.Background(), origin, destination)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestParseDuration(t *testing.T) {
	seconds, err := parseDuration("450s")
	require.NoError(t, err)
	assert.Equal(t, int32(450), seconds)

	_, err = parseDuration("")
	assert.Error(t, err)
}
