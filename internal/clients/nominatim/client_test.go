package nominatim

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpup/tripmap/internal/cache"
	"github.com/dpup/tripmap/internal/metrics"
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

func loadTestFixture(t *testing.T, filename string) string {
	data, err := os.ReadFile("../../../tests/testdata/nominatim/" + filename)
	require.NoError(t, err, "Failed to load test fixture %s", filename)
	return string(data)
}

func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestResolve_Success(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		q := req.URL.Query()
		return req.URL.Path == "/search" &&
			q.Get("q") == "Taipei, Taiwan" &&
			q.Get("format") == "json" &&
			q.Get("limit") == "1" &&
			req.Header.Get("User-Agent") == "tripmap-test"
	})).Return(createMockResponse(200, loadTestFixture(t, "taipei.json")), nil).Once()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	client := NewClient("https://nominatim.test/", "tripmap-test",
		WithHTTPDoer(mockHTTP), WithCache(cache.NewCache(), time.Hour), WithMetrics(m))

	p, err := client.Resolve(context.Background(), "Taipei", "Taiwan")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 25.0375198, p.Latitude)
	assert.Equal(t, 121.5636796, p.Longitude)

	// cached
	p, err = client.Resolve(context.Background(), "taipei", "taiwan")
	require.NoError(t, err)
	require.NotNil(t, p)

	mockHTTP.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeLookups.WithLabelValues(metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeLookups.WithLabelValues(metrics.OutcomeCached)))
}

func TestResolve_NoMatch(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.Anything).Return(createMockResponse(200, loadTestFixture(t, "empty.json")), nil)

	client := NewClient("https://nominatim.test", "tripmap-test", WithHTTPDoer(mockHTTP))
	p, err := client.Resolve(context.Background(), "Atlantis", "")

	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		doErr  error
	}{
		{"transport failure", 0, "", errors.New("connection reset")},
		{"server error", 503, "busy", nil},
		{"malformed json", 200, "{", nil},
		{"bad latitude", 200, `[{"lat":"north","lon":"1"}]`, nil},
		{"out of range", 200, `[{"lat":"95","lon":"1"}]`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockHTTP := &MockHTTPDoer{}
			if tt.doErr != nil {
				mockHTTP.On("Do", mock.Anything).Return(nil, tt.doErr)
			} else {
				mockHTTP.On("Do", mock.Anything).Return(createMockResponse(tt.status, tt.body), nil)
			}

			client := NewClient("https://nominatim.test", "tripmap-test", WithHTTPDoer(mockHTTP))
			p, err := client.Resolve(context.Background(), "Paris", "France")
			assert.Error(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestResolve_RequiresPlace(t *testing.T) {
	client := NewClient("", "tripmap-test", WithHTTPDoer(&MockHTTPDoer{}))
	_, err := client.Resolve(context.Background(), "  ", "France")
	assert.Error(t, err)
}

func TestQuery(t *testing.T) {
	assert.Equal(t, "Paris, France", Query("Paris", "France"))
	assert.Equal(t, "Paris", Query("Paris", " "))
}
