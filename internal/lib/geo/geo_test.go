package geo

import (
	"math"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	taipei = Point{Latitude: 25.0330, Longitude: 121.5654}
	tokyo  = Point{Latitude: 35.6762, Longitude: 139.6503}
	paris  = Point{Latitude: 48.8566, Longitude: 2.3522}
	nyc    = Point{Latitude: 40.7128, Longitude: -74.0060}
)

func TestGeoUtils_PointToPoint(t *testing.T) {
	geoUtils := NewGeoUtils()

	// Taipei to Tokyo is roughly 2,100 km
	distance, err := geoUtils.PointToPoint(taipei, tokyo)
	require.NoError(t, err)
	assert.InDelta(t, 2100000, distance, 20000, "Distance should be approximately 2,100km")

	distance, err = geoUtils.PointToPoint(paris, paris)
	require.NoError(t, err)
	assert.Equal(t, 0.0, distance)

	invalidPoint := Point{Latitude: 200, Longitude: -300}
	_, err = geoUtils.PointToPoint(taipei, invalidPoint)
	assert.Error(t, err, "Should return error for invalid coordinates")
}

func TestGeoUtils_DistanceFromCoords(t *testing.T) {
	geoUtils := NewGeoUtils()

	direct, err := geoUtils.PointToPoint(paris, nyc)
	require.NoError(t, err)

	viaCoords, err := geoUtils.DistanceFromCoords(paris.Latitude, paris.Longitude, nyc.Latitude, nyc.Longitude)
	require.NoError(t, err)
	assert.Equal(t, direct, viaCoords)
}

func TestGeoUtils_PathLength(t *testing.T) {
	geoUtils := NewGeoUtils()

	leg1, _ := geoUtils.PointToPoint(taipei, tokyo)
	leg2, _ := geoUtils.PointToPoint(tokyo, paris)

	total, err := geoUtils.PathLength([]Point{taipei, tokyo, paris})
	require.NoError(t, err)
	assert.InDelta(t, leg1+leg2, total, 1e-6)

	total, err = geoUtils.PathLength([]Point{taipei})
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)
}

func TestGeoUtils_DecodePolyline(t *testing.T) {
	geoUtils := NewGeoUtils()

	// Reference polyline from the encoding algorithm documentation
	points, err := geoUtils.DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.InDelta(t, 38.5, points[0].Latitude, 1e-5)
	assert.InDelta(t, -120.2, points[0].Longitude, 1e-5)
	assert.InDelta(t, 43.252, points[2].Latitude, 1e-5)
	assert.InDelta(t, -126.453, points[2].Longitude, 1e-5)

	_, err = geoUtils.DecodePolyline("")
	assert.Error(t, err)
}

func TestGeoUtils_EncodePolylineRoundTrip(t *testing.T) {
	geoUtils := NewGeoUtils()

	route := []Point{taipei, {Latitude: 24.1477, Longitude: 120.6736}, {Latitude: 22.6273, Longitude: 120.3014}}
	encoded := geoUtils.EncodePolyline(route)
	require.NotEmpty(t, encoded)

	decoded, err := geoUtils.DecodePolyline(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(route))
	for i := range route {
		assert.InDelta(t, route[i].Latitude, decoded[i].Latitude, 1e-5)
		assert.InDelta(t, route[i].Longitude, decoded[i].Longitude, 1e-5)
	}

	assert.Equal(t, "", geoUtils.EncodePolyline(nil))
}

func TestNewPoint(t *testing.T) {
	p, err := NewPoint(25.0330, 121.5654)
	require.NoError(t, err)
	assert.Equal(t, taipei, p)

	_, err = NewPoint(91, 0)
	assert.Error(t, err)
	_, err = NewPoint(0, 181)
	assert.Error(t, err)
}

func TestBounds(t *testing.T) {
	var b Bounds
	assert.True(t, b.IsEmpty())

	b.Extend(taipei)
	b.Extend(paris)
	b.Extend(tokyo)

	assert.False(t, b.IsEmpty())
	assert.Equal(t, taipei.Latitude, b.South)
	assert.Equal(t, paris.Latitude, b.North)
	assert.Equal(t, paris.Longitude, b.West)
	assert.Equal(t, tokyo.Longitude, b.East)
	assert.InDelta(t, (taipei.Latitude+paris.Latitude)/2, b.Center().Latitude, 1e-9)
}

func TestGreatCircle_Endpoints(t *testing.T) {
	pairs := [][2]Point{
		{taipei, tokyo},
		{paris, nyc},
		{nyc, taipei},
		{{Latitude: -33.8688, Longitude: 151.2093}, {Latitude: 51.5074, Longitude: -0.1278}},
	}

	for _, pair := range pairs {
		arc := GreatCircle(pair[0], pair[1], 100)
		require.Len(t, arc, 101)

		assert.InDelta(t, pair[0].Latitude, arc[0].Latitude, 1e-6)
		assert.InDelta(t, pair[0].Longitude, arc[0].Longitude, 1e-6)
		assert.InDelta(t, pair[1].Latitude, arc[100].Latitude, 1e-6)
		assert.InDelta(t, pair[1].Longitude, arc[100].Longitude, 1e-6)

		for _, p := range arc {
			assert.False(t, math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude))
		}
	}
}

func TestGreatCircle_MidpointSymmetry(t *testing.T) {
	forward := GreatCircle(paris, nyc, 100)
	backward := GreatCircle(nyc, paris, 100)

	assert.InDelta(t, forward[50].Latitude, backward[50].Latitude, 1e-9)
	assert.InDelta(t, forward[50].Longitude, backward[50].Longitude, 1e-9)

	mid := Interpolate(paris, nyc, 0.5)
	assert.InDelta(t, forward[50].Latitude, mid.Latitude, 1e-9)
	assert.InDelta(t, forward[50].Longitude, mid.Longitude, 1e-9)
}

func TestInterpolate_AgreesWithGreatCircle(t *testing.T) {
	arc := GreatCircle(taipei, nyc, 16)
	for i, p := range arc {
		got := Interpolate(taipei, nyc, float64(i)/16)
		assert.Equal(t, p, got, "step %d", i)
	}
}

func TestGreatCircle_ArcBulgesPoleward(t *testing.T) {
	// Paris -> New York flies north of both endpoints' latitudes
	arc := GreatCircle(paris, nyc, 100)
	assert.Greater(t, arc[50].Latitude, paris.Latitude)
}

func TestGreatCircle_MatchesS2(t *testing.T) {
	a := s2.PointFromLatLng(s2.LatLngFromDegrees(taipei.Latitude, taipei.Longitude))
	b := s2.PointFromLatLng(s2.LatLngFromDegrees(nyc.Latitude, nyc.Longitude))

	arc := GreatCircle(taipei, nyc, 10)
	for i, p := range arc {
		want := s2.LatLngFromPoint(s2.Interpolate(float64(i)/10, a, b))
		assert.InDelta(t, want.Lat.Degrees(), p.Latitude, 1e-6, "step %d", i)
		assert.InDelta(t, want.Lng.Degrees(), p.Longitude, 1e-6, "step %d", i)
	}
}

func TestGreatCircle_Degenerate(t *testing.T) {
	arc := GreatCircle(tokyo, tokyo, 20)
	require.Len(t, arc, 21)
	for _, p := range arc {
		assert.Equal(t, tokyo, p)
	}

	assert.Equal(t, tokyo, Interpolate(tokyo, tokyo, 0.3))
}

func TestGreatCircle_DefaultPoints(t *testing.T) {
	assert.Len(t, GreatCircle(taipei, tokyo, 0), DefaultArcPoints+1)
	assert.Len(t, GreatCircle(taipei, tokyo, -5), DefaultArcPoints+1)
	assert.Len(t, GreatCircle(taipei, tokyo, 1), 2)
}

func TestCentralAngle(t *testing.T) {
	assert.Equal(t, 0.0, CentralAngle(paris, paris))

	north := Point{Latitude: 90, Longitude: 0}
	south := Point{Latitude: -90, Longitude: 0}
	assert.InDelta(t, math.Pi, CentralAngle(north, south), 1e-9)
}
