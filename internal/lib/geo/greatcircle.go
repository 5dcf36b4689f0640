package geo

import "math"

// DefaultArcPoints is the number of interpolation steps used for flight arcs
const DefaultArcPoints = 100

// Below this central angle (radians) the endpoints are treated as coincident.
const degenerateAngle = 1e-12

// CentralAngle returns the angular distance in radians between two points,
// using the haversine form of the central-angle formula.
func CentralAngle(p1, p2 Point) float64 {
	lat1 := toRadians(p1.Latitude)
	lon1 := toRadians(p1.Longitude)
	lat2 := toRadians(p2.Latitude)
	lon2 := toRadians(p2.Longitude)

	sinLat := math.Sin((lat1 - lat2) / 2)
	sinLon := math.Sin((lon1 - lon2) / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	// rounding can push h slightly past 1 for antipodal points
	return 2 * math.Asin(math.Sqrt(math.Min(1, h)))
}

// GreatCircle interpolates numPoints+1 points along the shortest path on the
// sphere between start and end. The first point is start and the last is end,
// up to floating-point rounding. numPoints < 1 uses DefaultArcPoints.
//
// Coincident endpoints produce numPoints+1 copies of start.
func GreatCircle(start, end Point, numPoints int) []Point {
	if numPoints < 1 {
		numPoints = DefaultArcPoints
	}

	points := make([]Point, numPoints+1)

	d := CentralAngle(start, end)
	if d < degenerateAngle {
		for i := range points {
			points[i] = start
		}
		return points
	}

	a, b := unitVector(start), unitVector(end)
	for i := 0; i <= numPoints; i++ {
		points[i] = slerp(a, b, d, float64(i)/float64(numPoints))
	}

	return points
}

// Interpolate returns the single point at fraction f (0..1) along the great
// circle from start to end.
func Interpolate(start, end Point, f float64) Point {
	d := CentralAngle(start, end)
	if d < degenerateAngle {
		return start
	}
	return slerp(unitVector(start), unitVector(end), d, f)
}

type vec3 struct{ x, y, z float64 }

func unitVector(p Point) vec3 {
	lat, lon := toRadians(p.Latitude), toRadians(p.Longitude)
	return vec3{math.Cos(lat) * math.Cos(lon), math.Cos(lat) * math.Sin(lon), math.Sin(lat)}
}

// slerp interpolates between unit vectors a and b, which are d radians
// apart, at fraction f. d must be non-degenerate.
func slerp(a, b vec3, d, f float64) Point {
	sinD := math.Sin(d)
	wa := math.Sin((1-f)*d) / sinD
	wb := math.Sin(f*d) / sinD

	x := wa*a.x + wb*b.x
	y := wa*a.y + wb*b.y
	z := wa*a.z + wb*b.z

	return Point{
		Latitude:  toDegrees(math.Atan2(z, math.Sqrt(x*x+y*y))),
		Longitude: toDegrees(math.Atan2(y, x)),
	}
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
