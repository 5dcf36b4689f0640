package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dpup/tripmap/internal/lib/geo"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	geoUtils := geo.NewGeoUtils()

	switch command {
	case "point-distance":
		handlePointDistance(geoUtils)
	case "great-circle":
		handleGreatCircle()
	case "decode-polyline":
		handleDecodePolyline(geoUtils)
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func pointFlags(fs *flag.FlagSet) (*float64, *float64, *float64, *float64) {
	return fs.Float64("lat1", 0, "Latitude of first point"),
		fs.Float64("lng1", 0, "Longitude of first point"),
		fs.Float64("lat2", 0, "Latitude of second point"),
		fs.Float64("lng2", 0, "Longitude of second point")
}

func handlePointDistance(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("point-distance", flag.ExitOnError)
	lat1, lng1, lat2, lng2 := pointFlags(fs)
	fs.Parse(os.Args[2:])

	if *lat1 == 0 && *lng1 == 0 && *lat2 == 0 && *lng2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils point-distance --lat1 25.0330 --lng1 121.5654 --lat2 35.6762 --lng2 139.6503")
		fmt.Println("  (Distance between Taipei and Tokyo)")
		os.Exit(1)
	}

	p1 := geo.Point{Latitude: *lat1, Longitude: *lng1}
	p2 := geo.Point{Latitude: *lat2, Longitude: *lng2}

	distance, err := geoUtils.PointToPoint(p1, p2)
	if err != nil {
		log.Fatalf("Error calculating distance: %v", err)
	}

	fmt.Printf("Point 1: %.6f, %.6f\n", p1.Latitude, p1.Longitude)
	fmt.Printf("Point 2: %.6f, %.6f\n", p2.Latitude, p2.Longitude)
	fmt.Printf("Distance: %.2f meters (%.2f km)\n", distance, distance/1000)
	fmt.Printf("Central angle: %.6f rad\n", geo.CentralAngle(p1, p2))
}

func handleGreatCircle() {
	fs := flag.NewFlagSet("great-circle", flag.ExitOnError)
	lat1, lng1, lat2, lng2 := pointFlags(fs)
	steps := fs.Int("points", 10, "Number of segments in the arc")
	fs.Parse(os.Args[2:])

	if *lat1 == 0 && *lng1 == 0 && *lat2 == 0 && *lng2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils great-circle --lat1 51.4700 --lng1 -0.4543 --lat2 40.6413 --lng2 -73.7781 --points 8")
		fmt.Println("  (Arc drawn for a London to New York flight)")
		os.Exit(1)
	}

	start := geo.Point{Latitude: *lat1, Longitude: *lng1}
	end := geo.Point{Latitude: *lat2, Longitude: *lng2}
	if !start.IsValid() || !end.IsValid() {
		log.Fatalf("Coordinates out of range")
	}

	arc := geo.GreatCircle(start, end, *steps)
	fmt.Printf("Arc with %d points:\n", len(arc))
	for i, p := range arc {
		fmt.Printf("  %3d: %10.6f, %11.6f\n", i, p.Latitude, p.Longitude)
	}
}

func handleDecodePolyline(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("decode-polyline", flag.ExitOnError)
	polyline := fs.String("polyline", "", "Encoded polyline string")
	fs.Parse(os.Args[2:])

	if *polyline == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils decode-polyline --polyline '_p~iF~ps|U_ulLnnqC_mqNvxq`@'")
		os.Exit(1)
	}

	points, err := geoUtils.DecodePolyline(*polyline)
	if err != nil {
		log.Fatalf("Error decoding polyline: %v", err)
	}
	length, err := geoUtils.PathLength(points)
	if err != nil {
		log.Fatalf("Error measuring polyline: %v", err)
	}

	fmt.Printf("Decoded %d points (%.2f km):\n", len(points), length/1000)
	for i, p := range points {
		fmt.Printf("  %3d: %10.6f, %11.6f\n", i, p.Latitude, p.Longitude)
	}
}

func printUsage() {
	fmt.Println("Geographic Utilities Test Tool")
	fmt.Println()
	fmt.Println("Usage: test-geo-utils <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  point-distance    Great-circle distance between two points")
	fmt.Println("  great-circle      Print the arc drawn for a flight")
	fmt.Println("  decode-polyline   Decode a stored ground route")
	fmt.Println("  help              Show this help")
}
