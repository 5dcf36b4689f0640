package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dpup/tripmap/internal/clients/google"
	"github.com/dpup/tripmap/internal/clients/nominatim"
	"github.com/dpup/tripmap/internal/clients/osrm"
	"github.com/dpup/tripmap/internal/lib/geo"
	"github.com/dpup/tripmap/internal/lib/routing"
)

func main() {
	var (
		provider  = flag.String("provider", "osrm", "Routing provider: osrm or google")
		apiKey    = flag.String("api-key", "", "Google Routes API key (or set GOOGLE_ROUTES_API_KEY env var)")
		osrmURL   = flag.String("osrm-url", osrm.DefaultBaseURL, "OSRM base URL")
		originStr = flag.String("origin", "25.047800,121.517000", "Origin coordinates (lat,lon)")
		destStr   = flag.String("dest", "24.112000,120.615600", "Destination coordinates (lat,lon)")
		geocode   = flag.String("geocode", "", "Resolve a place name with Nominatim instead of routing")
		region    = flag.String("region", "", "Region used to narrow -geocode")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		fmt.Printf("Routing Test Tool\n\n")
		fmt.Printf("Fetches a ground route or geocodes a place using the live services.\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s\n", os.Args[0])
		fmt.Printf("  %s -provider=google -api-key=YOUR_KEY\n", os.Args[0])
		fmt.Printf("  %s -geocode=Taichung -region=Taiwan\n", os.Args[0])
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *geocode != "" {
		client := nominatim.NewClient(nominatim.DefaultBaseURL, "tripmap-test/1.0")
		fmt.Printf("Geocoding %q\n", nominatim.Query(*geocode, *region))
		p, err := client.Resolve(ctx, *geocode, *region)
		if err != nil {
			log.Fatalf("Geocoding failed: %v", err)
		}
		if p == nil {
			fmt.Printf("No match\n")
			return
		}
		fmt.Printf("✅ %.6f, %.6f\n", p.Latitude, p.Longitude)
		return
	}

	origin, err := parsePoint(*originStr)
	if err != nil {
		log.Fatalf("Invalid origin coordinates: %v", err)
	}
	dest, err := parsePoint(*destStr)
	if err != nil {
		log.Fatalf("Invalid destination coordinates: %v", err)
	}

	var service routing.RouteService
	switch *provider {
	case "osrm":
		service = osrm.NewClient(*osrmURL, "tripmap-test/1.0")
	case "google":
		key := *apiKey
		if key == "" {
			key = os.Getenv("GOOGLE_ROUTES_API_KEY")
		}
		if key == "" {
			log.Fatal("Google Routes API key required. Use -api-key flag or GOOGLE_ROUTES_API_KEY env var")
		}
		service = google.NewClient(key)
	default:
		log.Fatalf("Unknown provider %q", *provider)
	}

	fmt.Printf("Routing Test (%s)\n", *provider)
	fmt.Printf("==================\n")
	fmt.Printf("Origin: %.6f, %.6f\n", origin.Latitude, origin.Longitude)
	fmt.Printf("Destination: %.6f, %.6f\n", dest.Latitude, dest.Longitude)
	fmt.Printf("\n")

	points, err := service.Route(ctx, origin, dest)
	if err != nil {
		log.Fatalf("Route failed: %v", err)
	}

	utils := geo.NewGeoUtils()
	pathMeters, err := utils.PathLength(points)
	if err != nil {
		log.Fatalf("Route has invalid points: %v", err)
	}
	directMeters, _ := utils.PointToPoint(origin, dest)

	fmt.Printf("✅ Route returned %d points\n", len(points))
	fmt.Printf("Path length: %.1f km (straight line %.1f km)\n", pathMeters/1000, directMeters/1000)
	fmt.Printf("Polyline: %s\n", truncate(utils.EncodePolyline(points), 60))
}

func parsePoint(s string) (geo.Point, error) {
	var p geo.Point
	if _, err := fmt.Sscanf(s, "%f,%f", &p.Latitude, &p.Longitude); err != nil {
		return geo.Point{}, err
	}
	if !p.IsValid() {
		return geo.Point{}, fmt.Errorf("%s is out of range", s)
	}
	return p, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
