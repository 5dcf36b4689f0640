package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dpup/tripmap/internal/config"
	"github.com/dpup/tripmap/internal/export"
	"github.com/dpup/tripmap/internal/lib/render"
	"github.com/dpup/tripmap/internal/lib/trip"
	"github.com/dpup/tripmap/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (TRIPMAP_ env vars also apply)")
		owner      = flag.String("owner", "", "Owner whose trips are exported")
		format     = flag.String("format", "png", "Output format: png, kml or geojson")
		start      = flag.String("start", "", "Only trips starting on or after this date (YYYY-MM-DD)")
		end        = flag.String("end", "", "Only trips starting on or before this date (YYYY-MM-DD)")
		out        = flag.String("out", "", "Output file (defaults to the web app's file name)")
		noTiles    = flag.Bool("no-tiles", false, "Render PNG on a plain background")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help || *owner == "" {
		fmt.Printf("Trip Map Export Tool\n\n")
		fmt.Printf("Renders an owner's trips to PNG, KML or GeoJSON.\n\n")
		fmt.Printf("Usage: %s -owner=NAME [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s -owner=alice\n", os.Args[0])
		fmt.Printf("  %s -owner=alice -format=kml -start=2024-01-01 -end=2024-12-31\n", os.Args[0])
		if *owner == "" && !*help {
			os.Exit(2)
		}
		return
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	filter := trip.DateRange{Start: *start, End: *end}
	if err := filter.Validate(); err != nil {
		log.Fatalf("Invalid date range: %v", err)
	}

	s, err := store.Open(store.Config{Path: cfg.Store.Path})
	if err != nil {
		log.Fatalf("Failed to open trip store: %v", err)
	}
	defer s.Close()

	trips, err := s.List(context.Background(), *owner)
	if err != nil {
		log.Fatalf("Failed to list trips: %v", err)
	}

	today := trip.DateOf(time.Now())
	frame := render.Compute(trips, render.Options{
		Today:     today,
		Filter:    filter,
		ArcPoints: cfg.Render.ArcPoints,
	})

	var buf bytes.Buffer
	switch *format {
	case "png":
		var regions *export.Regions
		if cfg.Export.RegionsPath != "" {
			if regions, err = export.LoadRegions(cfg.Export.RegionsPath, cfg.Export.RegionNameProperty); err != nil {
				log.Fatalf("Failed to load region boundaries: %v", err)
			}
		}
		err = export.PNG(&buf, frame, export.Options{
			Width:        cfg.Export.Width,
			Height:       cfg.Export.Height,
			Padding:      cfg.Export.Padding,
			TileProvider: cfg.Export.TileProvider,
			DisableTiles: cfg.Export.DisableTiles || *noTiles,
			UserAgent:    cfg.Routing.OSRM.UserAgent,
			Regions:      regions,
		})
	case "kml":
		err = export.KML(&buf, frame, *owner)
	case "geojson":
		var data []byte
		data, err = export.GeoJSON(frame).MarshalJSON()
		buf.Write(data)
	default:
		log.Fatalf("Unknown format %q", *format)
	}
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	path := *out
	if path == "" {
		path = export.Filename(filter, today, *format)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", path, err)
	}

	fmt.Printf("Exported %d trips (%d lines) for %s to %s\n",
		len(trip.Filter(trips, filter)), len(frame.Lines()), *owner, path)
	if frame.DateRangeText != "" {
		fmt.Printf("Date range: %s\n", frame.DateRangeText)
	}
}
