package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/abelbrown/soundprints/internal/sound"
)

func runFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	mode := fs.String("mode", "location", "Ordering: location or time")
	lat := fs.Float64("lat", 60.1699, "Latitude (location mode)")
	lon := fs.Float64("lon", 24.9384, "Longitude (location mode)")
	minDist := fs.Float64("min", 0, "Minimum distance in meters (pagination cursor)")
	maxDist := fs.Float64("max", 10000, "Maximum distance in meters")
	upTo := fs.String("upto", "", "Only sounds created before this RFC3339 time (time mode)")
	category := fs.String("category", string(sound.CategoryNormal), "normal or premium")
	lastDay := fs.Bool("last-day", false, "Only sounds from the last 24 hours")
	limit := fs.Int("limit", 20, "Page size")
	fs.Parse(os.Args[1:])

	cat, err := sound.ParseCategory(*category)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	client := newClient(loadConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var (
		items  []sound.Item
		origin *sound.Location
	)
	start := time.Now()
	switch *mode {
	case "location":
		loc := sound.Location{Lat: *lat, Lon: *lon}
		origin = &loc
		items, err = client.FetchByLocation(ctx, sound.LocationQuery{
			Origin:      loc,
			MinDistance: *minDist,
			MaxDistance: *maxDist,
			Category:    cat,
			OnlyLastDay: *lastDay,
			Limit:       *limit,
		})
	case "time":
		q := sound.TimeQuery{Category: cat, Limit: *limit}
		if *upTo != "" {
			t, perr := time.Parse(time.RFC3339, *upTo)
			if perr != nil {
				fmt.Fprintf(os.Stderr, "error: bad -upto: %v\n", perr)
				os.Exit(1)
			}
			q.UpTo = &t
		}
		if *lastDay {
			since := time.Now().Add(-24 * time.Hour)
			q.Since = &since
		}
		items, err = client.FetchByTime(ctx, q)
	default:
		fmt.Fprintf(os.Stderr, "error: unknown mode %q\n", *mode)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	for i, it := range items {
		fmt.Printf("%3d. %-36s %-30s %s\n", i+1, it.ID, truncate(it.Name, 30), it.Summary(origin, now))
	}
	fmt.Printf("\n%d sounds in %s\n", len(items), time.Since(start).Round(time.Millisecond))
}
