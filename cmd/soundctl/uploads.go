package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/abelbrown/soundprints/internal/sound"
)

func runUploads() {
	fs := flag.NewFlagSet("uploads", flag.ExitOnError)
	limit := fs.Int("n", 20, "Number of uploads to show")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	st := openDB(cfg)
	defer st.Close()

	uploads, err := st.RecentUploads(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(uploads) == 0 {
		fmt.Println("No uploads recorded yet.")
		return
	}

	now := time.Now()
	for _, u := range uploads {
		item := sound.Item{ID: u.ID, Name: u.Name, Duration: u.Duration, CreatedAt: u.CreatedAt}
		where := "-"
		if u.Lat != 0 || u.Lon != 0 {
			where = sound.Location{Lat: u.Lat, Lon: u.Lon}.String()
		}
		fmt.Printf("%-36s %-8s %-20s %-24s %s\n",
			u.ID, u.Category, truncate(u.Name, 20), where, item.Summary(nil, now))
	}
}
