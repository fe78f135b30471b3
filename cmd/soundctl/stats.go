package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/abelbrown/soundprints/internal/config"
)

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	withUploads := fs.Bool("uploads", false, "Include local upload history section")
	fs.Parse(os.Args[1:])

	// --- Event statistics ---

	f, err := os.Open(config.EventLogPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	counts := map[string]int{}
	sessions := map[string]bool{}
	var fetchMs []float64
	var first, last time.Time

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		var ev eventRecord
		if json.Unmarshal(scanner.Bytes(), &ev) != nil {
			continue
		}
		counts[ev.Kind]++
		sessions[ev.SessionID] = true
		if ev.Kind == "fetch.complete" && ev.DurMs > 0 {
			fetchMs = append(fetchMs, ev.DurMs)
		}
		if first.IsZero() || ev.Time.Before(first) {
			first = ev.Time
		}
		if ev.Time.After(last) {
			last = ev.Time
		}
	}

	total := 0
	kinds := make([]string, 0, len(counts))
	for k, n := range counts {
		kinds = append(kinds, k)
		total += n
	}
	sort.Strings(kinds)

	fmt.Printf("Events:                %s\n", humanize.Comma(int64(total)))
	fmt.Printf("Sessions:              %d\n", len(sessions))
	if !first.IsZero() {
		fmt.Printf("First event:           %s\n", humanize.Time(first))
		fmt.Printf("Last event:            %s\n", humanize.Time(last))
	}

	fmt.Printf("\nBy kind (%d):\n", len(kinds))
	for _, k := range kinds {
		fmt.Printf("  %-22s %d\n", k, counts[k])
	}

	if started := counts["fetch.start"]; started > 0 {
		fmt.Printf("\nDiscarded fetches:     %.1f%%\n", float64(counts["fetch.discard"])/float64(started)*100)
		fmt.Printf("Failed fetches:        %.1f%%\n", float64(counts["fetch.error"])/float64(started)*100)
	}
	if len(fetchMs) > 0 {
		sort.Float64s(fetchMs)
		fmt.Printf("Fetch p50 / p95:       %.0fms / %.0fms\n",
			fetchMs[len(fetchMs)/2], fetchMs[len(fetchMs)*95/100])
	}

	// --- Upload section ---
	if !*withUploads {
		return
	}

	cfg := loadConfig()
	st := openDB(cfg)
	defer st.Close()

	uploads, err := st.RecentUploads(5000)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("=== Uploads ===")
	fmt.Printf("Recorded uploads:      %d\n", len(uploads))
	if len(uploads) == 0 {
		return
	}

	now := time.Now()
	buckets := []time.Duration{
		1 * time.Hour, 24 * time.Hour, 7 * 24 * time.Hour, 30 * 24 * time.Hour,
	}
	labels := []string{"<1h", "<24h", "<7d", "<30d"}
	for i, d := range buckets {
		count := 0
		for _, u := range uploads {
			if now.Sub(u.CreatedAt) < d {
				count++
			}
		}
		fmt.Printf("  %-8s %d\n", labels[i], count)
	}

	var recorded time.Duration
	for _, u := range uploads {
		recorded += u.Duration
	}
	fmt.Printf("\nTotal recorded time:   %s\n", recorded.Round(time.Second))
	fmt.Printf("Newest upload:         %s\n", humanize.Time(uploads[0].CreatedAt))
}
