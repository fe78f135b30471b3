// Command soundprints is the terminal client for the soundprints feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/soundprints/internal/config"
	"github.com/abelbrown/soundprints/internal/coord"
	"github.com/abelbrown/soundprints/internal/feed"
	"github.com/abelbrown/soundprints/internal/filter"
	"github.com/abelbrown/soundprints/internal/logging"
	"github.com/abelbrown/soundprints/internal/otel"
	"github.com/abelbrown/soundprints/internal/remote"
	"github.com/abelbrown/soundprints/internal/route"
	"github.com/abelbrown/soundprints/internal/sound"
	"github.com/abelbrown/soundprints/internal/store"
	"github.com/abelbrown/soundprints/internal/throttle"
	"github.com/abelbrown/soundprints/internal/ui"
)

func main() {
	mode := flag.String("mode", "", "feed mode: location or time (default from config)")
	lat := flag.Float64("lat", 60.1699, "starting latitude")
	lon := flag.Float64("lon", 24.9384, "starting longitude")
	radius := flag.Float64("radius", 1000, "viewport radius in meters")
	window := flag.Duration("window", 0, "time mode viewport width, e.g. 24h (0 is unbounded)")
	routePath := flag.String("route", "", "YAML route to replay into the feed")
	upload := flag.String("upload", "", "recording to upload once the feed has a viewport")
	dbPath := flag.String("db", "", "SQLite database path (default ~/.soundprints/soundprints.db)")
	keysFile := flag.String("keys", "", "file with export KEY=value API credentials")
	flag.Parse()

	if err := logging.Init(""); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		fatal("Failed to load config", err)
	}
	if *keysFile != "" {
		if err := cfg.LoadKeysFromFile(*keysFile); err != nil {
			fatal("Failed to read keys file", err)
		}
	}
	if *mode != "" {
		cfg.Feed.Mode = *mode
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	opts, err := cfg.FeedOptions()
	if err != nil {
		fatal("Invalid feed settings", err)
	}

	origin := sound.Location{Lat: *lat, Lon: *lon}
	if !origin.Valid() {
		fatal("Invalid starting location", fmt.Errorf("%s is out of range", origin))
	}

	var rt *route.Route
	if *routePath != "" {
		if rt, err = route.Load(*routePath); err != nil {
			fatal("Failed to load route", err)
		}
	}

	// Events: JSONL file plus an in-memory ring for the debug overlay
	events := openEventLog()
	ring := otel.NewRingBuffer(otel.DefaultRingSize)
	events.SetRingBuffer(ring)
	defer events.Close()
	opts.Events = events

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath()), 0755); err != nil {
		fatal("Failed to create data directory", err)
	}
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		fatal("Failed to open database", err)
	}
	defer st.Close()
	logging.Info("Store initialized", "path", cfg.DBPath())

	client, err := remote.New(remote.StaticToken(cfg.API.Token), cfg.RemoteOptions())
	if err != nil {
		fatal("Failed to create API client", err)
	}

	filters := filter.NewState(st)
	model := feed.New(client, filters, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coordinator := coord.New(model, filters, coord.Options{
		Route:    rt,
		Uploads:  st,
		Resolver: sound.NewResolver(client),
		Events:   events,
	})

	app := ui.NewApp(ui.AppConfig{
		Mode:              opts.Mode,
		Origin:            origin,
		Radius:            *radius,
		Window:            *window,
		PanStep:           cfg.UI.PanStepM,
		PrefetchThreshold: cfg.UI.PrefetchThreshold,
		Filter:            filters.Current(),

		SetState:       coordinator.SetState,
		ReportViewport: coordinator.ReportViewport,
		FetchNextPage:  coordinator.FetchNextPage,
		SetFilter:      coordinator.SetFilter,
		Submit:         coordinator.Submit,
		Resolve:        coordinator.Resolve,

		Throttle: throttle.New(cfg.ViewportThrottle(), cfg.UI.MaxBurst),
		Events:   ring,
	})

	program := tea.NewProgram(app, tea.WithAltScreen())
	coordinator.Start(ctx, program)

	// The first viewport starts the feed. A route reports its own.
	if rt == nil {
		vp := feed.Viewport{Location: origin, Radius: *radius}
		if opts.Mode == feed.ModeTime {
			vp = feed.Viewport{}
			if *window > 0 {
				vp.Since = time.Now().Add(-*window)
			}
		}
		coordinator.ReportViewport(vp)
	}
	if *upload != "" {
		go func() {
			if err := model.SubmitItem(*upload); err != nil {
				logging.Warn("Upload not started", "path", *upload, "error", err)
			}
		}()
	}

	logging.Info("Starting UI", "mode", opts.Mode)
	if _, err := program.Run(); err != nil {
		logging.Error("Application error", "error", err)
	}

	cancel()
	if err := coordinator.Wait(); err != nil {
		logging.Error("Session error", "error", err)
	}
	logging.Info("Soundprints exiting normally")
}

// openEventLog appends to the JSONL event log, falling back to a logger
// that only feeds the ring buffer.
func openEventLog() *otel.Logger {
	path := config.EventLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logging.Warn("Event log disabled", "error", err)
		return otel.NewNullLogger()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logging.Warn("Event log disabled", "error", err)
		return otel.NewNullLogger()
	}
	return otel.NewLogger(f)
}

func fatal(msg string, err error) {
	logging.Error(msg, "error", err)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	logging.Close()
	os.Exit(1)
}
