// Package feed keeps a deduplicated, paginated collection of sounds for a
// geographic or temporal viewport.
//
// A Model owns all of its state on a single goroutine (Run). Callers report
// viewport and state changes; the model decides when the collection is stale,
// invalidates it, and pages results in from a Client. Changes are delivered
// to subscribed Observers.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abelbrown/soundprints/internal/filter"
	"github.com/abelbrown/soundprints/internal/otel"
	"github.com/abelbrown/soundprints/internal/sound"
)

var (
	// ErrNoActiveViewport is returned when pagination or upload is asked for
	// before any viewport was reported.
	ErrNoActiveViewport = errors.New("feed: no active viewport")

	// ErrStopped is returned by synchronous calls after Run has returned.
	ErrStopped = errors.New("feed: model stopped")

	// ErrNotRunning is returned by synchronous calls made before Run.
	ErrNotRunning = errors.New("feed: model not running")
)

// Mode selects the ordering and pagination strategy.
type Mode int

const (
	// ModeLocation orders by ascending distance from the viewport center.
	ModeLocation Mode = iota
	// ModeTime orders newest first.
	ModeTime
)

func (m Mode) String() string {
	switch m {
	case ModeLocation:
		return "location"
	case ModeTime:
		return "time"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts "location" or "time".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "location", "":
		return ModeLocation, nil
	case "time":
		return ModeTime, nil
	}
	return 0, fmt.Errorf("unknown feed mode %q", s)
}

// State is what the user is looking at.
type State int

const (
	// StateFocused is the map: viewport changes may invalidate the feed.
	StateFocused State = iota
	// StateBrowsing is the list: the collection stays put while scrolling.
	StateBrowsing
)

func (s State) String() string {
	if s == StateBrowsing {
		return "browsing"
	}
	return "focused"
}

// Viewport is the region (location mode) or time window (time mode) the
// user is looking at. Zero Since/Until mean unbounded.
type Viewport struct {
	Location sound.Location
	Radius   float64 // meters
	Since    time.Time
	Until    time.Time
}

// Client fetches pages and uploads recordings.
type Client interface {
	FetchByLocation(ctx context.Context, q sound.LocationQuery) ([]sound.Item, error)
	FetchByTime(ctx context.Context, q sound.TimeQuery) ([]sound.Item, error)
	Upload(ctx context.Context, r sound.UploadRequest) (sound.Item, error)
}

// Filters supplies the current filter selection.
type Filters interface {
	Current() filter.Selection
}

// Options tunes a Model. Zero fields take the DefaultOptions value.
type Options struct {
	Mode  Mode
	State State // initial display state, StateFocused by default

	RefreshInterval      time.Duration // periodic staleness check
	InvalidationInterval time.Duration // max age before a forced refresh
	DistanceThreshold    float64       // meters the viewport may drift
	LocationPageSize     int
	TimePageSize         int
	MaxRadius            float64 // meters
	FetchTimeout         time.Duration
	UploadTimeout        time.Duration

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	// Events receives structured feed events. Optional.
	Events *otel.Logger
}

// DefaultOptions returns the stock tuning for mode.
func DefaultOptions(mode Mode) Options {
	return Options{
		Mode:                 mode,
		RefreshInterval:      5 * time.Second,
		InvalidationInterval: 60 * time.Second,
		DistanceThreshold:    100,
		LocationPageSize:     20,
		TimePageSize:         50,
		MaxRadius:            10000,
		FetchTimeout:         30 * time.Second,
		UploadTimeout:        2 * time.Minute,
		Now:                  time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions(o.Mode)
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = d.RefreshInterval
	}
	if o.InvalidationInterval <= 0 {
		o.InvalidationInterval = d.InvalidationInterval
	}
	if o.DistanceThreshold <= 0 {
		o.DistanceThreshold = d.DistanceThreshold
	}
	if o.LocationPageSize <= 0 {
		o.LocationPageSize = d.LocationPageSize
	}
	if o.TimePageSize <= 0 {
		o.TimePageSize = d.TimePageSize
	}
	if o.MaxRadius <= 0 {
		o.MaxRadius = d.MaxRadius
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = d.FetchTimeout
	}
	if o.UploadTimeout <= 0 {
		o.UploadTimeout = d.UploadTimeout
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// Snapshot is a copy of the model state at one point in the loop.
type Snapshot struct {
	Mode             Mode
	State            State
	Items            []sound.Item
	DistanceCursor   float64   // location mode frontier, meters
	TimeCursor       time.Time // time mode frontier, zero when unset
	Generation       uint64
	Fetching         bool
	Latest           *Viewport
	Active           *Viewport
	LastInvalidation time.Time
}
