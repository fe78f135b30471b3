// Package route replays scripted viewport movements into a feed.
//
// A route is a YAML file:
//
//	loop: true
//	waypoints:
//	  - lat: 60.1699
//	    lon: 24.9384
//	    radius: 2000
//	    dwell: 10s
//	  - lat: 60.1712
//	    lon: 24.9410
//	    window: 24h   # time mode: only the last 24 hours
//	    dwell: 5s
package route

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abelbrown/soundprints/internal/feed"
	"github.com/abelbrown/soundprints/internal/logging"
	"github.com/abelbrown/soundprints/internal/sound"
)

// DefaultDwell is used for waypoints without a dwell time.
const DefaultDwell = 5 * time.Second

// Waypoint is one reported viewport and how long to stay there.
type Waypoint struct {
	Location sound.Location
	Radius   float64       // meters
	Window   time.Duration // time mode lookback, zero for unbounded
	Dwell    time.Duration
}

// Route is a parsed script.
type Route struct {
	Loop      bool
	Waypoints []Waypoint

	now func() time.Time
}

type rawRoute struct {
	Loop      bool          `yaml:"loop"`
	Waypoints []rawWaypoint `yaml:"waypoints"`
}

type rawWaypoint struct {
	Lat    float64 `yaml:"lat"`
	Lon    float64 `yaml:"lon"`
	Radius float64 `yaml:"radius"`
	Window string  `yaml:"window"`
	Dwell  string  `yaml:"dwell"`
}

// Load reads and parses a route file.
func Load(path string) (*Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a route script.
func Parse(data []byte) (*Route, error) {
	var raw rawRoute
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse route: %w", err)
	}
	if len(raw.Waypoints) == 0 {
		return nil, errors.New("route has no waypoints")
	}

	r := &Route{Loop: raw.Loop, now: time.Now}
	for i, w := range raw.Waypoints {
		wp := Waypoint{
			Location: sound.Location{Lat: w.Lat, Lon: w.Lon},
			Radius:   w.Radius,
			Dwell:    DefaultDwell,
		}
		if !wp.Location.Valid() {
			return nil, fmt.Errorf("waypoint %d: invalid coordinate %s", i, wp.Location)
		}
		if w.Radius < 0 {
			return nil, fmt.Errorf("waypoint %d: negative radius", i)
		}
		if w.Dwell != "" {
			d, err := time.ParseDuration(w.Dwell)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("waypoint %d: bad dwell %q", i, w.Dwell)
			}
			wp.Dwell = d
		}
		if w.Window != "" {
			d, err := time.ParseDuration(w.Window)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("waypoint %d: bad window %q", i, w.Window)
			}
			wp.Window = d
		}
		r.Waypoints = append(r.Waypoints, wp)
	}
	return r, nil
}

// Viewport converts a waypoint into the viewport reported at time now.
func (w Waypoint) Viewport(now time.Time) feed.Viewport {
	v := feed.Viewport{Location: w.Location, Radius: w.Radius}
	if w.Window > 0 {
		v.Since = now.Add(-w.Window)
	}
	return v
}

// Play reports each waypoint and waits its dwell time, repeating when the
// route loops. Returns nil when the route ends or ctx is cancelled.
func (r *Route) Play(ctx context.Context, report func(feed.Viewport)) error {
	now := r.now
	if now == nil {
		now = time.Now
	}
	for pass := 0; ; pass++ {
		for i, wp := range r.Waypoints {
			logging.Debug("Route waypoint", "pass", pass, "index", i, "location", wp.Location)
			report(wp.Viewport(now()))

			timer := time.NewTimer(wp.Dwell)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
		if !r.Loop {
			return nil
		}
	}
}
