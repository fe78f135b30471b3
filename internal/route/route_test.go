package route

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/soundprints/internal/feed"
)

const sample = `
loop: false
waypoints:
  - lat: 60.1699
    lon: 24.9384
    radius: 2000
    dwell: 1ms
  - lat: 60.1712
    lon: 24.9410
    window: 24h
    dwell: 1ms
`

func TestParse(t *testing.T) {
	r, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Loop || len(r.Waypoints) != 2 {
		t.Fatalf("route = %+v", r)
	}
	w := r.Waypoints[0]
	if w.Location.Lat != 60.1699 || w.Radius != 2000 || w.Dwell != time.Millisecond {
		t.Errorf("waypoint 0 = %+v", w)
	}
	if r.Waypoints[1].Window != 24*time.Hour {
		t.Errorf("window = %v", r.Waypoints[1].Window)
	}
}

func TestParseDefaults(t *testing.T) {
	r, err := Parse([]byte("waypoints:\n  - lat: 1\n    lon: 2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if r.Waypoints[0].Dwell != DefaultDwell {
		t.Errorf("dwell = %v", r.Waypoints[0].Dwell)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "loop: true\n", "no waypoints"},
		{"bad yaml", "waypoints: [", "parse route"},
		{"bad lat", "waypoints:\n  - lat: 120\n    lon: 0\n", "invalid coordinate"},
		{"bad dwell", "waypoints:\n  - lat: 0\n    lon: 0\n    dwell: soon\n", "bad dwell"},
		{"negative radius", "waypoints:\n  - lat: 0\n    lon: 0\n    radius: -5\n", "negative radius"},
		{"bad window", "waypoints:\n  - lat: 0\n    lon: 0\n    window: -1h\n", "bad window"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.yaml")
	if err := os.WriteFile(path, []byte(sample), 0644); err != nil {
		t.Fatal(err)
	}
	r, err := Load(path)
	if err != nil || len(r.Waypoints) != 2 {
		t.Fatalf("Load = %v, %v", r, err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPlayReportsInOrder(t *testing.T) {
	r, _ := Parse([]byte(sample))
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	var got []feed.Viewport
	if err := r.Play(context.Background(), func(v feed.Viewport) { got = append(got, v) }); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("reported %d viewports", len(got))
	}
	if got[0].Radius != 2000 || !got[0].Since.IsZero() {
		t.Errorf("viewport 0 = %+v", got[0])
	}
	if want := fixed.Add(-24 * time.Hour); !got[1].Since.Equal(want) {
		t.Errorf("viewport 1 since = %v, want %v", got[1].Since, want)
	}
}

func TestPlayLoopsUntilCancelled(t *testing.T) {
	r, _ := Parse([]byte(strings.Replace(sample, "loop: false", "loop: true", 1)))

	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Play(ctx, func(feed.Viewport) {
			count++
			if count == 5 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Play returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not stop after cancel")
	}
	if count != 5 {
		t.Errorf("reported %d viewports, want 5", count)
	}
}
