package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/soundprints/internal/otel"
	"github.com/abelbrown/soundprints/internal/sound"
)

func TestScrollOffset(t *testing.T) {
	tests := []struct {
		cursor, total, visible, want int
	}{
		{0, 0, 5, 0},
		{0, 10, 5, 0},
		{4, 10, 5, 0},
		{5, 10, 5, 1},
		{9, 10, 5, 5},
		{20, 10, 5, 5}, // cursor past the end clamps
	}
	for _, tt := range tests {
		if got := scrollOffset(tt.cursor, tt.total, tt.visible); got != tt.want {
			t.Errorf("scrollOffset(%d, %d, %d) = %d, want %d", tt.cursor, tt.total, tt.visible, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo wörld", 5); got != "héll…" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes("abc", 0); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestRenderStreamEmpty(t *testing.T) {
	out := RenderStream(StreamView{Width: 80, Height: 10})
	if !strings.Contains(out, "No sounds") {
		t.Errorf("empty stream = %q", out)
	}
}

func TestRenderStreamScrollsToCursor(t *testing.T) {
	var list []sound.Item
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		list = append(list, sound.Item{ID: id, Name: "Sound " + id})
	}
	out := RenderStream(StreamView{Items: list, Cursor: 5, Width: 80, Height: 4, Now: testNow})
	if strings.Contains(out, "Sound a") {
		t.Error("first row should be scrolled out")
	}
	if !strings.Contains(out, "Sound f") {
		t.Error("cursor row should be visible")
	}
}

func TestRenderStreamBadges(t *testing.T) {
	list := []sound.Item{
		{ID: "p", Name: "Gold", Category: sound.CategoryPremium},
		{ID: "n", Name: "Mine", Category: sound.CategoryNormal},
	}
	out := RenderStream(StreamView{
		Items:  list,
		Width:  80,
		Height: 10,
		Fresh:  map[string]bool{"n": true},
		Now:    testNow,
	})
	if !strings.Contains(out, "★") {
		t.Error("premium sound should carry a badge")
	}
	if !strings.Contains(out, "new") {
		t.Error("fresh upload should carry a badge")
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "0ms"},
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{3 * time.Minute, "3m"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.d); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestDebugOverlayNilRing(t *testing.T) {
	if got := debugOverlay(nil, 80, 24, testNow); got != "" {
		t.Errorf("nil ring should render nothing, got %q", got)
	}
}

func TestDebugOverlayCounts(t *testing.T) {
	ring := otel.NewRingBuffer(16)
	ring.Push(otel.Event{Time: testNow, Kind: otel.KindFetchStart})
	ring.Push(otel.Event{Time: testNow, Kind: otel.KindFetchComplete, Count: 20})
	ring.Push(otel.Event{Time: testNow, Kind: otel.KindInvalidate, Generation: 1, Msg: "viewport"})

	out := debugOverlay(ring, 100, 40, testNow)
	for _, want := range []string{"1 started", "1 complete", "1 invalidations", "3 / 16 events", "feed.invalidate"} {
		if !strings.Contains(out, want) {
			t.Errorf("overlay missing %q", want)
		}
	}
}
