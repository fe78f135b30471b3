// Package otel records structured feed events for Soundprints.
//
// Events are typed structs serialized as JSONL lines by an asynchronous
// writer. A small RingBuffer keeps the most recent events in memory so the
// terminal UI can show what the feed is doing.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Feed pagination
	KindFetchStart    EventKind = "fetch.start"
	KindFetchComplete EventKind = "fetch.complete"
	KindFetchError    EventKind = "fetch.error"
	KindFetchDiscard  EventKind = "fetch.discard"

	// Feed lifecycle
	KindInvalidate  EventKind = "feed.invalidate"
	KindStateChange EventKind = "feed.state"
	KindViewport    EventKind = "feed.viewport"

	// Uploads and playback
	KindUploadComplete EventKind = "upload.complete"
	KindUploadError    EventKind = "upload.error"
	KindResolve        EventKind = "resource.resolve"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"
)

// Event is the universal record. Every field except Kind and Time is
// optional. Serialized as a single JSONL line.
type Event struct {
	Time       time.Time      `json:"t"`
	Level      Level          `json:"level,omitempty"`
	Kind       EventKind      `json:"kind"`
	Comp       string         `json:"comp,omitempty"` // "feed", "remote", "ui", "main"
	SessionID  string         `json:"session_id,omitempty"`
	Generation uint64         `json:"gen,omitempty"` // feed invalidation epoch
	Dur        time.Duration  `json:"-"`
	DurMs      float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count      int            `json:"count,omitempty"`
	ItemID     string         `json:"item,omitempty"`
	Cursor     string         `json:"cursor,omitempty"`
	Err        string         `json:"err,omitempty"`
	Msg        string         `json:"msg,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
