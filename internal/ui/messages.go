// Package ui provides the Bubble Tea TUI for Soundprints.
package ui

import (
	"github.com/abelbrown/soundprints/internal/filter"
	"github.com/abelbrown/soundprints/internal/sound"
)

// FeedReplaced is sent when the feed reloads its whole collection.
type FeedReplaced struct {
	Items []sound.Item
}

// FeedAppended is sent when a page adds items to the end.
type FeedAppended struct {
	Items []sound.Item
}

// ItemInserted is sent when an upload finished. Index is feed.NoIndex when
// the item is filtered out of the list.
type ItemInserted struct {
	Item  sound.Item
	Index int
}

// UploadFailed is sent when an upload could not be completed.
type UploadFailed struct {
	Err error
}

// FetchFailed is sent when a page could not be fetched.
type FetchFailed struct {
	Err error
}

// UploadSubmitted is the result of handing a file to the feed.
type UploadSubmitted struct {
	Path string
	Err  error
}

// PageRequested is the result of asking the feed for the next page.
type PageRequested struct {
	Err error
}

// FilterApplied is sent after a new filter selection was stored.
type FilterApplied struct {
	Selection filter.Selection
	Err       error
}

// PlaybackResolved carries a playback URL for an item.
type PlaybackResolved struct {
	ItemID string
	Ref    sound.ResourceRef
	Err    error
}
