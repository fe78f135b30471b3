// Package sound defines the items that flow through the soundprints feed.
//
// Items are immutable values fetched from the remote service. Everything in
// this package measures distance in meters.
package sound

import (
	"fmt"
	"time"
)

// Category is the server-side classification of a sound.
type Category string

const (
	CategoryNormal  Category = "normal"
	CategoryPremium Category = "premium"
)

// UploadCategory is attached to every sound created from this client.
const UploadCategory = CategoryNormal

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryNormal, CategoryPremium:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Author identifies the user who recorded a sound.
type Author struct {
	ID              string
	DisplayName     string
	ProfileImageURL string
}

// Item is a single sound record.
type Item struct {
	ID          string
	Name        string
	Description string
	Location    *Location // nil when the server did not report one
	Category    Category
	CreatedAt   time.Time
	Duration    time.Duration
	Author      Author

	// Distance is meters from the query origin, computed by the server at
	// fetch time. Nil for time-ordered pages.
	Distance *float64
}

// DistanceFrom returns the distance of the item from origin in meters.
// The server-reported distance wins; otherwise it is computed from the
// item's location.
func (it Item) DistanceFrom(origin Location) (float64, bool) {
	if it.Distance != nil {
		return *it.Distance, true
	}
	if it.Location != nil {
		return origin.DistanceTo(*it.Location), true
	}
	return 0, false
}

// Meters is a convenience for building optional distances.
func Meters(m float64) *float64 {
	return &m
}

// IDs returns the ids of items in order.
func IDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
