package sound

import "time"

// LocationQuery asks for sounds ordered by distance from Origin.
// MinDistance is the pagination frontier: only sounds farther than it are
// returned.
type LocationQuery struct {
	Origin      Location
	MinDistance float64
	MaxDistance float64
	Category    Category
	OnlyLastDay bool
	Limit       int
}

// TimeQuery asks for sounds ordered newest first. UpTo is the pagination
// frontier (exclusive); Since is the lower bound. Nil means unbounded.
type TimeQuery struct {
	Category Category
	UpTo     *time.Time
	Since    *time.Time
	Limit    int
}

// UploadRequest describes a recorded file to publish.
type UploadRequest struct {
	FilePath string
	Location *Location
	Category Category
}

// ResourceRef is a signed playback URL with an expiration.
type ResourceRef struct {
	URL       string
	ExpiresAt time.Time
}

// Valid reports whether the reference can still be used at now.
func (r ResourceRef) Valid(now time.Time) bool {
	return r.URL != "" && r.ExpiresAt.After(now)
}
