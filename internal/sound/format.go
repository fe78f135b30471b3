package sound

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatDistance renders meters the way the list shows them: whole meters
// below a kilometer, one decimal kilometer above.
func FormatDistance(meters float64) string {
	if meters < 0 {
		return "0m"
	}
	if meters < 1000 {
		return fmt.Sprintf("%.0fm", meters)
	}
	return fmt.Sprintf("%.1fkm", meters/1000)
}

// FormatDuration renders a playback duration. Short form ("1m 5s") is used
// when short is set or the duration is a minute or longer.
func FormatDuration(d time.Duration, short bool) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)

	if !short && d < time.Minute {
		if s == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", s)
	}

	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return strings.Join(parts, " ")
}

// Summary is the secondary line of a list row:
// "1m 5s, 3.0km · 2 hours ago". Parts that are unknown are left out.
func (it Item) Summary(origin *Location, now time.Time) string {
	var head string
	dist, hasDist := 0.0, false
	if origin != nil {
		dist, hasDist = it.DistanceFrom(*origin)
	} else if it.Distance != nil {
		dist, hasDist = *it.Distance, true
	}

	switch {
	case it.Duration > 0 && hasDist:
		head = FormatDuration(it.Duration, true) + ", " + FormatDistance(dist)
	case it.Duration > 0:
		head = FormatDuration(it.Duration, false)
	case hasDist:
		head = FormatDistance(dist)
	}

	if it.CreatedAt.IsZero() {
		return head
	}
	ago := humanize.RelTime(it.CreatedAt, now, "ago", "from now")
	if head == "" {
		return ago
	}
	return head + " · " + ago
}
