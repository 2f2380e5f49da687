package calendar

import (
	"fmt"
	"time"

	"contestcal/internal/model"
)

// MostRecentSync returns the latest non-nil LastSyncedAt.
func MostRecentSync(contests []model.Contest) (time.Time, bool) {
	var (
		latest time.Time
		found  bool
	)
	for _, c := range contests {
		if c.LastSyncedAt == nil {
			continue
		}
		if !found || c.LastSyncedAt.After(latest) {
			latest = *c.LastSyncedAt
			found = true
		}
	}
	return latest, found
}

// EstimateFreshness turns the most recent sync time into a relative label
// such as "5 min ago". ok is false when nothing was ever synced.
func EstimateFreshness(contests []model.Contest, now time.Time) (label string, ok bool) {
	latest, found := MostRecentSync(contests)
	if !found {
		return "", false
	}
	return RelativeLabel(latest, now), true
}

// RelativeLabel formats the age of t relative to now. Units are floored.
func RelativeLabel(t, now time.Time) string {
	diff := now.Sub(t)
	mins := int(diff / time.Minute)
	hours := int(diff / time.Hour)
	days := int(diff / (24 * time.Hour))

	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return fmt.Sprintf("%d min ago", mins)
	case hours < 24:
		return fmt.Sprintf("%d %s ago", hours, plural(hours, "hour"))
	case days < 7:
		return fmt.Sprintf("%d %s ago", days, plural(days, "day"))
	}

	local := t.In(now.Location())
	if local.Year() != now.Year() {
		return local.Format("Jan 2, 2006")
	}
	return local.Format("Jan 2")
}

func plural(n int, unit string) string {
	if n > 1 {
		return unit + "s"
	}
	return unit
}

// FormatDuration renders a contest length for listings: "45 min", "2h",
// "1h 30min".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dmin", h, m)
}
