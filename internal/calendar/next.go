package calendar

import (
	"time"

	"contestcal/internal/model"
)

// SelectNext returns the contest with the earliest StartTime strictly after
// now. Ties keep the first one in input order.
func SelectNext(contests []model.Contest, now time.Time) (model.Contest, bool) {
	var (
		best  model.Contest
		found bool
	)
	for _, c := range contests {
		if !c.StartTime.After(now) {
			continue
		}
		if !found || c.StartTime.Before(best.StartTime) {
			best = c
			found = true
		}
	}
	return best, found
}
