// Package calendar derives the month grid and summary views from contest
// collections. Everything here is a pure function of its inputs.
package calendar

import (
	"time"

	"github.com/teambition/rrule-go"

	"contestcal/internal/model"
)

type dayKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dayKey {
	y, m, d := t.Date()
	return dayKey{y, m, d}
}

// MonthBounds returns midnight of the first and of the last day of the month.
func MonthBounds(year int, month time.Month, loc *time.Location) (first, last time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	first = time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last = time.Date(year, month+1, 0, 0, 0, 0, 0, loc)
	return first, last
}

type gridOptions struct {
	adjacentDays bool
}

// GridOption tweaks BuildGrid.
type GridOption func(*gridOptions)

// WithAdjacentDays also buckets contests into the leading and trailing cells
// that belong to the previous and next month.
func WithAdjacentDays() GridOption {
	return func(o *gridOptions) { o.adjacentDays = true }
}

// BuildGrid lays out a 6-week grid for the month, starting on the Sunday on
// or before the 1st, and buckets contests by the calendar day of StartTime
// in loc. Leading and trailing cells stay empty unless WithAdjacentDays is
// given.
func BuildGrid(year int, month time.Month, loc *time.Location, contests []model.Contest, opts ...GridOption) model.Grid {
	if loc == nil {
		loc = time.UTC
	}
	var o gridOptions
	for _, opt := range opts {
		opt(&o)
	}

	first, _ := MonthBounds(year, month, loc)
	startingWeekday := int(first.Weekday())
	gridStart := time.Date(first.Year(), first.Month(), 1-startingWeekday, 0, 0, 0, 0, loc)

	byDay := make(map[dayKey][]model.Contest)
	for _, c := range contests {
		k := keyOf(c.StartTime.In(loc))
		byDay[k] = append(byDay[k], c)
	}

	grid := make(model.Grid, 0, model.GridSize)
	for _, d := range gridDays(gridStart, loc) {
		bucket := byDay[keyOf(d)]
		if !o.adjacentDays && d.Month() != first.Month() {
			bucket = nil
		}
		if bucket == nil {
			bucket = []model.Contest{}
		}
		grid = append(grid, model.CalendarDay{Date: d, Contests: bucket})
	}
	return grid
}

// gridDays enumerates GridSize consecutive local midnights from start. A
// DAILY rule keeps wall-clock midnight across DST shifts.
func gridDays(start time.Time, loc *time.Location) []time.Time {
	// A DAILY rule with a count and a start date always validates.
	r, _ := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Count:   model.GridSize,
		Dtstart: start,
	})
	days := r.All()
	for i, d := range days {
		d = d.In(loc)
		days[i] = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	}
	return days
}

// InMonth reports whether the cell belongs to the requested month (as
// opposed to a leading or trailing day).
func InMonth(day model.CalendarDay, month time.Month) bool {
	return day.Date.Month() == month
}
