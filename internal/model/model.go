package model

import (
	"strings"
	"time"
)

// Platform is the closed set a raw platform string is projected onto.
type Platform string

const (
	PlatformCodeforces Platform = "CODEFORCES"
	PlatformLeetCode   Platform = "LEETCODE"
	PlatformAtCoder    Platform = "ATCODER"
)

// Platforms lists every normalized platform in display order.
var Platforms = []Platform{PlatformCodeforces, PlatformLeetCode, PlatformAtCoder}

// Lower returns the lower-case form used in export filenames.
func (p Platform) Lower() string {
	return strings.ToLower(string(p))
}

// Contest is a single contest listing as supplied by the contest service.
// Values are treated as immutable; derived views copy them rather than
// modifying them in place.
type Contest struct {
	ID string `json:"id"`

	// Platform is the raw value from the data source (casing and synonyms
	// vary). NormalizedPlatform is derived from it on decode.
	Platform           string   `json:"platform"`
	NormalizedPlatform Platform `json:"normalizedPlatform"`

	Name string `json:"name"`
	URL  string `json:"url"`

	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`

	// DurationMinutes is authoritative and may disagree with EndTime-StartTime.
	DurationMinutes int `json:"durationMinutes"`

	// Status is an open set (UPCOMING, RUNNING, FINISHED, ...).
	Status string `json:"status,omitempty"`

	// LastSyncedAt is nil when the record was never synced.
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
}

// CalendarDay is one cell of a month grid.
type CalendarDay struct {
	// Date is midnight of the cell's day in the grid's location.
	Date     time.Time `json:"date"`
	Contests []Contest `json:"contests"`
}

// GridSize is the fixed number of cells in a month grid (6 weeks).
const GridSize = 42

// Grid is a month view of exactly GridSize days starting on a Sunday.
type Grid []CalendarDay

// Timeframe selects the date range of the calendar query.
type Timeframe string

const (
	TimeframeThisMonth  Timeframe = "this-month"
	TimeframeNext30Days Timeframe = "next-30-days"
)
