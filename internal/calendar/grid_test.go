package calendar

import (
	"testing"
	"time"

	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contestcal/internal/model"
)

func contestAt(id string, start time.Time) model.Contest {
	return model.Contest{
		ID:              id,
		Name:            "Contest " + id,
		StartTime:       start,
		EndTime:         start.Add(2 * time.Hour),
		DurationMinutes: 120,
	}
}

func TestBuildGridAlwaysFortyTwoCells(t *testing.T) {
	for year := 2023; year <= 2026; year++ {
		for month := time.January; month <= time.December; month++ {
			grid := BuildGrid(year, month, time.UTC, nil)
			require.Len(t, grid, model.GridSize, "%d-%02d", year, month)

			first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
			idx := int(first.Weekday())
			assert.True(t, grid[idx].Date.Equal(first), "%d-%02d: cell %d is %s", year, month, idx, grid[idx].Date)
			assert.Equal(t, time.Sunday, grid[0].Date.Weekday())
			assert.Equal(t, time.Saturday, grid[41].Date.Weekday())

			for i := 1; i < len(grid); i++ {
				assert.Equal(t, grid[i-1].Date.AddDate(0, 0, 1), grid[i].Date)
			}
		}
	}
}

func TestBuildGridFebruaryStartingSunday(t *testing.T) {
	// February 2026 starts on a Sunday and fits exactly 4 weeks.
	grid := BuildGrid(2026, time.February, time.UTC, nil)
	require.Len(t, grid, 42)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), grid[0].Date)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), grid[41].Date)
}

func TestBuildGridLeadingDaysFromPreviousMonth(t *testing.T) {
	// March 2025 starts on a Saturday: six leading days from February.
	grid := BuildGrid(2025, time.March, time.UTC, nil)
	assert.Equal(t, time.Date(2025, 2, 23, 0, 0, 0, 0, time.UTC), grid[0].Date)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), grid[5].Date)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), grid[6].Date)
	assert.False(t, InMonth(grid[5], time.March))
	assert.True(t, InMonth(grid[6], time.March))
}

func TestBuildGridBucketsByDay(t *testing.T) {
	march1 := contestAt("m1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))

	countCells := func(grid model.Grid, id string) int {
		n := 0
		for _, day := range grid {
			for _, c := range day.Contests {
				if c.ID == id {
					n++
				}
			}
		}
		return n
	}

	assert.Equal(t, 1, countCells(BuildGrid(2025, time.March, time.UTC, []model.Contest{march1}), "m1"))
	assert.Equal(t, 1, countCells(BuildGrid(2025, time.March, time.UTC, []model.Contest{march1}, WithAdjacentDays()), "m1"))

	// The February 2025 grid trails into Mar 1..Mar 8, but those cells stay empty.
	feb := BuildGrid(2025, time.February, time.UTC, []model.Contest{march1})
	assert.Equal(t, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), feb[41].Date)
	assert.Equal(t, 0, countCells(feb, "m1"))
	assert.Empty(t, feb[34].Contests)
	assert.NotNil(t, feb[34].Contests)
	assert.Equal(t, 0, countCells(BuildGrid(2025, time.January, time.UTC, []model.Contest{march1}), "m1"))
}

func TestBuildGridWithAdjacentDays(t *testing.T) {
	march1 := contestAt("m1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	feb28 := contestAt("f28", time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC))

	feb := BuildGrid(2025, time.February, time.UTC, []model.Contest{march1}, WithAdjacentDays())
	require.Len(t, feb[34].Contests, 1)
	assert.Equal(t, "m1", feb[34].Contests[0].ID)
	assert.False(t, InMonth(feb[34], time.February))

	march := BuildGrid(2025, time.March, time.UTC, []model.Contest{feb28}, WithAdjacentDays())
	require.Len(t, march[5].Contests, 1)
	assert.Equal(t, "f28", march[5].Contests[0].ID)
	assert.Empty(t, BuildGrid(2025, time.March, time.UTC, []model.Contest{feb28})[5].Contests)
}

func TestBuildGridPreservesSourceOrderWithoutDedup(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	contests := []model.Contest{
		contestAt("b", day.Add(20*time.Hour)),
		contestAt("a", day.Add(2*time.Hour)),
		contestAt("b", day.Add(20*time.Hour)),
	}
	grid := BuildGrid(2025, time.March, time.UTC, contests)

	var cell model.CalendarDay
	for _, d := range grid {
		if d.Date.Equal(day) {
			cell = d
		}
	}
	require.Len(t, cell.Contests, 3)
	assert.Equal(t, []string{"b", "a", "b"}, []string{cell.Contests[0].ID, cell.Contests[1].ID, cell.Contests[2].ID})
}

func TestBuildGridUsesGridLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 2025-03-31T20:00Z is April 1st in Tokyo.
	c := contestAt("x", time.Date(2025, 3, 31, 20, 0, 0, 0, time.UTC))

	utcGrid := BuildGrid(2025, time.March, time.UTC, []model.Contest{c})
	tokyoGrid := BuildGrid(2025, time.March, tokyo, []model.Contest{c}, WithAdjacentDays())

	find := func(grid model.Grid) time.Time {
		for _, d := range grid {
			if len(d.Contests) > 0 {
				return d.Date
			}
		}
		return time.Time{}
	}
	assert.Equal(t, 31, find(utcGrid).Day())
	assert.Equal(t, time.April, find(tokyoGrid).Month())
	assert.Equal(t, 1, find(tokyoGrid).Day())

	assert.True(t, find(BuildGrid(2025, time.March, tokyo, []model.Contest{c})).IsZero())
	assert.Equal(t, 1, find(BuildGrid(2025, time.April, tokyo, []model.Contest{c})).Day())
}

func TestBuildGridAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// DST starts 2025-03-09 02:00 local. 23:30 local on the 9th is 03:30Z on the 10th.
	c := contestAt("dst", time.Date(2025, 3, 10, 3, 30, 0, 0, time.UTC))
	grid := BuildGrid(2025, time.March, ny, []model.Contest{c})
	require.Len(t, grid, 42)

	for _, d := range grid {
		assert.Equal(t, 0, d.Date.Hour(), d.Date.String())
		if len(d.Contests) > 0 {
			assert.Equal(t, 9, d.Date.Day())
		}
	}
}

func TestBuildGridIsRepeatable(t *testing.T) {
	contests := []model.Contest{
		contestAt("1", time.Date(2025, 3, 3, 14, 35, 0, 0, time.UTC)),
		contestAt("2", time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)),
	}
	a := BuildGrid(2025, time.March, time.UTC, contests)
	b := BuildGrid(2025, time.March, time.UTC, contests)
	assert.Equal(t, a, b)
}

func TestMonthBounds(t *testing.T) {
	first, last := MonthBounds(2024, time.February, nil)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), first)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), last)
}
