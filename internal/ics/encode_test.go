package ics

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contestcal/internal/model"
)

func TestEncodeAtExactBytes(t *testing.T) {
	ev, err := ParseEvent("Div 2; Round, 1", "https://x", "2025-01-01T10:00:00Z", "2025-01-01T12:00:00Z")
	require.NoError(t, err)

	now := time.Date(2024, 12, 31, 23, 5, 9, 0, time.UTC)
	got, err := EncodeAt(ev, now, "1735686309000-abc123xyz@skill-analytics-platform")
	require.NoError(t, err)

	want := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//SAP - Skill Analytics Platform//Contest Calendar//EN\r\n" +
		"CALSCALE:GREGORIAN\r\n" +
		"METHOD:PUBLISH\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:1735686309000-abc123xyz@skill-analytics-platform\r\n" +
		"DTSTAMP:20241231T230509Z\r\n" +
		"DTSTART:20250101T100000Z\r\n" +
		"DTEND:20250101T120000Z\r\n" +
		"SUMMARY:Div 2\\; Round\\, 1\r\n" +
		"DESCRIPTION:Contest link: https://x\r\n" +
		"URL:https://x\r\n" +
		"STATUS:CONFIRMED\r\n" +
		"SEQUENCE:0\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR"
	assert.Equal(t, want, got)
}

func TestEncodeDiffersOnlyInVolatileFields(t *testing.T) {
	ev, err := ParseEvent("Div 2; Round, 1", "https://x", "2025-01-01T10:00:00Z", "2025-01-01T12:00:00Z")
	require.NoError(t, err)

	a, err := Encode(ev)
	require.NoError(t, err)
	b, err := Encode(ev)
	require.NoError(t, err)

	linesA := strings.Split(a, "\r\n")
	linesB := strings.Split(b, "\r\n")
	require.Len(t, linesA, 17)
	require.Len(t, linesB, 17)

	for i := range linesA {
		if strings.HasPrefix(linesA[i], "UID:") || strings.HasPrefix(linesA[i], "DTSTAMP:") {
			continue
		}
		assert.Equal(t, linesA[i], linesB[i], "line %d", i)
	}
	assert.NotEqual(t, linesA[6], linesB[6], "UID must be fresh per call")
	assert.Contains(t, a, "SUMMARY:Div 2\\; Round\\, 1\r\n")
	assert.Contains(t, a, "DTSTART:20250101T100000Z\r\n")
	assert.Contains(t, a, "DTEND:20250101T120000Z\r\n")
}

func TestNewUIDFormat(t *testing.T) {
	now := time.UnixMilli(1735725600123)
	uid := NewUID(now)
	assert.Regexp(t, regexp.MustCompile(`^1735725600123-[0-9a-f]{9}@skill-analytics-platform$`), uid)
}

func TestEncodeEmptyNameAndEscaping(t *testing.T) {
	ev := Event{
		URL:   "https://atcoder.jp/contests/abc400",
		Start: time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("JST", 9*3600)),
		End:   time.Date(2025, 3, 1, 13, 40, 0, 0, time.FixedZone("JST", 9*3600)),
	}
	out, err := EncodeAt(ev, time.Unix(0, 0), "u")
	require.NoError(t, err)
	assert.Contains(t, out, "\r\nSUMMARY:\r\n")
	assert.Contains(t, out, "DTSTART:20250301T030000Z\r\n")
	assert.Contains(t, out, "DTEND:20250301T044000Z\r\n")
	assert.False(t, strings.HasSuffix(out, "\r\n"))

	assert.Equal(t, `a\\\; b\, c\nd`, EscapeText("a\\; b, c\nd"))
	assert.Equal(t, `C:\\path`, EscapeText(`C:\path`))
}

func TestEscapeRoundTrip(t *testing.T) {
	for _, s := range []string{"", "plain", "Div 2; Round, 1", "line1\nline2", `back\slash;`} {
		assert.Equal(t, s, UnescapeText(EscapeText(s)))
	}
}

func TestParseEventRejectsBadTimes(t *testing.T) {
	_, err := ParseEvent("x", "https://x", "not-a-date", "2025-01-01T12:00:00Z")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTime))

	_, err = ParseEvent("x", "https://x", "2025-01-01T10:00:00Z", "")
	assert.ErrorIs(t, err, ErrInvalidTime)

	_, err = EncodeAt(Event{Name: "x"}, time.Now(), "u")
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestParseTimeLayouts(t *testing.T) {
	for raw, want := range map[string]time.Time{
		"2025-01-01T10:00:00Z":      time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		"2025-01-01T10:00:00.000Z":  time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		"2025-01-01T15:30:00+05:30": time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		"2025-01-01T10:00:00":       time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		"2025-01-01":                time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		got, err := ParseTime(raw)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), "%s: got %s", raw, got)
	}
}

func TestEventFromContest(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	ev, err := EventFromContest(model.Contest{Name: "n", URL: "u", StartTime: start, EndTime: start.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "n", ev.Name)

	_, err = EventFromContest(model.Contest{Name: "n", StartTime: start})
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "codeforces-div-2-round-1.ics", Filename(model.PlatformCodeforces, "Div 2; Round, 1"))
	assert.Equal(t, "leetcode-weekly-contest-432.ics", Filename(model.PlatformLeetCode, "Weekly Contest 432"))
	assert.Equal(t, "atcoder-.ics", Filename(model.PlatformAtCoder, ""))

	assert.Equal(t, "a-b", SanitizeName("a ! b"))
	assert.Equal(t, "a-b_c-d", SanitizeName("A\t\n B_c-D"))
	assert.Equal(t, "caf-round", SanitizeName("Café Round"))

	long := SanitizeName(strings.Repeat("abcdefghij ", 10))
	assert.Len(t, long, 50)
	assert.Equal(t, "abcdefghij-abcdefghij-abcdefghij-abcdefghij-abcdef", long)
}
