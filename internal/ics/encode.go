package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"contestcal/internal/model"
)

// ErrInvalidTime is returned when a contest start or end cannot be turned
// into an instant. No partial calendar text is produced in that case.
var ErrInvalidTime = errors.New("ics: invalid contest time")

const (
	ProductID = "-//SAP - Skill Analytics Platform//Contest Calendar//EN"

	uidDomain  = "skill-analytics-platform"
	timeLayout = "20060102T150405Z"
	crlf       = "\r\n"
)

// Event is the subset of a contest that ends up in an exported VEVENT.
type Event struct {
	Name  string
	URL   string
	Start time.Time
	End   time.Time
}

// inputLayouts are tried in order when parsing wire timestamps.
var inputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 wire timestamp. Values without an offset are
// taken as UTC.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidTime)
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
}

// ParseEvent builds an Event from raw wire strings.
func ParseEvent(name, url, startRaw, endRaw string) (Event, error) {
	start, err := ParseTime(startRaw)
	if err != nil {
		return Event{}, fmt.Errorf("start: %w", err)
	}
	end, err := ParseTime(endRaw)
	if err != nil {
		return Event{}, fmt.Errorf("end: %w", err)
	}
	return Event{Name: name, URL: url, Start: start, End: end}, nil
}

// EventFromContest projects a contest onto the exported fields.
func EventFromContest(c model.Contest) (Event, error) {
	ev := Event{Name: c.Name, URL: c.URL, Start: c.StartTime, End: c.EndTime}
	if err := ev.validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (ev Event) validate() error {
	if ev.Start.IsZero() {
		return fmt.Errorf("%w: missing start", ErrInvalidTime)
	}
	if ev.End.IsZero() {
		return fmt.Errorf("%w: missing end", ErrInvalidTime)
	}
	return nil
}

// Encode renders ev as a single-event calendar with a fresh UID and DTSTAMP.
func Encode(ev Event) (string, error) {
	now := time.Now()
	return EncodeAt(ev, now, NewUID(now))
}

// EncodeAt is Encode with the two volatile fields supplied by the caller.
// Lines are CRLF separated and the final line has no terminator.
func EncodeAt(ev Event, now time.Time, uid string) (string, error) {
	if err := ev.validate(); err != nil {
		return "", err
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + ProductID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"UID:" + uid,
		"DTSTAMP:" + FormatTime(now),
		"DTSTART:" + FormatTime(ev.Start),
		"DTEND:" + FormatTime(ev.End),
		"SUMMARY:" + EscapeText(ev.Name),
		"DESCRIPTION:" + EscapeText("Contest link: "+ev.URL),
		"URL:" + ev.URL,
		"STATUS:CONFIRMED",
		"SEQUENCE:0",
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, crlf), nil
}

// FormatTime renders t in UTC as YYYYMMDDTHHMMSSZ.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// NewUID returns "{unixMillis}-{9 random chars}@skill-analytics-platform".
func NewUID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%d-%s@%s", now.UnixMilli(), random, uidDomain)
}

// EscapeText applies TEXT escaping. Backslash goes first so later
// substitutions are not escaped twice.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// UnescapeText reverses EscapeText.
func UnescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
