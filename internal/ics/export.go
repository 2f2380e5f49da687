package ics

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"contestcal/internal/model"
)

// ErrRoundTrip reports encoded text that does not decode back to its event.
var ErrRoundTrip = errors.New("ics: encoded event does not round-trip")

// WriteContest encodes c and writes it to dir under its suggested
// filename. The encoded text is decoded and checked before writing, and
// nothing is written when the contest cannot be encoded.
func WriteContest(fsys afero.Fs, dir string, c model.Contest) (string, error) {
	ev, err := EventFromContest(c)
	if err != nil {
		return "", fmt.Errorf("ics: contest %s: %w", c.ID, err)
	}
	body, err := Encode(ev)
	if err != nil {
		return "", fmt.Errorf("ics: contest %s: %w", c.ID, err)
	}
	if err := Verify(body, ev); err != nil {
		return "", fmt.Errorf("ics: contest %s: %w", c.ID, err)
	}

	if dir == "" {
		dir = "."
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, Filename(c.NormalizedPlatform, c.Name))
	if err := afero.WriteFile(fsys, path, []byte(body), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Verify decodes body and checks that it holds exactly one event with a UID
// and the start and end of ev, to the second.
func Verify(body string, ev Event) error {
	events, err := Decode(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRoundTrip, err)
	}
	if len(events) != 1 {
		return fmt.Errorf("%w: %d events", ErrRoundTrip, len(events))
	}
	got := events[0]
	if got.UID == "" {
		return fmt.Errorf("%w: missing UID", ErrRoundTrip)
	}
	if !got.Start.Equal(ev.Start.Truncate(time.Second)) {
		return fmt.Errorf("%w: DTSTART %s, want %s", ErrRoundTrip, FormatTime(got.Start), FormatTime(ev.Start))
	}
	if !got.End.Equal(ev.End.Truncate(time.Second)) {
		return fmt.Errorf("%w: DTEND %s, want %s", ErrRoundTrip, FormatTime(got.End), FormatTime(ev.End))
	}
	return nil
}
