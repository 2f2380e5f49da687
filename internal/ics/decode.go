package ics

import (
	"bytes"
	"errors"
	"io"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "contestcal/internal/log"
)

// DecodedEvent is a VEVENT read back from calendar text.
type DecodedEvent struct {
	Event

	UID    string
	Status string
}

// Decode parses calendar text (for example a previously exported file) and
// returns its events. Events without a UID or start are skipped.
func Decode(r io.Reader) ([]DecodedEvent, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}
	// Exports omit the final line terminator; the parser wants one.
	if !bytes.HasSuffix(body, []byte(crlf)) {
		body = append(body, crlf...)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	events := make([]DecodedEvent, 0)
	for _, ve := range cal.Events() {
		ev, perr := decodeVEvent(ve)
		if perr != nil {
			appLog.Error("ics vevent skipped", perr)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeVEvent(ve *ical.VEvent) (DecodedEvent, error) {
	var out DecodedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Name = UnescapeText(p.Value)
	}
	if p := ve.GetProperty("URL"); p != nil {
		out.URL = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty("STATUS"); p != nil {
		out.Status = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, err
	}
	out.Start = start.UTC()
	out.End = end.UTC()

	return out, nil
}
