package contests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"contestcal/internal/ics"
	"contestcal/internal/model"
	"contestcal/internal/platform"
)

// envelope is the backend's standard response wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type wireContest struct {
	ID         json.RawMessage `json:"id"`
	MongoID    json.RawMessage `json:"_id"`
	ExternalID json.RawMessage `json:"externalId"`

	Platform json.RawMessage `json:"platform"`
	Name     string          `json:"name"`
	URL      string          `json:"url"`

	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`

	DurationMinutes json.Number `json:"durationMinutes"`
	Status          string      `json:"status"`
	LastSyncedAt    *string     `json:"lastSyncedAt"`
}

// DecodeContests accepts either a bare JSON array of contests or the
// {success, data, message} envelope. An envelope with success=false is an
// application error carrying the server's message.
func DecodeContests(body []byte) ([]model.Contest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty response body", ErrUpstream)
	}

	raw := trimmed
	if trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: decode envelope: %v", ErrUpstream, err)
		}
		if env.Success != nil && !*env.Success {
			msg := env.Message
			if msg == "" {
				msg = "request was not successful"
			}
			return nil, fmt.Errorf("%w: %s", ErrUpstream, msg)
		}
		raw = bytes.TrimSpace(env.Data)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return []model.Contest{}, nil
		}
	}

	var items []wireContest
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: decode contests: %v", ErrUpstream, err)
	}

	out := make([]model.Contest, 0, len(items))
	for i, w := range items {
		c, err := w.toModel()
		if err != nil {
			return nil, fmt.Errorf("%w: contest %d: %v", ErrUpstream, i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseEnvelope(body []byte) (envelope, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

func (w wireContest) toModel() (model.Contest, error) {
	start, err := ics.ParseTime(w.StartTime)
	if err != nil {
		return model.Contest{}, fmt.Errorf("startTime: %w", err)
	}
	end, err := ics.ParseTime(w.EndTime)
	if err != nil {
		return model.Contest{}, fmt.Errorf("endTime: %w", err)
	}

	var duration int
	if w.DurationMinutes != "" {
		f, err := w.DurationMinutes.Float64()
		if err != nil {
			return model.Contest{}, fmt.Errorf("durationMinutes: %w", err)
		}
		duration = int(f)
	}

	var synced *time.Time
	if w.LastSyncedAt != nil && *w.LastSyncedAt != "" {
		t, err := ics.ParseTime(*w.LastSyncedAt)
		if err != nil {
			return model.Contest{}, fmt.Errorf("lastSyncedAt: %w", err)
		}
		t = t.UTC()
		synced = &t
	}

	c := model.Contest{
		Platform:           stringValue(w.Platform),
		NormalizedPlatform: platform.NormalizeAny(anyValue(w.Platform)),
		Name:               w.Name,
		URL:                w.URL,
		StartTime:          start.UTC(),
		EndTime:            end.UTC(),
		DurationMinutes:    duration,
		Status:             w.Status,
		LastSyncedAt:       synced,
	}
	c.ID = firstNonEmpty(idValue(w.ID), idValue(w.MongoID), idValue(w.ExternalID))
	if c.ID == "" {
		c.ID = slug.Make(fmt.Sprintf("%s %s %s", c.NormalizedPlatform, c.Name, start.UTC().Format("20060102T1504")))
	}
	return c, nil
}

// stringValue returns a JSON string's value; any other JSON type becomes "".
func stringValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// anyValue decodes raw into its loosely typed form; absent or invalid
// input is nil.
func anyValue(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// idValue accepts a JSON string or number.
func idValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		return stringValue(raw)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
			return ""
		}
		return string(raw)
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
