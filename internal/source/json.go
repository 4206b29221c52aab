package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	appLog "agendacal/internal/log"
	"agendacal/internal/model"
)

var (
	// ErrMalformedPayload means the body was not a JSON array of events.
	// Callers treat it as an empty event list.
	ErrMalformedPayload = errors.New("malformed event payload")

	// ErrInvalidRecord marks a single record that was dropped at decode time.
	ErrInvalidRecord = errors.New("invalid event record")
)

// wireEvent accepts both the Portuguese keys served by the agenda endpoint
// and their English equivalents.
type wireEvent struct {
	ID *int `json:"id"`

	Title  string `json:"title"`
	Titulo string `json:"titulo"`

	Timestamp string `json:"timestamp"`
	Data      string `json:"data"`

	VenueName string `json:"venueName"`
	Local     string `json:"local"`

	City   string `json:"city"`
	Cidade string `json:"cidade"`

	CreatedAt string `json:"createdAt"`
}

// Layouts tried for timestamps without an explicit layout. Values without
// an offset are read in the display location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// DecodeJSON decodes an agenda payload into records in loc. A body that is
// not a JSON array yields ErrMalformedPayload. Individual records without
// an id, a title or a parseable timestamp are logged and skipped so they
// never reach the calendar.
func DecodeJSON(src Source, body []byte, loc *time.Location) ([]model.EventRecord, error) {
	if loc == nil {
		loc = time.Local
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrMalformedPayload
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	out := make([]model.EventRecord, 0, len(raw))
	for i, r := range raw {
		rec, err := decodeRecord(r, loc)
		if err != nil {
			appLog.Warn("event record rejected", "id", src.ID, "index", i, "reason", err)
			continue
		}
		out = append(out, rec)
	}

	appLog.Debug("json decode completed", "id", src.ID, "event_count", len(out), "rejected", len(raw)-len(out))
	return out, nil
}

func decodeRecord(raw json.RawMessage, loc *time.Location) (model.EventRecord, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.EventRecord{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if w.ID == nil {
		return model.EventRecord{}, fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}

	title := firstNonEmpty(w.Title, w.Titulo)
	if strings.TrimSpace(title) == "" {
		return model.EventRecord{}, fmt.Errorf("%w: missing title", ErrInvalidRecord)
	}

	ts, err := ParseTimestamp(firstNonEmpty(w.Timestamp, w.Data), loc)
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	rec := model.EventRecord{
		ID:        *w.ID,
		Title:     title,
		Timestamp: ts,
		VenueName: firstNonEmpty(w.VenueName, w.Local),
		City:      firstNonEmpty(w.City, w.Cidade),
	}
	// createdAt is passthrough; a bad value is not worth dropping the event.
	if w.CreatedAt != "" {
		if c, err := ParseTimestamp(w.CreatedAt, loc); err == nil {
			rec.CreatedAt = c
		}
	}
	return rec, nil
}

// ParseTimestamp parses s with the accepted layouts and converts it to loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
