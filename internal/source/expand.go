package source

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/teambition/rrule-go"

	appLog "agendacal/internal/log"
	"agendacal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// Window bounds recurrence expansion for calendar feeds.
type Window struct {
	// Location is the display timezone occurrences are converted to.
	// Nil means time.Local.
	Location *time.Location

	// Start and End are inclusive.
	Start time.Time
	End   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero means 5000.
	MaxOccurrencesPerEvent int
}

// DecodeICS parses an iCalendar body and flattens it into one record per
// occurrence inside w. Recurring events are expanded here so the calendar
// only ever sees discrete, dated events.
func DecodeICS(src Source, body []byte, w Window) ([]model.EventRecord, error) {
	events, err := parseICS(src, body)
	if err != nil {
		return nil, err
	}
	return expandOccurrences(events, w)
}

func expandOccurrences(events []vevent, w Window) ([]model.EventRecord, error) {
	if w.End.Before(w.Start) {
		return nil, errors.New("expand: window end is before start")
	}
	if w.Location == nil {
		w.Location = time.Local
	}
	if w.MaxOccurrencesPerEvent <= 0 {
		w.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Keep UID first-seen order so the output is stable across runs.
	var uids []string
	base := make(map[string][]vevent)
	overrides := make(map[string][]vevent)
	for _, ev := range events {
		if _, ok := base[ev.UID]; !ok {
			if _, ok := overrides[ev.UID]; !ok {
				uids = append(uids, ev.UID)
			}
		}
		if ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		base[ev.UID] = append(base[ev.UID], ev)
	}

	out := make([]model.EventRecord, 0, len(events))
	for _, uid := range uids {
		ovs := overrides[uid]
		used := make([]bool, len(ovs))
		for _, ev := range base[uid] {
			occ, hitCap := expandEvent(ev, ovs, used, w)
			if hitCap {
				appLog.Warn("expand: occurrences truncated", "uid", uid, "cap", w.MaxOccurrencesPerEvent)
			}
			out = append(out, occ...)
		}
		// Overrides whose original slot lies outside the window, or that
		// have no master event at all, still count where they moved to.
		for i, ov := range ovs {
			if !used[i] && w.contains(ov.Start) {
				out = append(out, makeRecord(ov, w.Location))
			}
		}
	}
	return out, nil
}

func (w Window) contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// expandEvent emits ev's occurrences inside w. A slot replaced by an
// override is marked in used and emitted only if the override's own start
// falls inside w.
func expandEvent(ev vevent, overrides []vevent, used []bool, w Window) ([]model.EventRecord, bool) {
	slots, hitCap := occurrenceStarts(ev, w)

	out := make([]model.EventRecord, 0, len(slots))
	for _, start := range slots {
		if i := matchOverride(overrides, start); i >= 0 {
			used[i] = true
			if w.contains(overrides[i].Start) {
				out = append(out, makeRecord(overrides[i], w.Location))
			}
			continue
		}
		inst := ev
		inst.Start = start
		out = append(out, makeRecord(inst, w.Location))
	}
	return out, hitCap
}

// occurrenceStarts lists the start of every instance of ev inside w.
func occurrenceStarts(ev vevent, w Window) ([]time.Time, bool) {
	if ev.RawRRule == "" {
		if !w.contains(ev.Start) {
			return nil, false
		}
		return []time.Time{ev.Start}, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	times := set.Between(w.Start.In(ev.Start.Location()), w.End.In(ev.Start.Location()), true)
	if len(times) > w.MaxOccurrencesPerEvent {
		return times[:w.MaxOccurrencesPerEvent], true
	}
	return times, false
}

// matchOverride returns the index of the override whose RECURRENCE-ID
// equals start, or -1.
func matchOverride(overrides []vevent, start time.Time) int {
	for i, ov := range overrides {
		if ov.Recurrence.Equal(start) {
			return i
		}
	}
	return -1
}

func makeRecord(ev vevent, loc *time.Location) model.EventRecord {
	start := ev.Start
	if ev.Recurrence != nil {
		// Overrides keep the id of the slot they replace.
		start = *ev.Recurrence
	}
	ts := ev.Start.In(loc)
	if ev.AllDay {
		// All-day dates are calendar dates, not instants: keep the wall date.
		y, m, d := ev.Start.Date()
		ts = time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	rec := model.EventRecord{
		ID:        occurrenceID(ev.UID, start),
		Title:     ev.Title,
		Timestamp: ts,
		VenueName: ev.Venue,
		City:      ev.City,
	}
	if !ev.Created.IsZero() {
		rec.CreatedAt = ev.Created.In(loc)
	}
	return rec
}

// occurrenceID maps UID plus instance start to a stable positive integer.
// The hash is 63 bits wide; the loader de-dups on this id, so a narrower
// hash would drop real occurrences once a feed expands to tens of
// thousands of instances.
func occurrenceID(uid string, start time.Time) int {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d", uid, start.Unix())
	return int(h.Sum64() & math.MaxInt64)
}
