package calendar

import (
	"time"

	"agendacal/internal/locale"
	"agendacal/internal/model"
)

// LocationGroup is the list of events sharing one location label, in input order.
type LocationGroup struct {
	Label  string              `json:"label"`
	Events []model.EventRecord `json:"events"`
}

// LocationGroups is ordered by first appearance of each label in the input.
type LocationGroups []LocationGroup

// Location returns the events for label.
func (gs LocationGroups) Location(label string) ([]model.EventRecord, bool) {
	for _, g := range gs {
		if g.Label == label {
			return g.Events, true
		}
	}
	return nil, false
}

// Labels lists the location labels in order.
func (gs LocationGroups) Labels() []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.Label
	}
	return out
}

// Len counts the events across all groups.
func (gs LocationGroups) Len() int {
	n := 0
	for _, g := range gs {
		n += len(g.Events)
	}
	return n
}

// MonthGroup holds one month's events split by location.
type MonthGroup struct {
	Label     string         `json:"label"`
	Month     time.Time      `json:"month"`
	Locations LocationGroups `json:"locations"`
}

// GroupedEvents is ordered by first appearance of each month in the input.
type GroupedEvents []MonthGroup

// Month returns the location groups for a month label.
func (ge GroupedEvents) Month(label string) (LocationGroups, bool) {
	for _, m := range ge {
		if m.Label == label {
			return m.Locations, true
		}
	}
	return nil, false
}

// Aggregator groups events; Locale drives the month labels only. The zero
// value labels with locale.Default.
type Aggregator struct {
	Locale locale.Locale
}

func (a Aggregator) names() locale.Locale {
	if a.Locale.Tag == "" {
		return locale.Default
	}
	return a.Locale
}

// NewAggregator returns an Aggregator using the default locale.
func NewAggregator() Aggregator {
	return Aggregator{Locale: locale.Default}
}

// AggregateByMonthAndLocation groups events with the default locale.
func AggregateByMonthAndLocation(events []model.EventRecord) GroupedEvents {
	return NewAggregator().ByMonthAndLocation(events)
}

// AggregateByLocation groups referenceMonth's events with the default locale.
func AggregateByLocation(events []model.EventRecord, referenceMonth time.Time) LocationGroups {
	return NewAggregator().ByLocation(events, referenceMonth)
}

// ByMonthAndLocation places every event into exactly one (month, location)
// bucket. Buckets keep input order; nothing is sorted. Timestamps must be
// valid, which providers guarantee before records reach this point.
func (a Aggregator) ByMonthAndLocation(events []model.EventRecord) GroupedEvents {
	names := a.names()
	out := GroupedEvents{}
	monthIdx := make(map[monthKey]int)
	locIdx := make(map[monthKey]map[string]int)

	for _, ev := range events {
		mk := monthOf(ev.Timestamp)
		mi, ok := monthIdx[mk]
		if !ok {
			mi = len(out)
			monthIdx[mk] = mi
			locIdx[mk] = make(map[string]int)
			out = append(out, MonthGroup{Label: names.MonthYear(ev.Timestamp), Month: StartOfMonth(ev.Timestamp)})
		}
		out[mi].Locations = appendTo(out[mi].Locations, locIdx[mk], ev)
	}
	return out
}

// ByLocation keeps only the events in referenceMonth's month and year, then
// groups them by location label.
func (a Aggregator) ByLocation(events []model.EventRecord, referenceMonth time.Time) LocationGroups {
	out := LocationGroups{}
	idx := make(map[string]int)
	for _, ev := range events {
		if !SameMonth(ev.Timestamp, referenceMonth) {
			continue
		}
		out = appendTo(out, idx, ev)
	}
	return out
}

type monthKey struct {
	year  int
	month time.Month
}

func monthOf(t time.Time) monthKey {
	return monthKey{year: t.Year(), month: t.Month()}
}

func appendTo(gs LocationGroups, idx map[string]int, ev model.EventRecord) LocationGroups {
	label := NormalizeLocation(ev.City)
	i, ok := idx[label]
	if !ok {
		i = len(gs)
		idx[label] = i
		gs = append(gs, LocationGroup{Label: label})
	}
	gs[i].Events = append(gs[i].Events, ev)
	return gs
}
