package source

import (
	"bytes"
	"errors"
	"strings"
	"time"
	_ "time/tzdata"

	ical "github.com/arran4/golang-ical"

	appLog "agendacal/internal/log"
)

// cityProperty is a non-standard VEVENT property some feeds use to carry
// the city separately from LOCATION.
const cityProperty = "X-CITY"

// vevent is a VEVENT reduced to what the agenda needs. Recurrences are
// recorded here and expanded in expand.go.
type vevent struct {
	UID   string
	Title string
	Venue string
	City  string

	Start   time.Time
	Created time.Time
	AllDay  bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, in the event's own timezone
}

// parseICS parses an iCalendar payload into vevents. VEVENTs that cannot be
// read are logged and skipped.
func parseICS(src Source, body []byte) ([]vevent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]vevent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "reason", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (vevent, error) {
	var out vevent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if strings.TrimSpace(out.Title) == "" {
		return out, errors.New("missing SUMMARY")
	}

	var location string
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		location = p.Value
	}
	var city string
	if p := ve.GetProperty(cityProperty); p != nil {
		city = p.Value
	}
	out.Venue, out.City = splitLocation(location, city)

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	out.Start = start

	if p := ve.GetProperty(ical.ComponentPropertyCreated); p != nil {
		if t, err := parseICSTime(p.Value); err == nil {
			out.Created = t
		}
	}

	// VALUE=DATE or a value without 'T' means all-day.
	if dt := ve.GetProperty(ical.ComponentPropertyDtStart); dt != nil {
		if vs, ok := dt.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
		if !strings.Contains(dt.Value, "T") {
			out.AllDay = true
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := propLocation(p)
		for part := range strings.SplitSeq(p.Value, ",") {
			if t, err := parseICSTimeIn(part, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTimeIn(p.Value, propLocation(p)); err == nil {
			out.Recurrence = &t
		}
	}

	return out, nil
}

// splitLocation derives venue and city. An explicit city wins; otherwise
// "Venue, Street, City" is split on the last comma. A LOCATION without a
// comma is taken as the venue only.
func splitLocation(location, city string) (venue, c string) {
	location = strings.TrimSpace(location)
	if city = strings.TrimSpace(city); city != "" {
		return location, city
	}
	i := strings.LastIndex(location, ",")
	if i < 0 {
		return location, ""
	}
	return strings.TrimSpace(location[:i]), strings.TrimSpace(location[i+1:])
}

// propLocation resolves a TZID parameter, falling back to time.Local.
func propLocation(p *ical.IANAProperty) *time.Location {
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		if loc, err := time.LoadLocation(tzs[0]); err == nil {
			return loc
		}
	}
	return time.Local
}

// parseICSTime handles the basic UTC, floating and date-only forms used by
// CREATED when no TZID context is at hand.
func parseICSTime(v string) (time.Time, error) {
	return parseICSTimeIn(v, time.Local)
}

// parseICSTimeIn is parseICSTime with floating values read in loc.
func parseICSTimeIn(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
