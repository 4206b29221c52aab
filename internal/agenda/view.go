package agenda

import (
	"time"

	"agendacal/internal/calendar"
	"agendacal/internal/locale"
	"agendacal/internal/model"
)

// MonthView is everything the calendar page shows for one month.
type MonthView struct {
	Month    time.Time `json:"month"`
	Label    string    `json:"label"`
	Prev     string    `json:"prev"`
	Next     string    `json:"next"`
	Weekdays []string  `json:"weekdays"`

	Cells []calendar.Cell   `json:"cells"`
	Weeks [][]calendar.Cell `json:"-"`

	Locations calendar.LocationGroups `json:"locations"`
}

// Layout describes how a month is laid out and labelled.
type Layout struct {
	WeekStart time.Weekday
	Locale    locale.Locale
}

// BuildView assembles the view for month from events. today marks the
// current day; both month and today should be in the display location.
func BuildView(events []model.EventRecord, month, today time.Time, layout Layout) MonthView {
	start := calendar.StartOfMonth(month)
	cells := calendar.Grid{WeekStart: layout.WeekStart}.Build(start, events, today)

	return MonthView{
		Month:     start,
		Label:     layout.Locale.MonthYear(start),
		Prev:      calendar.AddMonths(start, -1).Format(MonthFormat),
		Next:      calendar.AddMonths(start, 1).Format(MonthFormat),
		Weekdays:  layout.Locale.WeekdayHeaders(layout.WeekStart),
		Cells:     cells,
		Weeks:     calendar.Weeks(cells),
		Locations: calendar.Aggregator{Locale: layout.Locale}.ByLocation(events, start),
	}
}

// MonthFormat is the "YYYY-MM" form used in URLs.
const MonthFormat = "2006-01"
