package calendar

import (
	"time"

	"agendacal/internal/model"
)

// Cell is one slot of the month grid: either blank padding or a real day.
// Blank cells have a zero Date and every flag false.
type Cell struct {
	Blank          bool      `json:"blank"`
	Date           time.Time `json:"date,omitzero"`
	IsCurrentMonth bool      `json:"isCurrentMonth"`
	IsToday        bool      `json:"isToday"`
	HasEvent       bool      `json:"hasEvent"`
}

// Day returns the day of month, or 0 for a blank cell.
func (c Cell) Day() int {
	if c.Blank {
		return 0
	}
	return c.Date.Day()
}

// Grid builds month grids whose rows start on WeekStart.
// The zero value starts weeks on Sunday.
type Grid struct {
	WeekStart time.Weekday
}

// BuildGrid builds the Sunday-first grid for referenceMonth.
func BuildGrid(referenceMonth time.Time, events []model.EventRecord, today time.Time) []Cell {
	return Grid{WeekStart: time.Sunday}.Build(referenceMonth, events, today)
}

// Build returns the cells for referenceMonth's month: blanks up to the
// weekday of the 1st, one cell per day, then blanks up to the next multiple
// of 7. Only the month and year of referenceMonth matter; days are built in
// its location. today marks IsToday and is compared by calendar date only,
// as are event timestamps for HasEvent.
func (g Grid) Build(referenceMonth time.Time, events []model.EventRecord, today time.Time) []Cell {
	start := StartOfMonth(referenceMonth)
	days := DaysInMonth(start)

	leading := (int(start.Weekday()) - int(g.WeekStart) + 7) % 7
	total := leading + days
	if rem := total % 7; rem != 0 {
		total += 7 - rem
	}

	marked := eventDays(events)

	cells := make([]Cell, total)
	for i := range leading {
		cells[i] = Cell{Blank: true}
	}
	for d := range days {
		date := start.AddDate(0, 0, d)
		_, has := marked[keyOf(date)]
		cells[leading+d] = Cell{
			Date:           date,
			IsCurrentMonth: true,
			IsToday:        SameDay(date, today),
			HasEvent:       has,
		}
	}
	for i := leading + days; i < total; i++ {
		cells[i] = Cell{Blank: true}
	}
	return cells
}

// Weeks splits a grid into rows of seven cells.
func Weeks(cells []Cell) [][]Cell {
	rows := make([][]Cell, 0, (len(cells)+6)/7)
	for i := 0; i < len(cells); i += 7 {
		rows = append(rows, cells[i:min(i+7, len(cells))])
	}
	return rows
}

// eventDays collects the calendar dates that have at least one event.
func eventDays(events []model.EventRecord) map[dateKey]struct{} {
	out := make(map[dateKey]struct{}, len(events))
	for _, ev := range events {
		out[keyOf(ev.Timestamp)] = struct{}{}
	}
	return out
}
