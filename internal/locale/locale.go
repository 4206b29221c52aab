// Package locale holds the month and weekday names used to label the
// calendar. It only covers the handful of formats the calendar needs;
// it is not a general-purpose i18n layer.
package locale

import (
	"strconv"
	"strings"
	"time"
)

// Locale is a fixed table of names for one language.
type Locale struct {
	Tag string

	// Months and ShortMonths are indexed by time.Month-1.
	Months      [12]string
	ShortMonths [12]string

	// Weekdays is indexed by time.Weekday (Sunday = 0).
	Weekdays [7]string

	// NoEvents is shown when a month has nothing listed.
	NoEvents string
}

// PtBR is Brazilian Portuguese, the default.
var PtBR = Locale{
	Tag: "pt-BR",
	Months: [12]string{
		"janeiro", "fevereiro", "março", "abril", "maio", "junho",
		"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
	},
	ShortMonths: [12]string{
		"jan", "fev", "mar", "abr", "mai", "jun",
		"jul", "ago", "set", "out", "nov", "dez",
	},
	Weekdays: [7]string{"DOM", "SEG", "TER", "QUA", "QUI", "SEX", "SAB"},
	NoEvents: "Nenhum evento encontrado.",
}

// English uses US month and weekday names.
var English = Locale{
	Tag: "en",
	Months: [12]string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	},
	ShortMonths: [12]string{
		"Jan", "Feb", "Mar", "Apr", "May", "Jun",
		"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
	},
	Weekdays: [7]string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"},
	NoEvents: "No events found.",
}

// Default is used wherever no locale is configured.
var Default = PtBR

// Lookup returns the locale for a tag such as "pt-BR", "pt_br" or "en-US".
// Unknown tags fall back to Default.
func Lookup(tag string) (Locale, bool) {
	t := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
	switch {
	case t == "pt" || strings.HasPrefix(t, "pt-"):
		return PtBR, true
	case t == "en" || strings.HasPrefix(t, "en-"):
		return English, true
	default:
		return Default, false
	}
}

// MonthYear formats t as "<month> <year>", e.g. "março 2024".
func (l Locale) MonthYear(t time.Time) string {
	return l.Months[t.Month()-1] + " " + strconv.Itoa(t.Year())
}

// ShortMonth returns the abbreviated month name of t.
func (l Locale) ShortMonth(t time.Time) string {
	return l.ShortMonths[t.Month()-1]
}

// WeekdayHeaders returns the seven column headers starting at weekStart.
func (l Locale) WeekdayHeaders(weekStart time.Weekday) []string {
	out := make([]string, 7)
	for i := range out {
		out[i] = l.Weekdays[(int(weekStart)+i)%7]
	}
	return out
}
