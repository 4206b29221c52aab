package calendar

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"agendacal/internal/locale"
)

// FallbackLocation labels events that carry no city. It is already in
// normalised form, so NormalizeLocation(FallbackLocation) == FallbackLocation.
const FallbackLocation = "Evento"

// NormalizeLocation turns a raw city value into a grouping label: surrounding
// whitespace is trimmed, the value is lower-cased and only its first rune is
// upper-cased. Empty or whitespace-only input yields FallbackLocation.
func NormalizeLocation(city string) string {
	s := strings.ToLower(strings.TrimSpace(city))
	if s == "" {
		return FallbackLocation
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// MonthLabel is the default-locale "month year" key for t.
func MonthLabel(t time.Time) string {
	return locale.Default.MonthYear(t)
}
