package model

import "time"

// EventRecord is a single dated event as delivered by a provider.
// Records are treated as immutable values: consumers copy and re-bucket
// them but never modify fields.
type EventRecord struct {
	// ID is unique per provider payload.
	ID    int    `json:"id"`
	Title string `json:"title"`

	// Timestamp is a point in time, already in the display timezone.
	// Calendar-date comparisons use its own Location.
	Timestamp time.Time `json:"timestamp"`

	// VenueName and City are optional; "" means absent.
	VenueName string `json:"venueName,omitempty"`
	City      string `json:"city,omitempty"`

	// CreatedAt is carried through untouched.
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// HasPlace reports whether the record names a venue or a city.
func (e EventRecord) HasPlace() bool {
	return e.VenueName != "" || e.City != ""
}
