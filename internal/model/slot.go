package model

import "time"

// DateKeyLayout is the calendar date format identifying one occurrence of a
// recurring session.
const DateKeyLayout = "2006-01-02"

// DateKey formats t as a dateKey in t's own location.
func DateKey(t time.Time) string { return t.Format(DateKeyLayout) }

// ParseDateKey parses a dateKey as midnight in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateKeyLayout, key, loc)
}

// Slot is the capacity ledger entry for one (session, date) occurrence.
// Remaining never exceeds Capacity and len(Occupants) always equals
// Capacity - Remaining.
type Slot struct {
	SessionID string
	DateKey   string
	Capacity  int
	Remaining int
	Occupants []Occupant
}

// Occupant is one seat taken in a slot.
type Occupant struct {
	UserID        string
	ReservationID string
}

// SlotAvailability is the public projection of a slot.
type SlotAvailability struct {
	DateKey   string    `json:"date_key"`
	StartsAt  time.Time `json:"starts_at"`
	Remaining int       `json:"remaining"`
	Capacity  int       `json:"capacity"`
}
