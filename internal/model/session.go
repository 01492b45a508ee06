package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Session is a recurring wellness session template.  It is read by the
// availability projector and the booking flow; administrative edits happen
// elsewhere.
//
// Fields:
//
//	ID            – sessions.id
//	Title         – display title
//	Description   – long description
//	PriceCents    – price per seat in minor currency units
//	Capacity      – maximum seats per occurrence
//	StartTime     – local time of day the session starts ("HH:MM")
//	EndTime       – local time of day the session ends ("HH:MM")
//	RecurringDays – weekdays the session runs on (0 = Sunday … 6 = Saturday)
//	Topic         – optional specialized-topic label
type Session struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	PriceCents    int64          `json:"price_cents"`
	Capacity      int            `json:"capacity"`
	StartTime     string         `json:"start_time"`
	EndTime       string         `json:"end_time"`
	RecurringDays []time.Weekday `json:"recurring_days"`
	Topic         *string        `json:"topic,omitempty"`
}

// RunsOn reports whether the session recurs on the given weekday.
func (s Session) RunsOn(d time.Weekday) bool {
	for _, rd := range s.RecurringDays {
		if rd == d {
			return true
		}
	}
	return false
}

// StartOn returns the instant the occurrence on date begins, interpreted in
// date's location.
func (s Session) StartOn(date time.Time) (time.Time, error) {
	return AtClock(date, s.StartTime)
}

// Snapshot copies the fields a reservation keeps after booking.
func (s Session) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		Title:       s.Title,
		Description: s.Description,
		PriceCents:  s.PriceCents,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		Topic:       s.Topic,
	}
}

// AtClock combines the calendar date of day with an "HH:MM" time of day.
func AtClock(day time.Time, hhmm string) (time.Time, error) {
	hour, minute, err := ParseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, day.Location()), nil
}

// ParseClock splits an "HH:MM" string into hour and minute.
func ParseClock(hhmm string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", hhmm, err)
	}
	return t.Hour(), t.Minute(), nil
}

// ParseWeekdays decodes the comma separated weekday list stored in
// sessions.recurring_days ("1,3,5").
func ParseWeekdays(raw string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
}

// FormatWeekdays is the inverse of ParseWeekdays.
func FormatWeekdays(days []time.Weekday) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}
