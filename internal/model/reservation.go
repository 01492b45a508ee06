package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
)

// Reservation records one booking attempt for a session occurrence.  The
// session fields are copied at booking time so later template edits do not
// change what the customer bought.
//
// Fields:
//
//	ID            – reservations.id (UUID)
//	UserID        – owner of the reservation
//	SessionID     – booked session template
//	ScheduledDate – dateKey of the occurrence
//	Status        – pending, confirmed or cancelled
//	CheckoutID    – payment provider checkout session, once created
//	Session       – snapshot of the template at booking time
//	BookedAt      – creation timestamp
//	PaidAt        – set only when the payment is confirmed
//	CancelledAt   – set when the reservation is cancelled or expires
type Reservation struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	SessionID     string            `json:"session_id"`
	ScheduledDate string            `json:"scheduled_date"`
	Status        ReservationStatus `json:"status"`
	CheckoutID    string            `json:"checkout_id,omitempty"`
	Session       SessionSnapshot   `json:"session"`
	BookedAt      time.Time         `json:"booked_at"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
	CancelledAt   *time.Time        `json:"cancelled_at,omitempty"`
}

// StartsAt returns the instant the reserved occurrence begins in loc.
func (r *Reservation) StartsAt(loc *time.Location) (time.Time, error) {
	day, err := ParseDateKey(r.ScheduledDate, loc)
	if err != nil {
		return time.Time{}, err
	}
	return AtClock(day, r.Session.StartTime)
}

// SessionSnapshot is the denormalized copy of a session kept on a reservation.
type SessionSnapshot struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	PriceCents  int64   `json:"price_cents"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Topic       *string `json:"topic,omitempty"`
}
