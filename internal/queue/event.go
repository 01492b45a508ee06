// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the consumer that move booking
// confirmations through RabbitMQ.
package queue

import (
	"time"

	"github.com/iliyamo/wellness-session-booking/internal/mail"
)

// ConfirmationQueue is the durable queue confirmation emails travel on.
const ConfirmationQueue = "booking.confirmed"

// BookingConfirmedEvent is published when a reservation is confirmed.  It
// carries everything the consumer needs to send the email without querying
// the primary database.
type BookingConfirmedEvent struct {
	ReservationID string              `json:"reservation_id"`
	Email         string              `json:"email"`
	Booking       mail.BookingDetails `json:"booking"`
	ConfirmedAt   time.Time           `json:"confirmed_at"`
}
