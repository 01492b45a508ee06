package service

import (
	"context"
	"time"

	"github.com/iliyamo/wellness-session-booking/internal/mail"
	"github.com/iliyamo/wellness-session-booking/internal/model"
	"github.com/iliyamo/wellness-session-booking/internal/payment"
)

// SessionStore reads session templates.
type SessionStore interface {
	Get(ctx context.Context, id string) (model.Session, error)
	List(ctx context.Context) ([]model.Session, error)
}

// Ledger tracks remaining seats per (session, date).  TryReserve and
// Release are atomic; implementations return the repository sentinels.
type Ledger interface {
	Ensure(ctx context.Context, sessionID, dateKey string, capacity int) error
	Remaining(ctx context.Context, sessionID, dateKey string) (int, error)
	TryReserve(ctx context.Context, sessionID, dateKey, userID, reservationID string) error
	Release(ctx context.Context, sessionID, dateKey, reservationID string) error
}

// ReservationStore persists reservations.
type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	Get(ctx context.Context, id string) (model.Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]model.Reservation, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]model.Reservation, error)
	HasConfirmed(ctx context.Context, userID, sessionID, dateKey string) (bool, error)
	AttachCheckout(ctx context.Context, id, checkoutID string) error
	MarkConfirmed(ctx context.Context, id string, paidAt time.Time) error
	MarkCancelled(ctx context.Context, id string, at time.Time) error
	MarkExpired(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// UserDirectory resolves where to send a user's confirmations.
type UserDirectory interface {
	ContactEmail(ctx context.Context, userID string) (string, error)
}

// PaymentGateway opens and closes hosted checkouts.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (payment.Checkout, error)
	ExpireCheckout(ctx context.Context, checkoutID string) error
}

// EventVerifier authenticates and decodes provider callbacks.
type EventVerifier interface {
	Verify(payload []byte, signature string) (payment.Event, error)
}

// ConfirmationSender delivers booking confirmations.  It reports success
// and never fails the caller.
type ConfirmationSender interface {
	SendBookingConfirmation(ctx context.Context, address string, d mail.BookingDetails) bool
}
