// Package payment talks to the hosted card checkout provider.  It creates
// and expires checkout sessions and turns signed webhook payloads into the
// closed set of events the booking core reacts to.
package payment

import "time"

// Metadata keys attached to every checkout session.
const (
	MetaReservationID = "reservation_id"
	MetaUserID        = "user_id"
	MetaSessionID     = "session_id"
	MetaPrice         = "price_cents"
)

// CheckoutRequest describes a checkout session to create.
type CheckoutRequest struct {
	AmountCents   int64
	Currency      string
	ProductName   string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	Metadata      map[string]string
}

// Checkout is the provider's answer to a create request.
type Checkout struct {
	ID          string
	RedirectURL string
}

// Event is a verified provider event.  The concrete type is one of
// CheckoutCompleted, CheckoutAsyncPaid, CheckoutExpired or Unknown.
type Event interface {
	eventID() string
}

// CheckoutFields are common to every checkout event.
type CheckoutFields struct {
	ID            string // provider event id
	CheckoutID    string
	ReservationID string
	UserID        string
	CustomerEmail string
	Created       time.Time
}

func (f CheckoutFields) eventID() string { return f.ID }

// CheckoutCompleted is sent when the customer finishes the checkout.  Paid
// is false for delayed payment methods, which are settled by a later
// CheckoutAsyncPaid event.
type CheckoutCompleted struct {
	CheckoutFields
	Paid bool
}

// CheckoutAsyncPaid is sent when a delayed payment succeeds.
type CheckoutAsyncPaid struct {
	CheckoutFields
}

// CheckoutExpired is sent when the checkout session expired unpaid.
type CheckoutExpired struct {
	CheckoutFields
}

// Unknown is any event type the booking core does not handle.
type Unknown struct {
	ID   string
	Type string
}

func (u Unknown) eventID() string { return u.ID }
