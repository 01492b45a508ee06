package service

import "errors"

// Booking outcomes the HTTP layer maps to stable reason codes.
var (
	ErrInvalidSlot        = errors.New("session or date is not bookable")
	ErrDuplicateBooking   = errors.New("session already booked for this date")
	ErrNoAvailability     = errors.New("no seats left for this date")
	ErrCheckoutFailed     = errors.New("could not start payment checkout")
	ErrServiceUnavailable = errors.New("booking temporarily unavailable")
	ErrForbidden          = errors.New("reservation belongs to another user")
	ErrCancellationWindow = errors.New("cancellation window has closed")
)

// Payment callback failures.  ErrSignatureInvalid, ErrMalformedEvent,
// ErrMissingMetadata and ErrMetadataMismatch are the caller's fault; ErrDataIntegrity means the
// event references state this service does not have.
var (
	ErrSignatureInvalid = errors.New("payment event signature invalid")
	ErrMalformedEvent   = errors.New("payment event payload malformed")
	ErrMissingMetadata  = errors.New("payment event missing booking metadata")
	ErrMetadataMismatch = errors.New("payment event metadata does not match reservation")
	ErrDataIntegrity    = errors.New("payment event references unknown reservation")
)
