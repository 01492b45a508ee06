package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrMalformedEvent is returned for a correctly signed event whose payload
// cannot be decoded.
var ErrMalformedEvent = errors.New("malformed webhook event")

// Stripe event types handled by the booking core.
const (
	eventCheckoutCompleted = "checkout.session.completed"
	eventCheckoutAsyncPaid = "checkout.session.async_payment_succeeded"
	eventCheckoutExpired   = "checkout.session.expired"
)

// StripeGateway creates and expires Stripe Checkout sessions.  It owns its
// API client so several gateways with different keys can coexist.
type StripeGateway struct {
	client *session.Client
}

// NewStripeGateway returns a gateway authenticated with secretKey.
func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{client: &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}}
}

// CreateCheckout opens a one-item payment checkout for req.
func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.ProductName),
				},
			},
		}},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	cs, err := g.client.New(params)
	if err != nil {
		return Checkout{}, fmt.Errorf("create checkout session: %w", err)
	}
	return Checkout{ID: cs.ID, RedirectURL: cs.URL}, nil
}

// ExpireCheckout expires an open checkout session so it can no longer be
// paid.
func (g *StripeGateway) ExpireCheckout(ctx context.Context, checkoutID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := g.client.Expire(checkoutID, params); err != nil {
		return fmt.Errorf("expire checkout session %s: %w", checkoutID, err)
	}
	return nil
}

// StripeVerifier authenticates webhook payloads with the endpoint signing
// secret and decodes them into Events.
type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

// NewStripeVerifier returns a verifier using the default timestamp
// tolerance.
func NewStripeVerifier(secret string) *StripeVerifier {
	return &StripeVerifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

// Verify checks signature against payload and decodes the event.  Nothing
// in payload is inspected before the signature is verified.
func (v *StripeVerifier) Verify(payload []byte, signature string) (Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	return decode(ev)
}

func decode(ev stripe.Event) (Event, error) {
	var kind string
	switch string(ev.Type) {
	case eventCheckoutCompleted, eventCheckoutAsyncPaid, eventCheckoutExpired:
		kind = string(ev.Type)
	default:
		return Unknown{ID: ev.ID, Type: string(ev.Type)}, nil
	}
	if ev.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", ErrMalformedEvent, ev.ID)
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("%w: checkout session of event %s: %w", ErrMalformedEvent, ev.ID, err)
	}
	fields := CheckoutFields{
		ID:            ev.ID,
		CheckoutID:    cs.ID,
		ReservationID: cs.Metadata[MetaReservationID],
		UserID:        cs.Metadata[MetaUserID],
		CustomerEmail: cs.CustomerEmail,
		Created:       time.Unix(ev.Created, 0).UTC(),
	}
	if cs.CustomerDetails != nil && cs.CustomerDetails.Email != "" {
		fields.CustomerEmail = cs.CustomerDetails.Email
	}

	switch kind {
	case eventCheckoutCompleted:
		return CheckoutCompleted{
			CheckoutFields: fields,
			Paid:           cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		}, nil
	case eventCheckoutAsyncPaid:
		return CheckoutAsyncPaid{CheckoutFields: fields}, nil
	default:
		return CheckoutExpired{CheckoutFields: fields}, nil
	}
}
