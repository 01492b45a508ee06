package payment

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
)

const testSecret = "whsec_test_secret"

func signed(t *testing.T, payload string) (body []byte, header string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func checkoutEvent(kind, paymentStatus string) string {
	return fmt.Sprintf(`{
  "id": "evt_1",
  "object": "event",
  "type": %q,
  "created": 1791968400,
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "payment_status": %q,
    "customer_details": {"email": "ada@example.com"},
    "metadata": {"reservation_id": "res-1", "user_id": "user-1"}
  }}
}`, kind, paymentStatus)
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	v := NewStripeVerifier(testSecret)
	body, _ := signed(t, checkoutEvent("checkout.session.completed", "paid"))

	_, err := v.Verify(body, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = v.Verify(body, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	other := NewStripeVerifier("whsec_other")
	_, header := signed(t, checkoutEvent("checkout.session.completed", "paid"))
	_, err = other.Verify(body, header)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	v := NewStripeVerifier(testSecret)
	body, header := signed(t, checkoutEvent("checkout.session.completed", "paid"))
	tampered := append([]byte{}, body...)
	tampered[len(tampered)-2] = ' '

	_, err := v.Verify(tampered, header)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyDecodesCheckoutEvents(t *testing.T) {
	v := NewStripeVerifier(testSecret)

	body, header := signed(t, checkoutEvent("checkout.session.completed", "paid"))
	ev, err := v.Verify(body, header)
	require.NoError(t, err)
	completed, ok := ev.(CheckoutCompleted)
	require.True(t, ok, "got %T", ev)
	assert.True(t, completed.Paid)
	assert.Equal(t, "evt_1", completed.ID)
	assert.Equal(t, "cs_test_1", completed.CheckoutID)
	assert.Equal(t, "res-1", completed.ReservationID)
	assert.Equal(t, "user-1", completed.UserID)
	assert.Equal(t, "ada@example.com", completed.CustomerEmail)

	body, header = signed(t, checkoutEvent("checkout.session.completed", "unpaid"))
	ev, err = v.Verify(body, header)
	require.NoError(t, err)
	assert.False(t, ev.(CheckoutCompleted).Paid)

	body, header = signed(t, checkoutEvent("checkout.session.async_payment_succeeded", "paid"))
	ev, err = v.Verify(body, header)
	require.NoError(t, err)
	assert.IsType(t, CheckoutAsyncPaid{}, ev)

	body, header = signed(t, checkoutEvent("checkout.session.expired", "unpaid"))
	ev, err = v.Verify(body, header)
	require.NoError(t, err)
	assert.IsType(t, CheckoutExpired{}, ev)
}

func TestVerifyUnknownEvent(t *testing.T) {
	v := NewStripeVerifier(testSecret)
	body, header := signed(t, `{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)

	ev, err := v.Verify(body, header)
	require.NoError(t, err)
	assert.Equal(t, Unknown{ID: "evt_2", Type: "customer.created"}, ev)
}

func TestVerifyMalformedCheckoutEvent(t *testing.T) {
	v := NewStripeVerifier(testSecret)

	body, header := signed(t, `{"id":"evt_3","object":"event","type":"checkout.session.expired"}`)
	_, err := v.Verify(body, header)
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.NotErrorIs(t, err, ErrInvalidSignature)

	body, header = signed(t, `{"id":"evt_4","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","payment_status":7}}}`)
	_, err = v.Verify(body, header)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}
