package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/wellness-session-booking/internal/model"
	"github.com/iliyamo/wellness-session-booking/internal/repository"
	"github.com/iliyamo/wellness-session-booking/internal/repository/memory"
	"github.com/iliyamo/wellness-session-booking/internal/service"
)

type mockBookings struct{ mock.Mock }

func (m *mockBookings) InitiateBooking(ctx context.Context, userID, sessionID, dateKey string) (service.CheckoutHandle, error) {
	args := m.Called(ctx, userID, sessionID, dateKey)
	return args.Get(0).(service.CheckoutHandle), args.Error(1)
}

func (m *mockBookings) Get(ctx context.Context, userID, reservationID string) (model.Reservation, error) {
	args := m.Called(ctx, userID, reservationID)
	return args.Get(0).(model.Reservation), args.Error(1)
}

func (m *mockBookings) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.Reservation), args.Error(1)
}

func (m *mockBookings) Cancel(ctx context.Context, userID, reservationID string) (model.Reservation, error) {
	args := m.Called(ctx, userID, reservationID)
	return args.Get(0).(model.Reservation), args.Error(1)
}

func (m *mockBookings) Delete(ctx context.Context, userID, reservationID string) error {
	return m.Called(ctx, userID, reservationID).Error(0)
}

type mockReconciler struct{ mock.Mock }

func (m *mockReconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}

type mockSweeper struct{ mock.Mock }

func (m *mockSweeper) ExpireStale(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewRequestValidator()
	return e
}

// call runs h for a request, optionally as an authenticated user.
func call(t *testing.T, h echo.HandlerFunc, method, target, body, userID string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := newEcho()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != "" {
		c.Set("user_id", userID)
	}
	if len(params) > 0 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	require.NoError(t, h(c))
	return rec
}

func TestCreateBooking(t *testing.T) {
	m := &mockBookings{}
	h := NewBookingHandler(m, zap.NewNop())
	m.On("InitiateBooking", mock.Anything, "u1", "yoga", "2026-10-21").
		Return(service.CheckoutHandle{ReservationID: "res-1", CheckoutID: "cs_1", RedirectURL: "https://pay/cs_1"}, nil).Once()

	rec := call(t, h.Create, http.MethodPost, "/v1/bookings", `{"session_id":"yoga","date_key":"2026-10-21"}`, "u1")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"reservation_id":"res-1","checkout_redirect":"https://pay/cs_1"}`, rec.Body.String())
	m.AssertExpectations(t)
}

func TestCreateBookingValidation(t *testing.T) {
	m := &mockBookings{}
	h := NewBookingHandler(m, zap.NewNop())

	rec := call(t, h.Create, http.MethodPost, "/v1/bookings", `{"session_id":"yoga","date_key":"2026-10-21"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for _, body := range []string{`{`, `{"date_key":"2026-10-21"}`, `{"session_id":"yoga","date_key":"21/10/2026"}`} {
		rec = call(t, h.Create, http.MethodPost, "/v1/bookings", body, "u1")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), ReasonBadRequest)
	}
	m.AssertNotCalled(t, "InitiateBooking", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBookingErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		reason string
	}{
		{service.ErrDuplicateBooking, http.StatusConflict, ReasonDuplicate},
		{service.ErrNoAvailability, http.StatusConflict, ReasonNoAvailability},
		{fmt.Errorf("%w: unknown session x", service.ErrInvalidSlot), http.StatusBadRequest, ReasonInvalidSlot},
		{errors.Join(service.ErrCheckoutFailed, errors.New("stripe: card_declined")), http.StatusBadGateway, ReasonCheckoutFailed},
		{fmt.Errorf("reserve seat: %w", errors.Join(service.ErrServiceUnavailable, repository.ErrTxConflict)), http.StatusServiceUnavailable, ReasonUnavailable},
		{errors.New("boom"), http.StatusInternalServerError, ReasonInternal},
	}
	for _, tc := range cases {
		t.Run(tc.reason, func(t *testing.T) {
			m := &mockBookings{}
			h := NewBookingHandler(m, zap.NewNop())
			m.On("InitiateBooking", mock.Anything, "u1", "yoga", "2026-10-21").Return(service.CheckoutHandle{}, tc.err)

			rec := call(t, h.Create, http.MethodPost, "/v1/bookings", `{"session_id":"yoga","date_key":"2026-10-21"}`, "u1")
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"reason":"`+tc.reason+`"`)
			assert.NotContains(t, rec.Body.String(), "card_declined")
		})
	}
}

func TestReservationEndpoints(t *testing.T) {
	m := &mockBookings{}
	h := NewBookingHandler(m, zap.NewNop())
	res := model.Reservation{ID: "res-1", UserID: "u1", SessionID: "yoga", ScheduledDate: "2026-10-21", Status: model.StatusConfirmed}

	m.On("ListByUser", mock.Anything, "u1").Return([]model.Reservation{res}, nil).Once()
	rec := call(t, h.List, http.MethodGet, "/v1/bookings", "", "u1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"res-1"`)

	m.On("Get", mock.Anything, "u2", "res-1").Return(model.Reservation{}, service.ErrForbidden).Once()
	rec = call(t, h.Get, http.MethodGet, "/v1/bookings/res-1", "", "u2", "id", "res-1")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	m.On("Get", mock.Anything, "u1", "nope").Return(model.Reservation{}, repository.ErrReservationNotFound).Once()
	rec = call(t, h.Get, http.MethodGet, "/v1/bookings/nope", "", "u1", "id", "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cancelled := res
	cancelled.Status = model.StatusCancelled
	m.On("Cancel", mock.Anything, "u1", "res-1").Return(cancelled, nil).Once()
	rec = call(t, h.Cancel, http.MethodPost, "/v1/bookings/res-1/cancel", "", "u1", "id", "res-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)

	m.On("Cancel", mock.Anything, "u1", "late").Return(model.Reservation{}, service.ErrCancellationWindow).Once()
	rec = call(t, h.Cancel, http.MethodPost, "/v1/bookings/late/cancel", "", "u1", "id", "late")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), ReasonCancellationClosed)

	m.On("Delete", mock.Anything, "u1", "res-1").Return(nil).Once()
	rec = call(t, h.Delete, http.MethodDelete, "/v1/bookings/res-1", "", "u1", "id", "res-1")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	m.AssertExpectations(t)
}

func TestPaymentWebhook(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"acknowledged", nil, http.StatusOK},
		{"bad signature", service.ErrSignatureInvalid, http.StatusBadRequest},
		{"missing metadata", fmt.Errorf("%w: event evt_1", service.ErrMissingMetadata), http.StatusBadRequest},
		{"mismatch", service.ErrMetadataMismatch, http.StatusBadRequest},
		{"malformed event", errors.Join(service.ErrMalformedEvent, errors.New("decode")), http.StatusBadRequest},
		{"data integrity", service.ErrDataIntegrity, http.StatusInternalServerError},
		{"store down", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &mockReconciler{}
			h := NewWebhookHandler(r, zap.NewNop())
			body := `{"id":"evt_1"}`
			r.On("HandleWebhook", mock.Anything, []byte(body), "t=1,v1=abc").Return(tc.err).Once()

			e := newEcho()
			req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			rec := httptest.NewRecorder()
			require.NoError(t, h.Payment(e.NewContext(req, rec)))

			assert.Equal(t, tc.status, rec.Code)
			if tc.err == nil {
				assert.JSONEq(t, `{"received":true}`, rec.Body.String())
			}
			r.AssertExpectations(t)
		})
	}
}

func TestSessionEndpoints(t *testing.T) {
	sess := model.Session{
		ID: "yoga", Title: "Morning Flow", PriceCents: 2500, Capacity: 8,
		StartTime: "09:00", EndTime: "10:00", RecurringDays: []time.Weekday{time.Wednesday},
	}
	now := func() time.Time { return time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC) }
	h := NewSessionHandler(memory.NewSessions(sess), service.NewProjector(memory.NewLedger(), 4, time.UTC, now), zap.NewNop())

	rec := call(t, h.List, http.MethodGet, "/v1/sessions", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Morning Flow"`)

	rec = call(t, h.Availability, http.MethodGet, "/v1/sessions/yoga/availability", "", "", "id", "yoga")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"date_key":"2026-10-21"`)
	assert.Contains(t, body, `"date_key":"2026-11-11"`)
	assert.NotContains(t, body, `"date_key":"2026-10-14"`)
	assert.Contains(t, body, `"remaining":8`)

	rec = call(t, h.Availability, http.MethodGet, "/v1/sessions/none/availability", "", "", "id", "none")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminSweep(t *testing.T) {
	s := &mockSweeper{}
	h := NewAdminHandler(s, zap.NewNop())
	s.On("ExpireStale", mock.Anything).Return(3, nil).Once()

	rec := call(t, h.Sweep, http.MethodPost, "/v1/admin/sweep", "", "admin")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"expired":3}`, rec.Body.String())
	s.AssertExpectations(t)
}

func TestHealth(t *testing.T) {
	rec := call(t, Health, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
