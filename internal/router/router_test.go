package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/wellness-session-booking/internal/config"
	"github.com/iliyamo/wellness-session-booking/internal/handler"
	"github.com/iliyamo/wellness-session-booking/internal/model"
	"github.com/iliyamo/wellness-session-booking/internal/repository/memory"
	"github.com/iliyamo/wellness-session-booking/internal/service"
	"github.com/iliyamo/wellness-session-booking/internal/utils"
)

const secret = "router-test-secret"

type stubBookings struct{ lastUser string }

func (s *stubBookings) InitiateBooking(_ context.Context, userID, _, _ string) (service.CheckoutHandle, error) {
	s.lastUser = userID
	return service.CheckoutHandle{ReservationID: "res-1", RedirectURL: "https://pay/1"}, nil
}

func (s *stubBookings) Get(_ context.Context, userID, id string) (model.Reservation, error) {
	return model.Reservation{ID: id, UserID: userID}, nil
}

func (s *stubBookings) ListByUser(_ context.Context, userID string) ([]model.Reservation, error) {
	s.lastUser = userID
	return []model.Reservation{}, nil
}

func (s *stubBookings) Cancel(_ context.Context, userID, id string) (model.Reservation, error) {
	return model.Reservation{ID: id, UserID: userID, Status: model.StatusCancelled}, nil
}

func (s *stubBookings) Delete(context.Context, string, string) error { return nil }

type stubReconciler struct{}

func (stubReconciler) HandleWebhook(context.Context, []byte, string) error { return nil }

type stubSweeper struct{}

func (stubSweeper) ExpireStale(context.Context) (int, error) { return 0, nil }

func newServer(t *testing.T) (*echo.Echo, *stubBookings) {
	t.Helper()
	logger := zap.NewNop()
	bookings := &stubBookings{}
	projector := service.NewProjector(memory.NewLedger(), 4, time.UTC, time.Now)

	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	Register(e, Handlers{
		Sessions: handler.NewSessionHandler(memory.NewSessions(), projector, logger),
		Bookings: handler.NewBookingHandler(bookings, logger),
		Webhooks: handler.NewWebhookHandler(stubReconciler{}, logger),
		Admin:    handler.NewAdminHandler(stubSweeper{}, logger),
	}, Options{
		JWTSecret: secret,
		RateLimit: config.RateLimitConfig{Enabled: true},
		Cache:     config.CacheConfig{Enabled: true},
		Logger:    logger,
	})
	return e, bookings
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func serve(e *echo.Echo, method, target, body, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	e, _ := newServer(t)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/sessions", "", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodGet, "/v1/sessions/none/availability", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/webhooks/payment", `{}`, "").Code)
}

func TestBookingRoutesRequireToken(t *testing.T) {
	e, bookings := newServer(t)

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/v1/bookings", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodPost, "/v1/bookings", `{}`, "Bearer junk").Code)

	rec := serve(e, http.MethodGet, "/v1/bookings", "", bearer(t, "user-7", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", bookings.lastUser)

	rec = serve(e, http.MethodPost, "/v1/bookings", `{"session_id":"yoga","date_key":"2026-10-21"}`, bearer(t, "user-8", ""))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user-8", bookings.lastUser)

	auth := bearer(t, "user-7", "")
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/bookings/res-1", "", auth).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/v1/bookings/res-1/cancel", "", auth).Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodDelete, "/v1/bookings/res-1", "", auth).Code)
}

func TestAdminRouteRequiresRole(t *testing.T) {
	e, _ := newServer(t)

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodPost, "/v1/admin/sweep", "", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodPost, "/v1/admin/sweep", "", bearer(t, "user-7", "")).Code)

	rec := serve(e, http.MethodPost, "/v1/admin/sweep", "", bearer(t, "ops", "ADMIN"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"expired":0}`, rec.Body.String())
}
