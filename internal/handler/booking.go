package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/wellness-session-booking/internal/model"
	"github.com/iliyamo/wellness-session-booking/internal/service"
)

type bookingService interface {
	InitiateBooking(ctx context.Context, userID, sessionID, dateKey string) (service.CheckoutHandle, error)
	Get(ctx context.Context, userID, reservationID string) (model.Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]model.Reservation, error)
	Cancel(ctx context.Context, userID, reservationID string) (model.Reservation, error)
	Delete(ctx context.Context, userID, reservationID string) error
}

// BookingHandler serves the authenticated reservation endpoints.  Every
// method assumes JWTAuth ran and only ever acts on the caller's own
// reservations.
type BookingHandler struct {
	Bookings bookingService
	Logger   *zap.Logger
}

func NewBookingHandler(bookings bookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{Bookings: bookings, Logger: logger}
}

type createBookingRequest struct {
	SessionID string `json:"session_id" validate:"required,max=64"`
	DateKey   string `json:"date_key" validate:"required,datetime=2006-01-02"`
}

// Create handles POST /v1/bookings.  On success it returns 201 with the
// reservation id and the checkout URL the client must redirect to.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	var req createBookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	handle, err := h.Bookings.InitiateBooking(c.Request().Context(), userID, req.SessionID, req.DateKey)
	if err != nil {
		return bookingError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservation_id":    handle.ReservationID,
		"checkout_redirect": handle.RedirectURL,
	})
}

// List handles GET /v1/bookings.
func (h *BookingHandler) List(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	items, err := h.Bookings.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return bookingError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	res, err := h.Bookings.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return bookingError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	res, err := h.Bookings.Cancel(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return bookingError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Delete handles DELETE /v1/bookings/:id.
func (h *BookingHandler) Delete(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.Bookings.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return bookingError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
