// Package handler exposes the HTTP handlers of the booking API.  Handlers
// decode and validate requests, call the booking services and translate
// their sentinel errors into stable JSON error bodies of the form
// {"error": "...", "reason": "..."}.
package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/wellness-session-booking/internal/middleware"
	"github.com/iliyamo/wellness-session-booking/internal/repository"
	"github.com/iliyamo/wellness-session-booking/internal/service"
)

// Reason codes returned to clients.
const (
	ReasonDuplicate          = "DUPLICATE"
	ReasonNoAvailability     = "NO_AVAILABILITY"
	ReasonInvalidSlot        = "INVALID_SLOT"
	ReasonCheckoutFailed     = "CHECKOUT_FAILED"
	ReasonUnavailable        = "UNAVAILABLE"
	ReasonNotFound           = "NOT_FOUND"
	ReasonForbidden          = "FORBIDDEN"
	ReasonCancellationClosed = "CANCELLATION_CLOSED"
	ReasonBadRequest         = "BAD_REQUEST"
	ReasonInternal           = "INTERNAL"
)

// RequestValidator adapts go-playground/validator to echo.Validator.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (r *RequestValidator) Validate(i interface{}) error { return r.v.Struct(i) }

// getUserID extracts the authenticated user id placed in the context by
// middleware.JWTAuth.
func getUserID(c echo.Context) (string, bool) { return middleware.UserID(c) }

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "reason": ReasonBadRequest})
}

// bindAndValidate decodes the JSON body into dst and validates it.
func bindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New("invalid field " + verrs[0].Field())
		}
		return err
	}
	return nil
}

// bookingError writes the response for an error returned by the booking
// service.
func bookingError(c echo.Context, logger *zap.Logger, err error) error {
	status, reason := http.StatusInternalServerError, ReasonInternal
	switch {
	case errors.Is(err, service.ErrDuplicateBooking):
		status, reason = http.StatusConflict, ReasonDuplicate
	case errors.Is(err, service.ErrNoAvailability):
		status, reason = http.StatusConflict, ReasonNoAvailability
	case errors.Is(err, service.ErrInvalidSlot):
		status, reason = http.StatusBadRequest, ReasonInvalidSlot
	case errors.Is(err, service.ErrCheckoutFailed):
		status, reason = http.StatusBadGateway, ReasonCheckoutFailed
	case errors.Is(err, service.ErrServiceUnavailable):
		status, reason = http.StatusServiceUnavailable, ReasonUnavailable
	case errors.Is(err, repository.ErrReservationNotFound), errors.Is(err, repository.ErrSessionNotFound):
		status, reason = http.StatusNotFound, ReasonNotFound
	case errors.Is(err, service.ErrForbidden):
		status, reason = http.StatusForbidden, ReasonForbidden
	case errors.Is(err, service.ErrCancellationWindow):
		status, reason = http.StatusConflict, ReasonCancellationClosed
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.String("reason", reason),
			zap.Error(err))
		switch status {
		case http.StatusBadGateway:
			msg = service.ErrCheckoutFailed.Error()
		case http.StatusServiceUnavailable:
			msg = service.ErrServiceUnavailable.Error()
		default:
			msg = "internal error"
		}
	}
	if status == http.StatusServiceUnavailable {
		c.Response().Header().Set("Retry-After", "1")
	}
	return c.JSON(status, echo.Map{"error": msg, "reason": reason})
}
