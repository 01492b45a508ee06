package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/wellness-session-booking/internal/model"
	"github.com/iliyamo/wellness-session-booking/internal/repository"
)

type sessionCatalogue interface {
	Get(ctx context.Context, id string) (model.Session, error)
	List(ctx context.Context) ([]model.Session, error)
}

type availabilityProjector interface {
	Availability(ctx context.Context, s model.Session) ([]model.SlotAvailability, error)
}

// SessionHandler serves the public browse endpoints.  No authentication is
// required.
type SessionHandler struct {
	Sessions  sessionCatalogue
	Projector availabilityProjector
	Logger    *zap.Logger
}

func NewSessionHandler(sessions sessionCatalogue, projector availabilityProjector, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{Sessions: sessions, Projector: projector, Logger: logger}
}

// List handles GET /v1/sessions.
func (h *SessionHandler) List(c echo.Context) error {
	sessions, err := h.Sessions.List(c.Request().Context())
	if err != nil {
		h.Logger.Error("list sessions", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error", "reason": ReasonInternal})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": sessions})
}

// Availability handles GET /v1/sessions/:id/availability.  It returns the
// bookable dates of the session with the seats left on each.
func (h *SessionHandler) Availability(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := h.Sessions.Get(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrSessionNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found", "reason": ReasonNotFound})
	}
	if err != nil {
		h.Logger.Error("get session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error", "reason": ReasonInternal})
	}

	slots, err := h.Projector.Availability(ctx, sess)
	if err != nil {
		return bookingError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session": sess,
		"slots":   slots,
	})
}
