package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/wellness-session-booking/internal/service"
)

// maxWebhookBody bounds the payload read from the payment provider.
const maxWebhookBody = 64 << 10

type webhookReconciler interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// WebhookHandler receives payment provider callbacks.
type WebhookHandler struct {
	Reconciler webhookReconciler
	Logger     *zap.Logger
}

func NewWebhookHandler(r webhookReconciler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{Reconciler: r, Logger: logger}
}

// Payment handles POST /webhooks/payment.  The body is read raw because the
// signature covers the exact bytes sent.  A 2xx response acknowledges the
// event; anything else makes the provider deliver it again.
func (h *WebhookHandler) Payment(c echo.Context) error {
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "unreadable body")
	}
	signature := c.Request().Header.Get("Stripe-Signature")

	err = h.Reconciler.HandleWebhook(c.Request().Context(), body, signature)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	case errors.Is(err, service.ErrSignatureInvalid):
		h.Logger.Warn("webhook signature rejected", zap.String("remote_ip", c.RealIP()))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature", "reason": ReasonBadRequest})
	case errors.Is(err, service.ErrMalformedEvent),
		errors.Is(err, service.ErrMissingMetadata),
		errors.Is(err, service.ErrMetadataMismatch):
		h.Logger.Warn("webhook metadata rejected", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "reason": ReasonBadRequest})
	default:
		h.Logger.Error("webhook processing failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "reason": ReasonInternal})
	}
}
