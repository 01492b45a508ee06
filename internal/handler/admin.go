package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type staleSweeper interface {
	ExpireStale(ctx context.Context) (int, error)
}

// AdminHandler exposes operational endpoints for the ADMIN role.
type AdminHandler struct {
	Sweeper staleSweeper
	Logger  *zap.Logger
}

func NewAdminHandler(s staleSweeper, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{Sweeper: s, Logger: logger}
}

// Sweep handles POST /v1/admin/sweep by running one expiry pass now.
func (h *AdminHandler) Sweep(c echo.Context) error {
	n, err := h.Sweeper.ExpireStale(c.Request().Context())
	if err != nil {
		h.Logger.Error("manual sweep failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed", "reason": ReasonInternal})
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}
