package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/wellness-session-booking/internal/config"
	"github.com/iliyamo/wellness-session-booking/internal/handler"
	"github.com/iliyamo/wellness-session-booking/internal/middleware"
)

// Handlers groups every HTTP handler the API mounts.
type Handlers struct {
	Sessions *handler.SessionHandler
	Bookings *handler.BookingHandler
	Webhooks *handler.WebhookHandler
	Admin    *handler.AdminHandler
}

// Options carries what the route middlewares need.  Redis may be nil, in
// which case rate limiting and caching pass requests straight through.
type Options struct {
	JWTSecret string
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Logger    *zap.Logger
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated browse endpoints.  Both are
// served through the response cache.
func RegisterPublic(e *echo.Echo, h *handler.SessionHandler, opts Options) {
	cache := middleware.NewRedisCache(opts.Cache, opts.Redis)
	g := e.Group("/v1/sessions", cache)
	g.GET("", h.List)
	g.GET("/:id/availability", h.Availability)
}

// RegisterBookings registers the reservation endpoints.  All of them need a
// valid access token; creating a booking is rate limited per user.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, opts Options) {
	g := e.Group("/v1/bookings", middleware.JWTAuth(opts.JWTSecret))
	g.POST("", h.Create, middleware.NewTokenBucket(opts.RateLimit, opts.Redis, opts.Logger))
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/cancel", h.Cancel)
	g.DELETE("/:id", h.Delete)
}

// RegisterWebhooks registers the payment provider callback.  It is
// authenticated by the event signature, not by a token.
func RegisterWebhooks(e *echo.Echo, h *handler.WebhookHandler) {
	e.POST("/webhooks/payment", h.Payment)
}

// RegisterAdmin registers operational endpoints for the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, opts Options) {
	g := e.Group("/v1/admin", middleware.JWTAuth(opts.JWTSecret), middleware.RequireRole("ADMIN"))
	g.POST("/sweep", h.Sweep)
}

// Register mounts every route group.
func Register(e *echo.Echo, h Handlers, opts Options) {
	RegisterRoutes(e)
	RegisterPublic(e, h.Sessions, opts)
	RegisterBookings(e, h.Bookings, opts)
	RegisterWebhooks(e, h.Webhooks)
	RegisterAdmin(e, h.Admin, opts)
}
