package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/wellness-session-booking/internal/app"
	"github.com/iliyamo/wellness-session-booking/internal/config"
	"github.com/iliyamo/wellness-session-booking/internal/database"
	"github.com/iliyamo/wellness-session-booking/internal/handler"
	"github.com/iliyamo/wellness-session-booking/internal/mail"
	"github.com/iliyamo/wellness-session-booking/internal/payment"
	"github.com/iliyamo/wellness-session-booking/internal/queue"
	"github.com/iliyamo/wellness-session-booking/internal/repository"
	"github.com/iliyamo/wellness-session-booking/internal/router"
	"github.com/iliyamo/wellness-session-booking/internal/scheduler"
	"github.com/iliyamo/wellness-session-booking/internal/service"
)

func main() {
	cfg := config.Load()
	logger := app.NewLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}
	if v, err := database.Version(ctx, db); err == nil {
		logger.Info("database schema ready", zap.Int64("version", v))
	}

	sessions := repository.NewSessionRepo(db)
	slots := repository.NewSlotRepo(db)
	reservations := repository.NewReservationRepo(db)
	users := repository.NewUserRepo(db)

	gateway := payment.NewStripeGateway(cfg.StripeSecretKey)
	verifier := payment.NewStripeVerifier(cfg.StripeWebhookSecret)
	notifier := confirmationNotifier(ctx, cfg, logger)

	projector := service.NewProjector(slots, cfg.BookingWindow, cfg.Timezone, time.Now)
	bookings := service.NewBookingService(
		sessions, slots, reservations, projector, gateway,
		service.BookingConfig{
			Currency:     cfg.Currency,
			SuccessURL:   cfg.CheckoutSuccessURL,
			CancelURL:    cfg.CheckoutCancelURL,
			CancelCutoff: cfg.CancelCutoff,
			PendingTTL:   cfg.PendingTTL,
			SweepBatch:   cfg.SweepBatch,
		},
		logger.Named("booking"),
		service.WithRetryPolicy(service.RetryPolicy{Attempts: cfg.RetryAttempts, Base: cfg.RetryBase}),
	)
	reconciler := service.NewReconciler(verifier, reservations, slots, users, notifier, cfg.Currency, logger.Named("reconciler"))

	go scheduler.New(bookings, cfg.SweepInterval, logger.Named("scheduler")).Start(ctx)

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	}))

	router.Register(e, router.Handlers{
		Sessions: handler.NewSessionHandler(sessions, projector, logger.Named("http")),
		Bookings: handler.NewBookingHandler(bookings, logger.Named("http")),
		Webhooks: handler.NewWebhookHandler(reconciler, logger.Named("http")),
		Admin:    handler.NewAdminHandler(bookings, logger.Named("http")),
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Logger:    logger.Named("ratelimit"),
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// confirmationNotifier picks how confirmation emails leave the process.  In
// queue mode they are published to RabbitMQ and a consumer in this process
// delivers them over SMTP; otherwise they are sent inline.
func confirmationNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) service.ConfirmationSender {
	smtpSender := mail.NewSMTPSender(mail.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}, logger.Named("mail"))

	if cfg.NotifyMode != "queue" || cfg.RabbitURL == "" {
		logger.Info("confirmations sent inline over smtp")
		return smtpSender
	}

	publisher := queue.NewPublisher(cfg.RabbitURL, logger.Named("queue"))
	go func() {
		<-ctx.Done()
		publisher.Close()
	}()
	go func() {
		if err := queue.StartConfirmationConsumer(ctx, cfg.RabbitURL, smtpSender, logger.Named("confirmation-consumer")); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("confirmation consumer stopped", zap.Error(err))
		}
	}()
	return publisher
}
