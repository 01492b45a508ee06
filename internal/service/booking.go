package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/wellness-session-booking/internal/model"
	"github.com/iliyamo/wellness-session-booking/internal/payment"
	"github.com/iliyamo/wellness-session-booking/internal/repository"
)

// CheckoutHandle is returned to the client after a booking is initiated.
type CheckoutHandle struct {
	ReservationID string `json:"reservation_id"`
	CheckoutID    string `json:"checkout_id"`
	RedirectURL   string `json:"checkout_redirect"`
}

// BookingConfig carries the settings the booking flow needs.
type BookingConfig struct {
	Currency     string
	SuccessURL   string
	CancelURL    string
	CancelCutoff time.Duration // cancellations close this long before start
	PendingTTL   time.Duration // pending reservations older than this are expired
	SweepBatch   int           // reservations expired per sweep
}

// BookingService coordinates the ledger, the reservation store and the
// payment gateway.  Every step that follows a successful seat reservation
// is compensated when a later step fails, so a failed booking never keeps a
// seat.
type BookingService struct {
	sessions     SessionStore
	ledger       Ledger
	reservations ReservationStore
	projector    *Projector
	gateway      PaymentGateway
	cfg          BookingConfig
	logger       *zap.Logger

	now   func() time.Time
	newID func() string
	retry RetryPolicy
}

// Option customizes a BookingService.
type Option func(*BookingService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *BookingService) { s.now = now } }

// WithIDs replaces the reservation id generator.
func WithIDs(newID func() string) Option { return func(s *BookingService) { s.newID = newID } }

// WithRetryPolicy sets how ledger conflicts are retried.
func WithRetryPolicy(p RetryPolicy) Option { return func(s *BookingService) { s.retry = p } }

// defaultSweepBatch bounds one expiry pass when no batch size is configured.
const defaultSweepBatch = 100

func NewBookingService(
	sessions SessionStore,
	ledger Ledger,
	reservations ReservationStore,
	projector *Projector,
	gateway PaymentGateway,
	cfg BookingConfig,
	logger *zap.Logger,
	opts ...Option,
) *BookingService {
	s := &BookingService{
		sessions:     sessions,
		ledger:       ledger,
		reservations: reservations,
		projector:    projector,
		gateway:      gateway,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
		retry:        DefaultRetryPolicy,
	}
	if s.cfg.SweepBatch <= 0 {
		s.cfg.SweepBatch = defaultSweepBatch
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitiateBooking reserves a seat for userID on the given occurrence,
// records a pending reservation and opens a checkout for it.
func (s *BookingService) InitiateBooking(ctx context.Context, userID, sessionID, dateKey string) (CheckoutHandle, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return CheckoutHandle{}, fmt.Errorf("%w: unknown session %s", ErrInvalidSlot, sessionID)
	}
	if err != nil {
		return CheckoutHandle{}, fmt.Errorf("get session: %w", err)
	}

	dates, err := s.projector.Project(ctx, sess)
	if err != nil {
		return CheckoutHandle{}, storeError("project slots", err)
	}
	if !bookable(dates, dateKey) {
		return CheckoutHandle{}, fmt.Errorf("%w: %s is not an upcoming date of %s", ErrInvalidSlot, dateKey, sessionID)
	}

	dup, err := s.reservations.HasConfirmed(ctx, userID, sessionID, dateKey)
	if err != nil {
		return CheckoutHandle{}, storeError("check existing booking", err)
	}
	if dup {
		return CheckoutHandle{}, ErrDuplicateBooking
	}

	res := model.Reservation{
		ID:            s.newID(),
		UserID:        userID,
		SessionID:     sessionID,
		ScheduledDate: dateKey,
		Status:        model.StatusPending,
		Session:       sess.Snapshot(),
		BookedAt:      s.now().UTC(),
	}

	err = s.retry.do(ctx, func(ctx context.Context) error {
		return s.ledger.TryReserve(ctx, sessionID, dateKey, userID, res.ID)
	})
	switch {
	case errors.Is(err, repository.ErrCapacityExhausted):
		return CheckoutHandle{}, ErrNoAvailability
	case errors.Is(err, repository.ErrSlotNotFound):
		return CheckoutHandle{}, fmt.Errorf("%w: no ledger entry for %s/%s", ErrInvalidSlot, sessionID, dateKey)
	case err != nil:
		return CheckoutHandle{}, storeError("reserve seat", err)
	}

	if err := s.reservations.Create(ctx, &res); err != nil {
		s.releaseSeat(ctx, res, "reservation insert failed")
		return CheckoutHandle{}, storeError("create reservation", err)
	}

	checkout, err := s.gateway.CreateCheckout(ctx, payment.CheckoutRequest{
		AmountCents: sess.PriceCents,
		Currency:    s.cfg.Currency,
		ProductName: fmt.Sprintf("%s (%s %s)", sess.Title, dateKey, sess.StartTime),
		SuccessURL:  s.cfg.SuccessURL,
		CancelURL:   s.cfg.CancelURL,
		Metadata: map[string]string{
			payment.MetaReservationID: res.ID,
			payment.MetaUserID:        userID,
			payment.MetaSessionID:     sessionID,
			payment.MetaPrice:         strconv.FormatInt(sess.PriceCents, 10),
		},
	})
	if err != nil {
		s.compensate(ctx, res, "checkout creation failed", err)
		return CheckoutHandle{}, errors.Join(ErrCheckoutFailed, err)
	}

	if err := s.reservations.AttachCheckout(ctx, res.ID, checkout.ID); err != nil {
		s.compensate(ctx, res, "attaching checkout failed", err)
		if xerr := s.gateway.ExpireCheckout(context.WithoutCancel(ctx), checkout.ID); xerr != nil {
			s.logger.Warn("expire orphaned checkout",
				zap.String("checkout_id", checkout.ID),
				zap.Error(xerr))
		}
		return CheckoutHandle{}, errors.Join(ErrCheckoutFailed, err)
	}

	s.logger.Info("booking initiated",
		zap.String("reservation_id", res.ID),
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
		zap.String("date_key", dateKey),
		zap.String("checkout_id", checkout.ID),
	)
	return CheckoutHandle{ReservationID: res.ID, CheckoutID: checkout.ID, RedirectURL: checkout.RedirectURL}, nil
}

// Get returns a reservation owned by userID.
func (s *BookingService) Get(ctx context.Context, userID, reservationID string) (model.Reservation, error) {
	res, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		return model.Reservation{}, err
	}
	if res.UserID != userID {
		return model.Reservation{}, ErrForbidden
	}
	return res, nil
}

// ListByUser returns the user's reservations, newest first.
func (s *BookingService) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	return s.reservations.ListByUser(ctx, userID)
}

// Cancel cancels a pending or confirmed reservation and frees its seat.
// Cancelling an already cancelled reservation succeeds.  Cancellation is
// refused once the session starts within the configured cutoff.
func (s *BookingService) Cancel(ctx context.Context, userID, reservationID string) (model.Reservation, error) {
	res, err := s.Get(ctx, userID, reservationID)
	if err != nil {
		return model.Reservation{}, err
	}

	if res.Status != model.StatusCancelled {
		startsAt, err := res.StartsAt(s.projector.Location())
		if err != nil {
			return model.Reservation{}, fmt.Errorf("reservation %s start: %w", res.ID, err)
		}
		if !s.now().Before(startsAt.Add(-s.cfg.CancelCutoff)) {
			return model.Reservation{}, ErrCancellationWindow
		}
		if res.Status == model.StatusPending && res.CheckoutID != "" {
			if err := s.gateway.ExpireCheckout(ctx, res.CheckoutID); err != nil {
				s.logger.Warn("expire checkout on cancel",
					zap.String("reservation_id", res.ID),
					zap.String("checkout_id", res.CheckoutID),
					zap.Error(err))
			}
		}
	}

	// The status goes first: a seat is only ever freed for a reservation
	// that can no longer be confirmed.  A failed release is healed by
	// cancelling again.
	now := s.now().UTC()
	if err := s.reservations.MarkCancelled(ctx, res.ID, now); err != nil {
		return model.Reservation{}, storeError("cancel reservation", err)
	}
	if err := s.release(ctx, res); err != nil {
		return model.Reservation{}, storeError("release seat", err)
	}

	if res.Status != model.StatusCancelled {
		s.logger.Info("reservation cancelled",
			zap.String("reservation_id", res.ID),
			zap.String("user_id", userID),
			zap.String("previous_status", string(res.Status)))
		res.Status = model.StatusCancelled
		res.CancelledAt = &now
	}
	return res, nil
}

// Delete cancels the reservation if it is still active and then removes
// the record.
func (s *BookingService) Delete(ctx context.Context, userID, reservationID string) error {
	res, err := s.Get(ctx, userID, reservationID)
	if err != nil {
		return err
	}
	if res.Status != model.StatusCancelled {
		if _, err := s.Cancel(ctx, userID, reservationID); err != nil {
			return err
		}
	}
	if err := s.reservations.Delete(ctx, reservationID); err != nil {
		return storeError("delete reservation", err)
	}
	s.logger.Info("reservation deleted", zap.String("reservation_id", reservationID), zap.String("user_id", userID))
	return nil
}

// ExpireStale cancels pending reservations whose checkout was abandoned
// and returns how many seats were freed.  The provider checkout is expired
// first; when that fails the reservation is left alone because it may have
// been paid in the meantime.
func (s *BookingService) ExpireStale(ctx context.Context) (int, error) {
	now := s.now().UTC()
	stale, err := s.reservations.ListStalePending(ctx, now.Add(-s.cfg.PendingTTL), s.cfg.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale pending: %w", err)
	}

	expired := 0
	for _, res := range stale {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		if res.CheckoutID != "" {
			if err := s.gateway.ExpireCheckout(ctx, res.CheckoutID); err != nil {
				s.logger.Warn("skip stale reservation; checkout not expired",
					zap.String("reservation_id", res.ID),
					zap.String("checkout_id", res.CheckoutID),
					zap.Error(err))
				continue
			}
		}
		err := s.reservations.MarkExpired(ctx, res.ID, now)
		if errors.Is(err, repository.ErrNotPending) || errors.Is(err, repository.ErrReservationNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error("expire reservation", zap.String("reservation_id", res.ID), zap.Error(err))
			continue
		}
		s.releaseSeat(ctx, res, "pending reservation expired")
		expired++
	}
	if expired > 0 {
		s.logger.Info("stale pending reservations expired", zap.Int("count", expired))
	}
	return expired, nil
}

// release frees the reservation's seat, retrying transient conflicts.
func (s *BookingService) release(ctx context.Context, res model.Reservation) error {
	return s.retry.do(ctx, func(ctx context.Context) error {
		return s.ledger.Release(ctx, res.SessionID, res.ScheduledDate, res.ID)
	})
}

// releaseSeat is release for paths that cannot report the failure.  A seat
// that could not be released stays taken until someone intervenes.
func (s *BookingService) releaseSeat(ctx context.Context, res model.Reservation, reason string) {
	if err := s.release(context.WithoutCancel(ctx), res); err != nil {
		s.logger.Error("seat release failed",
			zap.String("severity", "critical"),
			zap.String("reason", reason),
			zap.String("reservation_id", res.ID),
			zap.String("session_id", res.SessionID),
			zap.String("date_key", res.ScheduledDate),
			zap.Error(err))
	}
}

// compensate undoes a booking whose checkout could not be established.  If
// the reservation cannot be cancelled its seat stays held and the expiry
// sweep frees it once the reservation goes stale.
func (s *BookingService) compensate(ctx context.Context, res model.Reservation, reason string, cause error) {
	s.logger.Warn("compensating booking",
		zap.String("reservation_id", res.ID),
		zap.String("reason", reason),
		zap.Error(cause))

	ctx = context.WithoutCancel(ctx)
	if err := s.reservations.MarkCancelled(ctx, res.ID, s.now().UTC()); err != nil {
		s.logger.Error("compensation could not cancel reservation",
			zap.String("severity", "critical"),
			zap.String("reservation_id", res.ID),
			zap.Error(err))
		return
	}
	s.releaseSeat(ctx, res, reason)
}

// storeError maps transient storage conflicts to ErrServiceUnavailable.
func storeError(op string, err error) error {
	if errors.Is(err, repository.ErrTxConflict) {
		return fmt.Errorf("%s: %w", op, errors.Join(ErrServiceUnavailable, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
