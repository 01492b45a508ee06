package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/wellness-session-booking/internal/mail"
	"github.com/iliyamo/wellness-session-booking/internal/model"
	"github.com/iliyamo/wellness-session-booking/internal/payment"
	"github.com/iliyamo/wellness-session-booking/internal/repository"
)

// Reconciler applies verified payment provider events to reservations.
// Providers deliver events at least once, so every branch is safe to
// replay.
type Reconciler struct {
	verifier     EventVerifier
	reservations ReservationStore
	ledger       Ledger
	users        UserDirectory
	sender       ConfirmationSender
	currency     string
	logger       *zap.Logger
	now          func() time.Time
	retry        RetryPolicy
}

func NewReconciler(
	verifier EventVerifier,
	reservations ReservationStore,
	ledger Ledger,
	users UserDirectory,
	sender ConfirmationSender,
	currency string,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		verifier:     verifier,
		reservations: reservations,
		ledger:       ledger,
		users:        users,
		sender:       sender,
		currency:     currency,
		logger:       logger,
		now:          time.Now,
		retry:        DefaultRetryPolicy,
	}
}

// HandleWebhook verifies payload against signature and applies the event.
// A nil return means the event is acknowledged, including events that need
// no action.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := r.verifier.Verify(payload, signature)
	if errors.Is(err, payment.ErrInvalidSignature) {
		return errors.Join(ErrSignatureInvalid, err)
	}
	if errors.Is(err, payment.ErrMalformedEvent) {
		return errors.Join(ErrMalformedEvent, err)
	}
	if err != nil {
		return fmt.Errorf("decode payment event: %w", err)
	}
	return r.Apply(ctx, ev)
}

// Apply dispatches a verified event.
func (r *Reconciler) Apply(ctx context.Context, ev payment.Event) error {
	switch e := ev.(type) {
	case payment.CheckoutCompleted:
		if !e.Paid {
			r.logger.Info("checkout completed without payment; waiting for async result",
				zap.String("event_id", e.ID),
				zap.String("reservation_id", e.ReservationID))
			return nil
		}
		return r.confirm(ctx, e.CheckoutFields)
	case payment.CheckoutAsyncPaid:
		return r.confirm(ctx, e.CheckoutFields)
	case payment.CheckoutExpired:
		return r.expire(ctx, e.CheckoutFields)
	case payment.Unknown:
		r.logger.Debug("ignoring payment event", zap.String("event_id", e.ID), zap.String("type", e.Type))
		return nil
	default:
		r.logger.Warn("unhandled payment event", zap.String("go_type", fmt.Sprintf("%T", ev)))
		return nil
	}
}

func (r *Reconciler) confirm(ctx context.Context, f payment.CheckoutFields) error {
	if f.ReservationID == "" || f.UserID == "" {
		return fmt.Errorf("%w: event %s", ErrMissingMetadata, f.ID)
	}
	log := r.logger.With(
		zap.String("event_id", f.ID),
		zap.String("reservation_id", f.ReservationID),
		zap.String("checkout_id", f.CheckoutID))

	res, err := r.reservations.Get(ctx, f.ReservationID)
	if errors.Is(err, repository.ErrReservationNotFound) {
		log.Error("payment received for unknown reservation")
		return fmt.Errorf("%w: %s", ErrDataIntegrity, f.ReservationID)
	}
	if err != nil {
		return fmt.Errorf("get reservation: %w", err)
	}
	if res.UserID != f.UserID {
		log.Warn("payment metadata user mismatch", zap.String("event_user_id", f.UserID))
		return fmt.Errorf("%w: reservation %s", ErrMetadataMismatch, f.ReservationID)
	}

	err = r.reservations.MarkConfirmed(ctx, res.ID, r.now().UTC())
	switch {
	case errors.Is(err, repository.ErrAlreadyConfirmed):
		log.Info("duplicate payment event ignored")
		return nil
	case errors.Is(err, repository.ErrReservationCancelled):
		log.Error("payment received for cancelled reservation; refund required")
		return nil
	case errors.Is(err, repository.ErrDuplicateConfirmed):
		log.Error("payment received for slot already confirmed for user; refund required")
		r.dropDuplicate(ctx, res, log)
		return nil
	case err != nil:
		return fmt.Errorf("confirm reservation: %w", err)
	}

	log.Info("reservation confirmed", zap.String("user_id", res.UserID))
	r.notify(ctx, res, f.CustomerEmail, log)
	return nil
}

// dropDuplicate cancels a paid reservation that lost the race to another
// confirmed reservation of the same user and frees its seat.
func (r *Reconciler) dropDuplicate(ctx context.Context, res model.Reservation, log *zap.Logger) {
	if err := r.reservations.MarkCancelled(ctx, res.ID, r.now().UTC()); err != nil {
		log.Error("cancel duplicate reservation", zap.Error(err))
		return
	}
	r.releaseSeat(ctx, res, log)
}

func (r *Reconciler) expire(ctx context.Context, f payment.CheckoutFields) error {
	if f.ReservationID == "" {
		r.logger.Info("expired checkout without reservation metadata", zap.String("event_id", f.ID))
		return nil
	}
	log := r.logger.With(zap.String("event_id", f.ID), zap.String("reservation_id", f.ReservationID))

	res, err := r.reservations.Get(ctx, f.ReservationID)
	if errors.Is(err, repository.ErrReservationNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get reservation: %w", err)
	}

	err = r.reservations.MarkExpired(ctx, res.ID, r.now().UTC())
	if errors.Is(err, repository.ErrNotPending) || errors.Is(err, repository.ErrReservationNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("expire reservation: %w", err)
	}
	log.Info("checkout expired; reservation released")
	r.releaseSeat(ctx, res, log)
	return nil
}

func (r *Reconciler) releaseSeat(ctx context.Context, res model.Reservation, log *zap.Logger) {
	err := r.retry.do(ctx, func(ctx context.Context) error {
		return r.ledger.Release(ctx, res.SessionID, res.ScheduledDate, res.ID)
	})
	if err != nil {
		log.Error("seat release failed",
			zap.String("severity", "critical"),
			zap.String("session_id", res.SessionID),
			zap.String("date_key", res.ScheduledDate),
			zap.Error(err))
	}
}

// notify sends the confirmation email.  The address on the payment wins
// over the one in the user directory.
func (r *Reconciler) notify(ctx context.Context, res model.Reservation, address string, log *zap.Logger) {
	if address == "" {
		var err error
		address, err = r.users.ContactEmail(ctx, res.UserID)
		if err != nil {
			log.Warn("no contact address for confirmation", zap.Error(err))
			return
		}
	}
	details := mail.BookingDetails{
		ReservationID: res.ID,
		Title:         res.Session.Title,
		DateKey:       res.ScheduledDate,
		StartTime:     res.Session.StartTime,
		EndTime:       res.Session.EndTime,
		PriceCents:    res.Session.PriceCents,
		Currency:      r.currency,
	}
	if !r.sender.SendBookingConfirmation(ctx, address, details) {
		log.Warn("confirmation not delivered")
	}
}
