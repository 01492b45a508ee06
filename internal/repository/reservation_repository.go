package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/wellness-session-booking/internal/model"
)

// ReservationRepo stores reservations and their status transitions.  All
// timestamps are written in UTC.  The generated confirmed_key column carries
// a unique index so the database itself rejects a second confirmed
// reservation for the same user, session and date.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, session_id, scheduled_date, status, checkout_id,
	session_snapshot, booked_at, paid_at, cancelled_at`

// Create inserts a reservation.  The caller assigns the id.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	snapshot, err := json.Marshal(res.Session)
	if err != nil {
		return fmt.Errorf("encode session snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO reservations (id, user_id, session_id, scheduled_date, status, session_snapshot, booked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.UserID, res.SessionID, res.ScheduledDate, string(res.Status), snapshot, res.BookedAt.UTC(),
	)
	return classify(err)
}

// Get returns a reservation by id or ErrReservationNotFound.
func (r *ReservationRepo) Get(ctx context.Context, id string) (model.Reservation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrReservationNotFound
	}
	return res, err
}

// ListByUser returns the user's reservations, most recent first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	return r.list(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? ORDER BY booked_at DESC, id`,
		userID,
	)
}

// ListStalePending returns up to limit pending reservations booked before
// the cutoff, oldest first.  A non-positive limit returns them all.
func (r *ReservationRepo) ListStalePending(ctx context.Context, before time.Time, limit int) ([]model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		 WHERE status = 'pending' AND booked_at < ? ORDER BY booked_at, id`
	if limit <= 0 {
		return r.list(ctx, query, before.UTC())
	}
	return r.list(ctx, query+` LIMIT ?`, before.UTC(), limit)
}

// HasConfirmed reports whether the user already holds a confirmed
// reservation for the session on dateKey.
func (r *ReservationRepo) HasConfirmed(ctx context.Context, userID, sessionID, dateKey string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM reservations
		 WHERE user_id = ? AND session_id = ? AND scheduled_date = ? AND status = 'confirmed')`,
		userID, sessionID, dateKey,
	).Scan(&exists)
	return exists, classify(err)
}

// AttachCheckout records the payment provider checkout id.
func (r *ReservationRepo) AttachCheckout(ctx context.Context, id, checkoutID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reservations SET checkout_id = ? WHERE id = ?`, checkoutID, id)
	if err != nil {
		return classify(err)
	}
	return r.requireAffected(ctx, res, id)
}

// MarkConfirmed moves a pending reservation to confirmed and stamps paidAt.
// It returns ErrAlreadyConfirmed, ErrReservationCancelled or
// ErrDuplicateConfirmed when the transition is not allowed.
func (r *ReservationRepo) MarkConfirmed(ctx context.Context, id string, paidAt time.Time) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = ? FOR UPDATE`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReservationNotFound
		}
		if err != nil {
			return err
		}
		switch model.ReservationStatus(status) {
		case model.StatusConfirmed:
			return ErrAlreadyConfirmed
		case model.StatusCancelled:
			return ErrReservationCancelled
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE reservations SET status = 'confirmed', paid_at = ? WHERE id = ?`, paidAt.UTC(), id)
		if isDuplicate(err) {
			return ErrDuplicateConfirmed
		}
		return err
	})
}

// MarkCancelled moves a reservation to cancelled.  Cancelling twice keeps
// the first cancellation timestamp.
func (r *ReservationRepo) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = 'cancelled', cancelled_at = COALESCE(cancelled_at, ?) WHERE id = ?`,
		at.UTC(), id,
	)
	if err != nil {
		return classify(err)
	}
	return r.requireAffected(ctx, res, id)
}

// MarkExpired cancels a reservation only while it is still pending.
func (r *ReservationRepo) MarkExpired(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = 'cancelled', cancelled_at = ? WHERE id = ? AND status = 'pending'`,
		at.UTC(), id,
	)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	ok, err := r.exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrReservationNotFound
	}
	return ErrNotPending
}

// Delete removes the reservation record.
func (r *ReservationRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// requireAffected turns a zero-row update into ErrReservationNotFound.
// MySQL reports zero affected rows when the values did not change, so the
// id is checked explicitly in that case.
func (r *ReservationRepo) requireAffected(ctx context.Context, res sql.Result, id string) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	ok, err := r.exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepo) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE id = ?)`, id).Scan(&exists)
	return exists, classify(err)
}

func (r *ReservationRepo) list(ctx context.Context, query string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanReservation(sc scanner) (model.Reservation, error) {
	var (
		res         model.Reservation
		status      string
		checkoutID  sql.NullString
		snapshot    []byte
		paidAt      sql.NullTime
		cancelledAt sql.NullTime
	)
	if err := sc.Scan(&res.ID, &res.UserID, &res.SessionID, &res.ScheduledDate, &status, &checkoutID,
		&snapshot, &res.BookedAt, &paidAt, &cancelledAt); err != nil {
		return model.Reservation{}, err
	}
	if err := json.Unmarshal(snapshot, &res.Session); err != nil {
		return model.Reservation{}, fmt.Errorf("decode session snapshot of %s: %w", res.ID, err)
	}
	res.Status = model.ReservationStatus(status)
	res.CheckoutID = checkoutID.String
	if paidAt.Valid {
		t := paidAt.Time
		res.PaidAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		res.CancelledAt = &t
	}
	return res, nil
}
