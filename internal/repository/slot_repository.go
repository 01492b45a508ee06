package repository

import (
	"context"
	"database/sql"
	"errors"
)

// SlotRepo is the MySQL capacity ledger.  One slot_capacity row holds the
// counters for a (session, date) occurrence and slot_occupants holds one row
// per seat taken.  Every mutation locks the slot_capacity row with
// SELECT ... FOR UPDATE so concurrent bookings of the same slot serialize
// inside the database.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a new SlotRepo bound to the given database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// Ensure creates the ledger entry for a slot with full capacity if it does
// not exist.  Existing entries are left untouched.
func (r *SlotRepo) Ensure(ctx context.Context, sessionID, dateKey string, capacity int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO slot_capacity (session_id, date_key, capacity, remaining) VALUES (?, ?, ?, ?)`,
		sessionID, dateKey, capacity, capacity,
	)
	return classify(err)
}

// Remaining returns the number of free seats for a slot.
func (r *SlotRepo) Remaining(ctx context.Context, sessionID, dateKey string) (int, error) {
	var remaining int
	err := r.db.QueryRowContext(ctx,
		`SELECT remaining FROM slot_capacity WHERE session_id = ? AND date_key = ?`,
		sessionID, dateKey,
	).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrSlotNotFound
	}
	return remaining, classify(err)
}

// TryReserve takes one seat for reservationID.  The remaining counter is
// decremented and the occupant recorded in the same transaction.  Reserving
// again for a reservation that already holds a seat is a no-op.
func (r *SlotRepo) TryReserve(ctx context.Context, sessionID, dateKey, userID, reservationID string) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		var remaining int
		err := tx.QueryRowContext(ctx,
			`SELECT remaining FROM slot_capacity WHERE session_id = ? AND date_key = ? FOR UPDATE`,
			sessionID, dateKey,
		).Scan(&remaining)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSlotNotFound
		}
		if err != nil {
			return err
		}

		held, err := occupantExists(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if held {
			return nil
		}
		if remaining <= 0 {
			return ErrCapacityExhausted
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE slot_capacity SET remaining = remaining - 1 WHERE session_id = ? AND date_key = ? AND remaining > 0`,
			sessionID, dateKey,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrCapacityExhausted
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO slot_occupants (reservation_id, session_id, date_key, user_id) VALUES (?, ?, ?, ?)`,
			reservationID, sessionID, dateKey, userID,
		)
		return err
	})
}

// Release frees the seat held by reservationID.  The counter is incremented
// only when an occupant row was actually removed, so repeated releases leave
// the ledger unchanged.
func (r *SlotRepo) Release(ctx context.Context, sessionID, dateKey, reservationID string) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM slot_capacity WHERE session_id = ? AND date_key = ? FOR UPDATE`,
			sessionID, dateKey,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSlotNotFound
		}
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM slot_occupants WHERE reservation_id = ? AND session_id = ? AND date_key = ?`,
			reservationID, sessionID, dateKey,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE slot_capacity SET remaining = LEAST(capacity, remaining + 1) WHERE session_id = ? AND date_key = ?`,
			sessionID, dateKey,
		)
		return err
	})
}

func occupantExists(ctx context.Context, tx *sql.Tx, reservationID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM slot_occupants WHERE reservation_id = ?`, reservationID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
