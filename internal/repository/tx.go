package repository

import (
	"context"
	"database/sql"
)

// inTx runs fn inside a transaction.  The transaction is committed when fn
// returns nil and rolled back otherwise.  Deadlocks and lock wait timeouts
// surface as ErrTxConflict.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}
