// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the
// booking service and the handlers to distinguish between different failure
// scenarios without inspecting driver errors.  Both the MySQL repositories in
// this package and the in-memory stores in package memory return them.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrSessionNotFound is returned when a session template does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrSlotNotFound is returned when no ledger entry exists for a
// (session, date) pair.  Callers usually materialize it with Ensure first.
var ErrSlotNotFound = errors.New("slot not found")

// ErrCapacityExhausted is returned by TryReserve when the slot has no
// remaining seats.
var ErrCapacityExhausted = errors.New("capacity exhausted")

// ErrTxConflict signals a transient storage conflict (deadlock or lock wait
// timeout).  The operation did not take effect and may be retried.
var ErrTxConflict = errors.New("transaction conflict")

// ErrReservationNotFound is returned when a reservation id is unknown.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrAlreadyConfirmed is returned by MarkConfirmed when the reservation was
// confirmed earlier.  Replayed payment events hit this path.
var ErrAlreadyConfirmed = errors.New("reservation already confirmed")

// ErrReservationCancelled is returned by MarkConfirmed when the reservation
// was cancelled before the payment arrived.
var ErrReservationCancelled = errors.New("reservation cancelled")

// ErrNotPending is returned by MarkExpired when the reservation has already
// left the pending state.
var ErrNotPending = errors.New("reservation not pending")

// ErrDuplicateConfirmed is returned by MarkConfirmed when the user already
// holds another confirmed reservation for the same session and date.
var ErrDuplicateConfirmed = errors.New("duplicate confirmed reservation")

// ErrUserNotFound is returned when no local user record exists.
var ErrUserNotFound = errors.New("user not found")

// MySQL server error numbers the repositories care about.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// mysqlErrNumber extracts the server error number from err, or 0.
func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicate reports whether err is a unique key violation.
func isDuplicate(err error) bool { return mysqlErrNumber(err) == mysqlDuplicateEntry }

// classify maps deadlocks and lock wait timeouts to ErrTxConflict and
// returns every other error unchanged.
func classify(err error) error {
	switch mysqlErrNumber(err) {
	case mysqlDeadlock, mysqlLockWaitTimeout:
		return errors.Join(ErrTxConflict, err)
	}
	return err
}
