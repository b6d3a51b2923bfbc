// Package repository defines error types that are reused across the
// reservation backends.  These sentinel values allow the service layer to
// distinguish a missing record from a lost optimistic-lock race or a
// storage contention abort that is safe to retry.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when no reservation has the requested id.
var ErrNotFound = errors.New("reservation not found")

// ErrStaleWrite is returned by Update when the stored version no longer
// matches the version the caller read.
var ErrStaleWrite = errors.New("stale reservation version")

// ErrContention is returned when the unit of work was aborted by the
// storage engine (deadlock, lock wait timeout, cancelled lock acquisition).
// Callers may retry the whole unit of work.
var ErrContention = errors.New("storage contention")

// ErrDuplicate is returned when inserting an id that already exists.
var ErrDuplicate = errors.New("duplicate reservation id")

// ErrDuplicatePayment is returned when a processor payment id is already
// recorded on another reservation.
var ErrDuplicatePayment = errors.New("payment id already recorded")

// paymentIDKey is the unique index on reservations.payment_id.
const paymentIDKey = "uq_reservations_payment_id"

// MySQL server error numbers mapped onto the sentinels above.
const (
	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlockDetected = 1213
)

// mapMySQLError translates driver errors into repository sentinels while
// keeping the original error in the chain.
func mapMySQLError(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlDuplicateEntry:
		if strings.Contains(me.Message, paymentIDKey) {
			return errors.Join(ErrDuplicatePayment, err)
		}
		return errors.Join(ErrDuplicate, err)
	case mysqlLockWaitTimeout, mysqlDeadlockDetected:
		return errors.Join(ErrContention, err)
	}
	return err
}
