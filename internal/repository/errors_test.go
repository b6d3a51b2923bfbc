package repository

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestMapMySQLError(t *testing.T) {
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
	assert.ErrorIs(t, mapMySQLError(deadlock), ErrContention)
	assert.ErrorIs(t, mapMySQLError(deadlock), deadlock)

	assert.ErrorIs(t, mapMySQLError(&mysql.MySQLError{Number: 1205}), ErrContention)
	assert.ErrorIs(t, mapMySQLError(&mysql.MySQLError{Number: 1062}), ErrDuplicate)

	dupPayment := mapMySQLError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'pay_1' for key 'reservations.uq_reservations_payment_id'"})
	assert.ErrorIs(t, dupPayment, ErrDuplicatePayment)
	assert.NotErrorIs(t, dupPayment, ErrDuplicate)

	other := &mysql.MySQLError{Number: 1146}
	assert.Equal(t, error(other), mapMySQLError(other))

	plain := errors.New("connection refused")
	assert.Equal(t, plain, mapMySQLError(plain))
}
