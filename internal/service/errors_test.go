package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/resort-reservation/internal/repository"
)

func TestStorageErrClassification(t *testing.T) {
	tests := []struct {
		name      string
		in        error
		kind      Kind
		transient bool
	}{
		{"not found", fmt.Errorf("find: %w", repository.ErrNotFound), KindNotFound, false},
		{"stale write", repository.ErrStaleWrite, KindStorage, true},
		{"contention", errors.Join(repository.ErrContention, errors.New("Error 1213")), KindStorage, true},
		{"reused payment id", errors.Join(repository.ErrDuplicatePayment, errors.New("Error 1062")), KindPaymentNotAllowed, false},
		{"other", errors.New("connection refused"), KindStorage, false},
		{"typed passes through", conflictErr("Create", iv(t, "2024-06-01", "2024-06-02")), KindConflict, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storageErr("op", tt.in)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.ErrorIs(t, err, tt.in)
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	err := conflictErr("CreateReservation", iv(t, "2024-06-01", "2024-06-05"))
	assert.Equal(t, "resource already reserved for [2024-06-01, 2024-06-05)", Message(err))
	assert.Equal(t, "CreateReservation: resource already reserved for [2024-06-01, 2024-06-05)", err.Error())

	wrapped := fmt.Errorf("handler: %w", forbiddenErr("GetReservation", "not your reservation"))
	assert.Equal(t, KindForbidden, KindOf(wrapped))

	plain := errors.New("boom")
	assert.Equal(t, KindStorage, KindOf(plain))
	assert.Equal(t, "internal error", Message(plain))
	assert.False(t, IsTransient(plain))
	assert.True(t, IsTransient(fmt.Errorf("x: %w", repository.ErrContention)))
}
