package repository

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resort-reservation/internal/database"
	"github.com/iliyamo/resort-reservation/internal/model"
)

// Runs against a real server when RESERVATION_TEST_MYSQL_DSN is set, e.g.
// root:root@tcp(localhost:3306)/resort_test?parseTime=true&loc=UTC
func openTestRepo(t *testing.T) *ReservationRepo {
	t.Helper()
	dsn := os.Getenv("RESERVATION_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("RESERVATION_TEST_MYSQL_DSN not set")
	}
	db, err := database.OpenDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return NewReservationRepo(db)
}

func TestMySQLReservationLifecycle(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	resource := "villa-" + uuid.NewString()[:8]

	row := newRow(t, uuid.Must(uuid.NewV7()).String(), resource, "2024-06-01", "2024-06-05")
	err := repo.InTx(ctx, resource, func(tx Store) error {
		active, err := tx.FindActiveByResource(ctx, resource, "")
		if err != nil {
			return err
		}
		assert.Empty(t, active)
		return tx.Insert(ctx, row)
	})
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, row.Interval, got.Interval)
	assert.Equal(t, model.BookingPending, got.BookingStatus)
	assert.Equal(t, uint32(1), got.Version)

	stale := *got
	got.BookingStatus = model.BookingApproved
	require.NoError(t, repo.Update(ctx, got))
	assert.Equal(t, uint32(2), got.Version)
	assert.ErrorIs(t, repo.Update(ctx, &stale), ErrStaleWrite)

	reason := "expired"
	changed, err := repo.UpdateManyStatus(ctx, []string{row.ID}, model.BookingPending, model.BookingCancelled, &reason)
	require.NoError(t, err)
	assert.Empty(t, changed, "approved rows are not touched")

	list, err := repo.List(ctx, model.ReservationFilter{ResourceID: resource})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, repo.Insert(ctx, row), ErrDuplicate)
}
