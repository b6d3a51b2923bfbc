package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resort-reservation/internal/model"
)

func newRow(t *testing.T, id, resource, start, end string) *model.Reservation {
	t.Helper()
	iv, err := model.ParseInterval(start, end)
	require.NoError(t, err)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return &model.Reservation{
		ID:               id,
		UserID:           "u1",
		ResourceID:       resource,
		Interval:         iv,
		QuotedPriceCents: 10000,
		BookingStatus:    model.BookingPending,
		PaymentStatus:    model.PaymentUnpaid,
		GuestCount:       1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestMemoryInsertAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	row := newRow(t, "r1", "villa-1", "2024-06-01", "2024-06-05")
	require.NoError(t, repo.Insert(ctx, row))
	assert.Equal(t, uint32(1), row.Version)

	got, err := repo.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, row.Interval, got.Interval)

	got.BookingStatus = model.BookingApproved
	again, err := repo.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, again.BookingStatus, "returned rows must not alias storage")

	assert.ErrorIs(t, repo.Insert(ctx, newRow(t, "r1", "villa-1", "2024-07-01", "2024-07-02")), ErrDuplicate)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUpdateVersionCheck(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.Insert(ctx, newRow(t, "r1", "villa-1", "2024-06-01", "2024-06-05")))

	first, err := repo.FindByID(ctx, "r1")
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, "r1")
	require.NoError(t, err)

	first.BookingStatus = model.BookingApproved
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, uint32(2), first.Version)

	second.BookingStatus = model.BookingRejected
	assert.ErrorIs(t, repo.Update(ctx, second), ErrStaleWrite)

	stored, err := repo.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.BookingApproved, stored.BookingStatus)

	assert.ErrorIs(t, repo.Update(ctx, newRow(t, "nope", "villa-1", "2024-06-01", "2024-06-02")), ErrNotFound)
}

func TestMemoryRejectsReusedPaymentID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.Insert(ctx, newRow(t, "a", "villa-1", "2024-06-01", "2024-06-05")))
	require.NoError(t, repo.Insert(ctx, newRow(t, "b", "villa-2", "2024-06-01", "2024-06-05")))

	pay := func(id, paymentID string) error {
		r, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		r.PaymentStatus = model.PaymentPaid
		r.PaymentID = &paymentID
		return repo.Update(ctx, r)
	}
	require.NoError(t, pay("a", "pay_1"))
	require.NoError(t, pay("a", "pay_1"), "rewriting the owner keeps its payment id")
	assert.ErrorIs(t, pay("b", "pay_1"), ErrDuplicatePayment)

	b, err := repo.FindByID(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentUnpaid, b.PaymentStatus)
	assert.Nil(t, b.PaymentID)

	require.NoError(t, pay("b", "pay_2"))
}

func TestMemoryFindActiveByResource(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	a := newRow(t, "a", "villa-1", "2024-06-10", "2024-06-12")
	b := newRow(t, "b", "villa-1", "2024-06-01", "2024-06-05")
	c := newRow(t, "c", "villa-1", "2024-06-20", "2024-06-22")
	c.BookingStatus = model.BookingCancelled
	d := newRow(t, "d", "villa-2", "2024-06-01", "2024-06-05")
	for _, r := range []*model.Reservation{a, b, c, d} {
		require.NoError(t, repo.Insert(ctx, r))
	}

	active, err := repo.FindActiveByResource(ctx, "villa-1", "")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "b", active[0].ID)
	assert.Equal(t, "a", active[1].ID)

	active, err = repo.FindActiveByResource(ctx, "villa-1", "b")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)
}

func TestMemoryUpdateManyStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	p := newRow(t, "p", "villa-1", "2024-06-01", "2024-06-02")
	a := newRow(t, "a", "villa-1", "2024-06-03", "2024-06-04")
	a.BookingStatus = model.BookingApproved
	require.NoError(t, repo.Insert(ctx, p))
	require.NoError(t, repo.Insert(ctx, a))

	reason := "expired"
	changed, err := repo.UpdateManyStatus(ctx, []string{"a", "p", "ghost", "p"}, model.BookingPending, model.BookingCancelled, &reason)
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, changed)

	got, _ := repo.FindByID(ctx, "p")
	assert.Equal(t, model.BookingCancelled, got.BookingStatus)
	assert.Equal(t, "expired", *got.CancellationReason)
	assert.Equal(t, uint32(2), got.Version)

	got, _ = repo.FindByID(ctx, "a")
	assert.Equal(t, model.BookingApproved, got.BookingStatus)
}

func TestMemoryInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	boom := errors.New("boom")

	err := repo.InTx(ctx, "villa-1", func(tx Store) error {
		require.NoError(t, tx.Insert(ctx, newRow(t, "r1", "villa-1", "2024-06-01", "2024-06-05")))
		active, err := tx.FindActiveByResource(ctx, "villa-1", "")
		require.NoError(t, err)
		assert.Len(t, active, 1, "a unit of work sees its own staged writes")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.FindByID(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryInTxSerialisesPerResource(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.InTx(ctx, "villa-1", func(tx Store) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestMemoryInTxHonoursCancelledContext(t *testing.T) {
	repo := NewMemoryRepo()
	hold := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = repo.InTx(context.Background(), "villa-1", func(tx Store) error {
			close(entered)
			<-hold
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := repo.InTx(ctx, "villa-1", func(tx Store) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(hold)
}

func TestMemoryListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	a := newRow(t, "a", "villa-1", "2024-06-01", "2024-06-02")
	b := newRow(t, "b", "villa-2", "2024-06-01", "2024-06-02")
	b.UserID = "u2"
	b.CreatedAt = a.CreatedAt.Add(time.Hour)
	c := newRow(t, "c", "villa-1", "2024-06-05", "2024-06-06")
	c.PaymentStatus = model.PaymentFailed
	c.CreatedAt = a.CreatedAt.Add(2 * time.Hour)
	for _, r := range []*model.Reservation{a, b, c} {
		require.NoError(t, repo.Insert(ctx, r))
	}

	all, err := repo.List(ctx, model.ReservationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "newest first")

	mine, err := repo.List(ctx, model.ReservationFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	failed, err := repo.List(ctx, model.ReservationFilter{PaymentStatus: model.PaymentFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "c", failed[0].ID)

	limited, err := repo.List(ctx, model.ReservationFilter{ResourceID: "villa-1", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
