package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/resort-reservation/internal/model"
)

// MemoryRepo is an in-process reservation store.  It backs the test suites
// and STORAGE_DRIVER=memory.  Units of work stage their writes and publish
// them in one step on commit, so readers never see a half-applied unit.
type MemoryRepo struct {
	mu    sync.RWMutex
	rows  map[string]*model.Reservation
	locks *keyLocks
	now   func() time.Time
}

// NewMemoryRepo returns an empty store.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		rows:  make(map[string]*model.Reservation),
		locks: newKeyLocks(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

var _ Repository = (*MemoryRepo)(nil)

func resourceKey(id string) string { return "resource:" + id }
func recordKey(id string) string   { return "reservation:" + id }

// Insert outside a unit of work is its own single-statement unit, as are
// Update and UpdateManyStatus.
func (m *MemoryRepo) Insert(ctx context.Context, r *model.Reservation) error {
	return m.InTx(ctx, "", func(tx Store) error { return tx.Insert(ctx, r) })
}

func (m *MemoryRepo) FindByID(_ context.Context, id string) (*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return row.Clone(), nil
}

func (m *MemoryRepo) FindActiveByResource(ctx context.Context, resourceID, excludeID string) ([]model.Reservation, error) {
	return (&memTx{repo: m}).FindActiveByResource(ctx, resourceID, excludeID)
}

func (m *MemoryRepo) Update(ctx context.Context, r *model.Reservation) error {
	return m.InTx(ctx, "", func(tx Store) error { return tx.Update(ctx, r) })
}

func (m *MemoryRepo) UpdateManyStatus(ctx context.Context, ids []string, from, to model.BookingStatus, reason *string) ([]string, error) {
	var changed []string
	err := m.InTx(ctx, "", func(tx Store) error {
		var err error
		changed, err = tx.UpdateManyStatus(ctx, ids, from, to, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

func (m *MemoryRepo) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	return (&memTx{repo: m}).List(ctx, f)
}

// InTx runs fn as one unit of work.  Locks taken inside fn are released when
// InTx returns; staged writes are published only if fn returns nil and ctx is
// still live.
func (m *MemoryRepo) InTx(ctx context.Context, resourceID string, fn func(tx Store) error) error {
	tx := &memTx{repo: m, staged: make(map[string]*model.Reservation), held: make(map[string]bool)}
	defer tx.release()

	if resourceID != "" {
		if err := tx.lock(ctx, resourceKey(resourceID)); err != nil {
			return err
		}
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPaymentIDs(tx.staged); err != nil {
		return err
	}
	for id, row := range tx.staged {
		m.rows[id] = row
	}
	return nil
}

// checkPaymentIDs enforces one reservation per payment id over the rows a
// commit would leave behind.  Caller holds mu.
func (m *MemoryRepo) checkPaymentIDs(staged map[string]*model.Reservation) error {
	owner := make(map[string]string)
	for id, row := range staged {
		if row.PaymentID == nil {
			continue
		}
		if prev, ok := owner[*row.PaymentID]; ok && prev != id {
			return ErrDuplicatePayment
		}
		owner[*row.PaymentID] = id
	}
	if len(owner) == 0 {
		return nil
	}
	for id, row := range m.rows {
		if _, replaced := staged[id]; replaced || row.PaymentID == nil {
			continue
		}
		if _, taken := owner[*row.PaymentID]; taken {
			return ErrDuplicatePayment
		}
	}
	return nil
}

// memTx is the Store handed to a unit of work.
type memTx struct {
	repo   *MemoryRepo
	staged map[string]*model.Reservation
	held   map[string]bool
	order  []string
}

func (t *memTx) lock(ctx context.Context, key string) error {
	if t.held == nil {
		return nil
	}
	if t.held[key] {
		return nil
	}
	if err := t.repo.locks.acquire(ctx, key); err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	t.held[key] = true
	t.order = append(t.order, key)
	return nil
}

func (t *memTx) release() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.repo.locks.release(t.order[i])
	}
	t.order = nil
}

// view returns the row as this unit sees it, staged writes first.
// Caller holds repo.mu for reading.
func (t *memTx) view(id string) (*model.Reservation, bool) {
	if row, ok := t.staged[id]; ok {
		return row, true
	}
	row, ok := t.repo.rows[id]
	return row, ok
}

// snapshot merges committed rows with this unit's staged rows.
func (t *memTx) snapshot() []*model.Reservation {
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	out := make([]*model.Reservation, 0, len(t.repo.rows)+len(t.staged))
	for id, row := range t.repo.rows {
		if staged, ok := t.staged[id]; ok {
			row = staged
		}
		out = append(out, row)
	}
	for id, row := range t.staged {
		if _, ok := t.repo.rows[id]; !ok {
			out = append(out, row)
		}
	}
	return out
}

func (t *memTx) Insert(ctx context.Context, r *model.Reservation) error {
	if r.ID == "" {
		return fmt.Errorf("insert: empty id")
	}
	if err := t.lock(ctx, recordKey(r.ID)); err != nil {
		return err
	}
	t.repo.mu.RLock()
	_, exists := t.view(r.ID)
	t.repo.mu.RUnlock()
	if exists {
		return ErrDuplicate
	}
	if r.Version == 0 {
		r.Version = 1
	}
	t.staged[r.ID] = r.Clone()
	return nil
}

func (t *memTx) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if err := t.lock(ctx, recordKey(id)); err != nil {
		return nil, err
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	row, ok := t.view(id)
	if !ok {
		return nil, ErrNotFound
	}
	return row.Clone(), nil
}

func (t *memTx) FindActiveByResource(_ context.Context, resourceID, excludeID string) ([]model.Reservation, error) {
	out := make([]model.Reservation, 0)
	for _, row := range t.snapshot() {
		if row.ResourceID != resourceID || row.ID == excludeID || !row.IsActive() {
			continue
		}
		out = append(out, *row.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Interval.Start.Equal(out[j].Interval.Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Interval.Start.Before(out[j].Interval.Start)
	})
	return out, nil
}

func (t *memTx) Update(ctx context.Context, r *model.Reservation) error {
	if err := t.lock(ctx, recordKey(r.ID)); err != nil {
		return err
	}
	t.repo.mu.RLock()
	cur, ok := t.view(r.ID)
	t.repo.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if cur.Version != r.Version {
		return ErrStaleWrite
	}
	r.Version++
	r.UpdatedAt = t.repo.now()
	t.staged[r.ID] = r.Clone()
	return nil
}

func (t *memTx) UpdateManyStatus(ctx context.Context, ids []string, from, to model.BookingStatus, reason *string) ([]string, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for _, id := range sorted {
		if err := t.lock(ctx, recordKey(id)); err != nil {
			return nil, err
		}
	}

	now := t.repo.now()
	var changed []string
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	for _, id := range sorted {
		cur, ok := t.view(id)
		if !ok || cur.BookingStatus != from {
			continue
		}
		next := cur.Clone()
		next.BookingStatus = to
		if reason != nil {
			v := *reason
			next.CancellationReason = &v
		}
		next.Version++
		next.UpdatedAt = now
		t.staged[id] = next
		changed = append(changed, id)
	}
	return changed, nil
}

func (t *memTx) List(_ context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	out := make([]model.Reservation, 0)
	for _, row := range t.snapshot() {
		if f.UserID != "" && row.UserID != f.UserID {
			continue
		}
		if f.ResourceID != "" && row.ResourceID != f.ResourceID {
			continue
		}
		if f.BookingStatus != "" && row.BookingStatus != f.BookingStatus {
			continue
		}
		if f.PaymentStatus != "" && row.PaymentStatus != f.PaymentStatus {
			continue
		}
		out = append(out, *row.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// keyLocks hands out one exclusive lock per key.  Acquisition honours ctx so
// a cancelled request never waits forever behind another unit of work.
type keyLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newKeyLocks() *keyLocks {
	return &keyLocks{slots: make(map[string]chan struct{})}
}

func (k *keyLocks) slot(key string) chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	ch, ok := k.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		k.slots[key] = ch
	}
	return ch
}

func (k *keyLocks) acquire(ctx context.Context, key string) error {
	select {
	case k.slot(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *keyLocks) release(key string) {
	<-k.slot(key)
}
