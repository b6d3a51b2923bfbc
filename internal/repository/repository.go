package repository

import (
	"context"

	"github.com/iliyamo/resort-reservation/internal/model"
)

// Store is the set of reservation queries the engine needs.  Implementations
// return ErrNotFound for missing ids, ErrStaleWrite when Update loses an
// optimistic version race and ErrDuplicatePayment when a payment id would
// appear on two reservations.
type Store interface {
	Insert(ctx context.Context, r *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	// FindActiveByResource returns the pending and approved reservations of
	// resourceID, skipping excludeID when it is non-empty.
	FindActiveByResource(ctx context.Context, resourceID, excludeID string) ([]model.Reservation, error)
	// Update persists r when the stored version equals r.Version, then bumps
	// r.Version and sets r.UpdatedAt.
	Update(ctx context.Context, r *model.Reservation) error
	// UpdateManyStatus moves every id currently in status from to status to
	// and returns the ids it changed, sorted.  Rows in any other status are
	// left alone.
	UpdateManyStatus(ctx context.Context, ids []string, from, to model.BookingStatus, reason *string) ([]string, error)
	List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error)
}

// Repository adds units of work to Store.  InTx runs fn against a Store whose
// writes commit together when fn returns nil and are discarded otherwise.
// When resourceID is non-empty the resource lock is held for the whole unit,
// which serialises check-then-insert per resource.  FindByID inside a unit
// locks the record until the unit ends.
type Repository interface {
	Store
	InTx(ctx context.Context, resourceID string, fn func(tx Store) error) error
}
