package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/resort-reservation/internal/model"
)

// ReservationRepo stores reservations in MySQL.  A unit of work is a READ
// COMMITTED transaction; the per-resource lock is the resource_locks row for
// the resource, written with INSERT ... ON DUPLICATE KEY UPDATE so that the
// row exists on first use and stays exclusively locked until commit.
type ReservationRepo struct {
	db *sqlx.DB
	sqlStore
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sqlx.DB) *ReservationRepo {
	return &ReservationRepo{
		db:       db,
		sqlStore: sqlStore{q: db, now: func() time.Time { return time.Now().UTC() }},
	}
}

var _ Repository = (*ReservationRepo)(nil)

// ReservationRecord mirrors the schema of the reservations table.  It is
// used internally by the repository when scanning rows.  Business logic
// should use the model.Reservation type instead.
type ReservationRecord struct {
	ID                 string         `db:"id"`
	UserID             string         `db:"user_id"`
	ResourceID         string         `db:"resource_id"`
	StartDate          time.Time      `db:"start_date"`
	EndDate            time.Time      `db:"end_date"`
	QuotedPriceCents   int64          `db:"quoted_price_cents"`
	OfferLabel         sql.NullString `db:"offer_label"`
	BookingStatus      string         `db:"booking_status"`
	PaymentStatus      string         `db:"payment_status"`
	PaymentMethod      sql.NullString `db:"payment_method"`
	PaymentID          sql.NullString `db:"payment_id"`
	TransactionID      sql.NullString `db:"transaction_id"`
	PaymentTimestamp   sql.NullTime   `db:"payment_timestamp"`
	GuestCount         int            `db:"guest_count"`
	SpecialRequests    sql.NullString `db:"special_requests"`
	CancellationReason sql.NullString `db:"cancellation_reason"`
	Version            uint32         `db:"version"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

const reservationColumns = `id, user_id, resource_id, start_date, end_date, quoted_price_cents, offer_label,
	booking_status, payment_status, payment_method, payment_id, transaction_id, payment_timestamp,
	guest_count, special_requests, cancellation_reason, version, created_at, updated_at`

func (rec *ReservationRecord) toModel() model.Reservation {
	r := model.Reservation{
		ID:                 rec.ID,
		UserID:             rec.UserID,
		ResourceID:         rec.ResourceID,
		Interval:           model.Interval{Start: rec.StartDate.UTC(), End: rec.EndDate.UTC()},
		QuotedPriceCents:   rec.QuotedPriceCents,
		OfferLabel:         fromNullString(rec.OfferLabel),
		BookingStatus:      model.BookingStatus(rec.BookingStatus),
		PaymentStatus:      model.PaymentStatus(rec.PaymentStatus),
		PaymentID:          fromNullString(rec.PaymentID),
		TransactionID:      fromNullString(rec.TransactionID),
		GuestCount:         rec.GuestCount,
		SpecialRequests:    fromNullString(rec.SpecialRequests),
		CancellationReason: fromNullString(rec.CancellationReason),
		Version:            rec.Version,
		CreatedAt:          rec.CreatedAt.UTC(),
		UpdatedAt:          rec.UpdatedAt.UTC(),
	}
	if rec.PaymentMethod.Valid {
		m := model.PaymentMethod(rec.PaymentMethod.String)
		r.PaymentMethod = &m
	}
	if rec.PaymentTimestamp.Valid {
		ts := rec.PaymentTimestamp.Time.UTC()
		r.PaymentTimestamp = &ts
	}
	return r
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func methodArg(m *model.PaymentMethod) any {
	if m == nil {
		return nil
	}
	return string(*m)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// sqlStore implements Store over either the pool or an open transaction.
// forUpdate is set inside units of work so FindByID locks the row.
type sqlStore struct {
	q         queryer
	forUpdate bool
	now       func() time.Time
}

// InTx begins a READ COMMITTED transaction, takes the resource lock when
// resourceID is set, runs fn and commits.  Any error from fn, or a cancelled
// ctx, rolls the transaction back.
func (r *ReservationRepo) InTx(ctx context.Context, resourceID string, fn func(tx Store) error) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", mapMySQLError(err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if resourceID != "" {
		const lockQ = `INSERT INTO resource_locks (resource_id, locked_at) VALUES (?, ?)
		               ON DUPLICATE KEY UPDATE locked_at = VALUES(locked_at)`
		if _, err := tx.ExecContext(ctx, lockQ, resourceID, r.now()); err != nil {
			return fmt.Errorf("lock resource %s: %w", resourceID, mapMySQLError(err))
		}
	}

	if err := fn(&sqlStore{q: tx, forUpdate: true, now: r.now}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapMySQLError(err))
	}
	committed = true
	return nil
}

func (s *sqlStore) Insert(ctx context.Context, r *model.Reservation) error {
	if r.Version == 0 {
		r.Version = 1
	}
	const q = `INSERT INTO reservations (` + reservationColumns + `)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, q,
		r.ID, r.UserID, r.ResourceID, r.Interval.Start, r.Interval.End, r.QuotedPriceCents, r.OfferLabel,
		string(r.BookingStatus), string(r.PaymentStatus), methodArg(r.PaymentMethod), r.PaymentID, r.TransactionID, r.PaymentTimestamp,
		r.GuestCount, r.SpecialRequests, r.CancellationReason, r.Version, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", mapMySQLError(err))
	}
	return nil
}

func (s *sqlStore) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	if s.forUpdate {
		q += ` FOR UPDATE`
	}
	var rec ReservationRecord
	if err := s.q.GetContext(ctx, &rec, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find reservation: %w", mapMySQLError(err))
	}
	res := rec.toModel()
	return &res, nil
}

func (s *sqlStore) FindActiveByResource(ctx context.Context, resourceID, excludeID string) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
	      WHERE resource_id = ? AND booking_status IN ('pending','approved')`
	args := []interface{}{resourceID}
	if excludeID != "" {
		q += ` AND id <> ?`
		args = append(args, excludeID)
	}
	q += ` ORDER BY start_date, id`
	return s.selectReservations(ctx, q, args...)
}

func (s *sqlStore) Update(ctx context.Context, r *model.Reservation) error {
	now := s.now()
	const q = `UPDATE reservations
	           SET booking_status = ?, payment_status = ?, payment_method = ?, payment_id = ?,
	               transaction_id = ?, payment_timestamp = ?, guest_count = ?, special_requests = ?,
	               cancellation_reason = ?, version = version + 1, updated_at = ?
	           WHERE id = ? AND version = ?`
	res, err := s.q.ExecContext(ctx, q,
		string(r.BookingStatus), string(r.PaymentStatus), methodArg(r.PaymentMethod), r.PaymentID,
		r.TransactionID, r.PaymentTimestamp, r.GuestCount, r.SpecialRequests,
		r.CancellationReason, now,
		r.ID, r.Version,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", mapMySQLError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		err := s.q.GetContext(ctx, &exists, `SELECT COUNT(*) FROM reservations WHERE id = ?`, r.ID)
		if err != nil {
			return fmt.Errorf("update reservation: %w", mapMySQLError(err))
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrStaleWrite
	}
	r.Version++
	r.UpdatedAt = now
	return nil
}

// UpdateManyStatus runs as its own unit of work so the rows it reports are
// the rows it changed.
func (r *ReservationRepo) UpdateManyStatus(ctx context.Context, ids []string, from, to model.BookingStatus, reason *string) ([]string, error) {
	var changed []string
	err := r.InTx(ctx, "", func(tx Store) error {
		var err error
		changed, err = tx.UpdateManyStatus(ctx, ids, from, to, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

func (s *sqlStore) UpdateManyStatus(ctx context.Context, ids []string, from, to model.BookingStatus, reason *string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sel, args, err := sqlx.In(`SELECT id FROM reservations WHERE booking_status = ? AND id IN (?) ORDER BY id FOR UPDATE`,
		string(from), ids)
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var matched []string
	if err := s.q.SelectContext(ctx, &matched, s.q.Rebind(sel), args...); err != nil {
		return nil, fmt.Errorf("lock statuses: %w", mapMySQLError(err))
	}
	if len(matched) == 0 {
		return nil, nil
	}

	upd, args, err := sqlx.In(`UPDATE reservations
		SET booking_status = ?, cancellation_reason = COALESCE(?, cancellation_reason),
		    version = version + 1, updated_at = ?
		WHERE booking_status = ? AND id IN (?)`,
		string(to), reason, s.now(), string(from), matched)
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, s.q.Rebind(upd), args...); err != nil {
		return nil, fmt.Errorf("update statuses: %w", mapMySQLError(err))
	}
	return matched, nil
}

func (s *sqlStore) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	var where []string
	var args []interface{}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ResourceID != "" {
		where = append(where, "resource_id = ?")
		args = append(args, f.ResourceID)
	}
	if f.BookingStatus != "" {
		where = append(where, "booking_status = ?")
		args = append(args, string(f.BookingStatus))
	}
	if f.PaymentStatus != "" {
		where = append(where, "payment_status = ?")
		args = append(args, string(f.PaymentStatus))
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return s.selectReservations(ctx, q, args...)
}

func (s *sqlStore) selectReservations(ctx context.Context, q string, args ...interface{}) ([]model.Reservation, error) {
	var recs []ReservationRecord
	if err := s.q.SelectContext(ctx, &recs, q, args...); err != nil {
		return nil, fmt.Errorf("select reservations: %w", mapMySQLError(err))
	}
	out := make([]model.Reservation, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toModel())
	}
	return out, nil
}
