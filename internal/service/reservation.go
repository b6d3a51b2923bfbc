package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/resort-reservation/internal/logger"
	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/queue"
	"github.com/iliyamo/resort-reservation/internal/repository"
)

const (
	maxIDLen           = 64
	maxOfferLen        = 128
	maxFreeTextLen     = 1000
	maxCancelReasonLen = 512
	maxPaymentRefLen   = 128
	maxGuestCount      = 50
	defaultListLimit   = 100
	maxListLimit       = 500
	maxBatchSize       = 500
)

// CreateReservationInput is the validated request to reserve a resource.
// UserID is only honoured for admins booking on behalf of a guest; other
// callers always reserve for themselves.
type CreateReservationInput struct {
	UserID           string
	ResourceID       string
	Interval         model.Interval
	QuotedPriceCents int64
	OfferLabel       *string
	GuestCount       int
	SpecialRequests  *string
}

// CreateReservation validates in and, inside one unit of work holding the
// resource lock, expires stale pending reservations when a TTL is set,
// checks for overlap and inserts a pending, unpaid reservation.  Storage
// contention aborts are retried up to Policy.CreateAttempts times; a
// Conflict is never retried.
func (s *Service) CreateReservation(ctx context.Context, actor model.Actor, in CreateReservationInput) (*model.Reservation, error) {
	const op = "CreateReservation"
	r, err := s.newReservation(op, actor, in)
	if err != nil {
		return nil, err
	}

	var expired []model.Reservation
	for attempt := 1; ; attempt++ {
		expired, err = s.insertIfAvailable(ctx, op, r)
		if err == nil || !IsTransient(err) || attempt >= s.policy.CreateAttempts || ctx.Err() != nil {
			break
		}
		logger.WarnLogger.WithError(err).WithFields(logrus.Fields{
			"resource_id": r.ResourceID,
			"attempt":     attempt,
		}).Warn("create aborted by contention, retrying")
	}
	if err != nil {
		return nil, err
	}

	for i := range expired {
		s.afterCommit(ctx, queue.EventStatusChanged, &expired[i], model.Actor{}, model.BookingPending)
	}
	s.afterCommit(ctx, queue.EventCreated, r, actor, "")
	logger.InfoLogger.WithFields(logrus.Fields{
		"reservation_id": r.ID,
		"resource_id":    r.ResourceID,
		"interval":       r.Interval.String(),
	}).Info("reservation created")
	return r.Clone(), nil
}

func (s *Service) insertIfAvailable(ctx context.Context, op string, r *model.Reservation) ([]model.Reservation, error) {
	var expired []model.Reservation
	err := s.repo.InTx(ctx, r.ResourceID, func(tx repository.Store) error {
		active, err := tx.FindActiveByResource(ctx, r.ResourceID, "")
		if err != nil {
			return err
		}
		active, expired, err = s.expireStale(ctx, tx, r.ResourceID, active)
		if err != nil {
			return err
		}
		if c := findConflict(active, r.Interval); c != nil {
			return conflictErr(op, c.Interval)
		}
		return tx.Insert(ctx, r)
	})
	if err != nil {
		return nil, storageErr(op, err)
	}
	return expired, nil
}

// expireStale cancels pending reservations older than the TTL and returns
// the remaining active set together with what was expired.  The active set
// is re-read after the update so a concurrent approval is never dropped.
func (s *Service) expireStale(ctx context.Context, tx repository.Store, resourceID string, active []model.Reservation) ([]model.Reservation, []model.Reservation, error) {
	if s.policy.PendingTTL <= 0 {
		return active, nil, nil
	}
	cutoff := s.now().Add(-s.policy.PendingTTL)
	stale := make(map[string]model.Reservation)
	var ids []string
	for _, r := range active {
		if r.BookingStatus == model.BookingPending && r.CreatedAt.Before(cutoff) {
			stale[r.ID] = r
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return active, nil, nil
	}

	reason := ExpiredReason
	changed, err := tx.UpdateManyStatus(ctx, ids, model.BookingPending, model.BookingCancelled, &reason)
	if err != nil {
		return nil, nil, err
	}
	remaining, err := tx.FindActiveByResource(ctx, resourceID, "")
	if err != nil {
		return nil, nil, err
	}
	expired := make([]model.Reservation, 0, len(changed))
	for _, id := range changed {
		r := stale[id]
		r.BookingStatus = model.BookingCancelled
		r.CancellationReason = &reason
		expired = append(expired, r)
	}
	return remaining, expired, nil
}

func (s *Service) newReservation(op string, actor model.Actor, in CreateReservationInput) (*model.Reservation, error) {
	userID := actor.UserID
	if actor.IsAdmin() && strings.TrimSpace(in.UserID) != "" {
		userID = strings.TrimSpace(in.UserID)
	}
	if userID == "" {
		return nil, validationErr(op, "user id is required")
	}
	if len(userID) > maxIDLen {
		return nil, validationErr(op, "user id is too long")
	}
	resourceID := strings.TrimSpace(in.ResourceID)
	if err := validateResourceID(op, resourceID); err != nil {
		return nil, err
	}
	if !in.Interval.Valid() {
		return nil, validationErr(op, "start date must be before end date")
	}
	if s.policy.MaxStayNights > 0 && in.Interval.Nights() > s.policy.MaxStayNights {
		return nil, validationErr(op, "stay longer than %d nights", s.policy.MaxStayNights)
	}
	if in.QuotedPriceCents <= 0 {
		return nil, validationErr(op, "quoted price must be positive")
	}
	guests := in.GuestCount
	if guests == 0 {
		guests = 1
	}
	if guests < 1 || guests > maxGuestCount {
		return nil, validationErr(op, "guest count must be between 1 and %d", maxGuestCount)
	}
	offer, err := optionalText(op, "offer label", in.OfferLabel, maxOfferLen)
	if err != nil {
		return nil, err
	}
	requests, err := optionalText(op, "special requests", in.SpecialRequests, maxFreeTextLen)
	if err != nil {
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		return nil, &Error{Kind: KindStorage, Op: op, Msg: "could not allocate id", Err: err}
	}
	now := s.now()
	return &model.Reservation{
		ID:               id,
		UserID:           userID,
		ResourceID:       resourceID,
		Interval:         in.Interval,
		QuotedPriceCents: in.QuotedPriceCents,
		OfferLabel:       offer,
		BookingStatus:    model.BookingPending,
		PaymentStatus:    model.PaymentUnpaid,
		GuestCount:       guests,
		SpecialRequests:  requests,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func validateResourceID(op, id string) error {
	if strings.TrimSpace(id) == "" {
		return validationErr(op, "resource id is required")
	}
	if len(id) > maxIDLen {
		return validationErr(op, "resource id is too long")
	}
	return nil
}

// optionalText trims v and maps blank to nil.
func optionalText(op, field string, v *string, limit int) (*string, error) {
	if v == nil {
		return nil, nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(t) > limit {
		return nil, validationErr(op, "%s longer than %d characters", field, limit)
	}
	return &t, nil
}

// GetReservation returns the reservation to its owner or an admin.
func (s *Service) GetReservation(ctx context.Context, id string, actor model.Actor) (*model.Reservation, error) {
	const op = "GetReservation"
	if strings.TrimSpace(id) == "" {
		return nil, validationErr(op, "reservation id is required")
	}
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr(op, id)
		}
		return nil, storageErr(op, err)
	}
	if !actor.CanAccess(r) {
		return nil, forbiddenErr(op, "not your reservation")
	}
	return r, nil
}

// ListReservations returns the caller's reservations, newest first.  Admins
// may list anyone's and filter by user, resource and statuses.
func (s *Service) ListReservations(ctx context.Context, actor model.Actor, f model.ReservationFilter) ([]model.Reservation, error) {
	const op = "ListReservations"
	if actor.UserID == "" {
		return nil, validationErr(op, "user id is required")
	}
	if !actor.IsAdmin() {
		f.UserID = actor.UserID
	}
	if f.BookingStatus != "" && !f.BookingStatus.IsValid() {
		return nil, validationErr(op, "unknown booking status %q", f.BookingStatus)
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.IsValid() {
		return nil, validationErr(op, "unknown payment status %q", f.PaymentStatus)
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

// ExpireStalePending cancels every pending reservation created more than
// PendingTTL ago and returns how many were expired.  It is a no-op when no
// TTL is configured.
func (s *Service) ExpireStalePending(ctx context.Context, actor model.Actor) (int64, error) {
	const op = "ExpireStalePending"
	if !actor.IsAdmin() {
		return 0, forbiddenErr(op, "admin role required")
	}
	if s.policy.PendingTTL <= 0 {
		return 0, nil
	}
	pending, err := s.repo.List(ctx, model.ReservationFilter{BookingStatus: model.BookingPending})
	if err != nil {
		return 0, storageErr(op, err)
	}
	cutoff := s.now().Add(-s.policy.PendingTTL)
	var ids []string
	for _, r := range pending {
		if r.CreatedAt.Before(cutoff) {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	reason := ExpiredReason
	changed, err := s.repo.UpdateManyStatus(ctx, ids, model.BookingPending, model.BookingCancelled, &reason)
	if err != nil {
		return 0, storageErr(op, err)
	}
	for _, id := range changed {
		r, err := s.repo.FindByID(ctx, id)
		if err != nil {
			logger.WarnLogger.WithError(err).WithField("reservation_id", id).Warn("expired reservation not reloaded, event skipped")
			continue
		}
		s.afterCommit(ctx, queue.EventStatusChanged, r, actor, model.BookingPending)
	}
	n := int64(len(changed))
	logger.InfoLogger.WithField("expired", n).Info("stale pending reservations expired")
	return n, nil
}
