// Package service is the reservation engine: availability over date
// intervals, the booking and payment state machines, and the unit-of-work
// discipline that makes check-then-insert atomic per resource.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/resort-reservation/internal/gateway"
	"github.com/iliyamo/resort-reservation/internal/logger"
	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/queue"
	"github.com/iliyamo/resort-reservation/internal/repository"
)

// ExpiredReason is recorded on pending reservations cancelled by expiry.
const ExpiredReason = "expired"

// Policy holds the engine's tunable rules.
type Policy struct {
	// PendingTTL expires pending reservations older than this; 0 disables.
	PendingTTL time.Duration
	// AllowPaidCancellation lets approved and paid reservations be
	// cancelled.  Payment status is left as paid; refunds are separate.
	AllowPaidCancellation bool
	Currency              string
	// CreateAttempts bounds retries of a create aborted by storage
	// contention.
	CreateAttempts int
	MaxStayNights  int
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{Currency: "INR", CreateAttempts: 3, MaxStayNights: 365}
}

// CalendarInvalidator is told when a resource's active set changes.
type CalendarInvalidator interface {
	InvalidateResource(ctx context.Context, resourceID string)
}

// Service orchestrates reservations.  It is safe for concurrent use.
type Service struct {
	repo     repository.Repository
	payments gateway.Gateway
	events   queue.Publisher
	calendar CalendarInvalidator
	policy   Policy
	now      func() time.Time
	newID    func() (string, error)
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCalendarInvalidator registers a cache to purge after commits.
func WithCalendarInvalidator(ci CalendarInvalidator) Option {
	return func(s *Service) { s.calendar = ci }
}

// WithIDGenerator replaces the UUIDv7 id source.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(s *Service) { s.newID = fn }
}

// New wires a Service.  A nil publisher drops events.
func New(repo repository.Repository, payments gateway.Gateway, events queue.Publisher, policy Policy, opts ...Option) *Service {
	if repo == nil || payments == nil {
		panic("nil dependency passed to service.New")
	}
	if events == nil {
		events = queue.NopPublisher{}
	}
	if policy.CreateAttempts < 1 {
		policy.CreateAttempts = 1
	}
	if policy.Currency == "" {
		policy.Currency = "INR"
	}
	s := &Service{
		repo:     repo,
		payments: payments,
		events:   events,
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
		newID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the active policy.
func (s *Service) Policy() Policy { return s.policy }

// afterCommit purges the resource's cached calendar and publishes the
// event.  Failures are logged; the reservation is already durable.
func (s *Service) afterCommit(ctx context.Context, typ string, r *model.Reservation, actor model.Actor, prev model.BookingStatus) {
	if s.calendar != nil {
		s.calendar.InvalidateResource(context.WithoutCancel(ctx), r.ResourceID)
	}
	ev := queue.NewReservationEvent(typ, r, actor.UserID, s.now())
	if prev != "" && prev != r.BookingStatus {
		ev.PreviousStatus = string(prev)
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.events.Publish(pctx, ev); err != nil {
		logger.WarnLogger.WithError(err).WithFields(logrus.Fields{
			"event":          typ,
			"reservation_id": r.ID,
		}).Warn("event publish failed")
	}
}
