// Package queue defines the reservation events exchanged over RabbitMQ, the
// publisher the engine uses after each commit and the audit consumer that
// appends them to a log file.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/resort-reservation/internal/model"
)

// QueueName is the durable queue carrying every reservation event.
const QueueName = "reservation.events"

// Event types.
const (
	EventCreated          = "reservation.created"
	EventStatusChanged    = "reservation.status_changed"
	EventPaymentConfirmed = "payment.confirmed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
	EventPaymentRetry     = "payment.retry"
)

// ReservationEvent is published once a unit of work has committed.  It holds
// enough for downstream consumers to log or notify without querying the
// primary database.
type ReservationEvent struct {
	EventID          string  `json:"event_id"`
	Type             string  `json:"type"`
	ReservationID    string  `json:"reservation_id"`
	UserID           string  `json:"user_id"`
	ResourceID       string  `json:"resource_id"`
	StartDate        string  `json:"start_date"`
	EndDate          string  `json:"end_date"`
	Nights           int     `json:"nights"`
	BookingStatus    string  `json:"booking_status"`
	PaymentStatus    string  `json:"payment_status"`
	PreviousStatus   string  `json:"previous_status,omitempty"`
	QuotedPriceCents int64   `json:"quoted_price_cents"`
	ActorID          string  `json:"actor_id,omitempty"`
	Reason           *string `json:"reason,omitempty"`
	OccurredAt       string  `json:"occurred_at"`
}

// NewReservationEvent snapshots r for event type typ.
func NewReservationEvent(typ string, r *model.Reservation, actorID string, at time.Time) ReservationEvent {
	return ReservationEvent{
		EventID:          uuid.NewString(),
		Type:             typ,
		ReservationID:    r.ID,
		UserID:           r.UserID,
		ResourceID:       r.ResourceID,
		StartDate:        r.Interval.Start.Format(model.DateLayout),
		EndDate:          r.Interval.End.Format(model.DateLayout),
		Nights:           r.Interval.Nights(),
		BookingStatus:    string(r.BookingStatus),
		PaymentStatus:    string(r.PaymentStatus),
		QuotedPriceCents: r.QuotedPriceCents,
		ActorID:          actorID,
		Reason:           r.CancellationReason,
		OccurredAt:       at.UTC().Format(time.RFC3339),
	}
}
