package model

import "time"

// Reservation records one guest's request to occupy one resource for one
// date interval.  Identity, resource and interval are fixed at creation;
// BookingStatus and PaymentStatus only move through their state machines.
// The payment fields are written together, once, when payment completes.
//
// Fields:
//
//	ID                 – opaque UUIDv7 assigned at creation.
//	UserID             – owning account.
//	ResourceID         – booked resort unit.
//	Interval           – half-open stay [start_date, end_date).
//	QuotedPriceCents   – price quoted at creation, minor currency units.
//	OfferLabel         – optional offer annotation.
//	BookingStatus      – pending, approved, rejected or cancelled.
//	PaymentStatus      – unpaid, paid, refunded or failed.
//	PaymentMethod      – card, upi, netbanking or wallet once paid.
//	PaymentID          – gateway payment identifier once paid.
//	TransactionID      – gateway transaction identifier once paid.
//	PaymentTimestamp   – when payment completed.
//	GuestCount         – number of guests, at least 1.
//	SpecialRequests    – optional guest note.
//	CancellationReason – optional reason recorded on cancellation.
//	Version            – optimistic locking counter bumped on every update.
//	CreatedAt          – creation timestamp.
//	UpdatedAt          – last update timestamp.
type Reservation struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"user_id"`
	ResourceID         string         `json:"resource_id"`
	Interval           Interval       `json:"interval"`
	QuotedPriceCents   int64          `json:"quoted_price_cents"`
	OfferLabel         *string        `json:"offer_label,omitempty"`
	BookingStatus      BookingStatus  `json:"booking_status"`
	PaymentStatus      PaymentStatus  `json:"payment_status"`
	PaymentMethod      *PaymentMethod `json:"payment_method"`
	PaymentID          *string        `json:"payment_id"`
	TransactionID      *string        `json:"transaction_id"`
	PaymentTimestamp   *time.Time     `json:"payment_timestamp"`
	GuestCount         int            `json:"guest_count"`
	SpecialRequests    *string        `json:"special_requests,omitempty"`
	CancellationReason *string        `json:"cancellation_reason,omitempty"`
	Version            uint32         `json:"version"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// IsActive reports whether the reservation blocks its resource's calendar.
func (r *Reservation) IsActive() bool { return r.BookingStatus.IsActive() }

// IsOwnedBy reports whether userID owns the reservation.
func (r *Reservation) IsOwnedBy(userID string) bool {
	return userID != "" && r.UserID == userID
}

// Clone returns a deep copy so callers can mutate without aliasing stored
// state.
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	c := *r
	c.OfferLabel = cloneString(r.OfferLabel)
	c.PaymentID = cloneString(r.PaymentID)
	c.TransactionID = cloneString(r.TransactionID)
	c.SpecialRequests = cloneString(r.SpecialRequests)
	c.CancellationReason = cloneString(r.CancellationReason)
	if r.PaymentMethod != nil {
		m := *r.PaymentMethod
		c.PaymentMethod = &m
	}
	if r.PaymentTimestamp != nil {
		t := *r.PaymentTimestamp
		c.PaymentTimestamp = &t
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// ReservationFilter narrows List queries.  Zero values mean "any".
type ReservationFilter struct {
	UserID        string
	ResourceID    string
	BookingStatus BookingStatus
	PaymentStatus PaymentStatus
	Limit         int
}
