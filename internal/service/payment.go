package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/resort-reservation/internal/gateway"
	"github.com/iliyamo/resort-reservation/internal/logger"
	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/queue"
	"github.com/iliyamo/resort-reservation/internal/repository"
)

// PaymentIntent is what a client needs to open the processor checkout.
type PaymentIntent struct {
	OrderID       string         `json:"order_id"`
	ReservationID string         `json:"reservation_id"`
	AmountCents   int64          `json:"amount_cents"`
	Currency      string         `json:"currency"`
	Interval      model.Interval `json:"interval"`
	Gateway       string         `json:"gateway"`
}

// PaymentConfirmation is the processor's verdict on one attempt.
type PaymentConfirmation struct {
	Success       bool
	PaymentID     string
	TransactionID string
	Method        string
	OrderID       string
	Signature     string
}

// InitiatePayment asks the gateway for an order id.  It never mutates the
// reservation.  The booking must be approved and not yet paid or refunded.
func (s *Service) InitiatePayment(ctx context.Context, id string, actor model.Actor) (*PaymentIntent, error) {
	const op = "InitiatePayment"
	r, err := s.loadForPayment(ctx, op, id, actor)
	if err != nil {
		return nil, err
	}
	if r.BookingStatus != model.BookingApproved {
		return nil, paymentErr(op, "payment only allowed for approved bookings, booking is %s", r.BookingStatus)
	}
	switch r.PaymentStatus {
	case model.PaymentPaid:
		return nil, paymentErr(op, "booking already paid")
	case model.PaymentRefunded:
		return nil, paymentErr(op, "payment already refunded")
	}

	order, err := s.payments.CreateOrder(ctx, r.ID, r.QuotedPriceCents, s.policy.Currency)
	if err != nil {
		return nil, &Error{Kind: KindStorage, Op: op, Msg: "payment gateway unavailable", Transient: true, Err: err}
	}
	return &PaymentIntent{
		OrderID:       order.ID,
		ReservationID: r.ID,
		AmountCents:   r.QuotedPriceCents,
		Currency:      s.policy.Currency,
		Interval:      r.Interval,
		Gateway:       s.payments.Name(),
	}, nil
}

func (s *Service) loadForPayment(ctx context.Context, op, id string, actor model.Actor) (*model.Reservation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validationErr(op, "reservation id is required")
	}
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(op, err)
	}
	if !actor.CanAccess(r) {
		return nil, forbiddenErr(op, "not your reservation")
	}
	return r, nil
}

// ConfirmPayment records the outcome of a payment attempt.  Success moves
// unpaid to paid and stamps method, payment id, transaction id and
// timestamp together; failure moves unpaid to failed.  A confirmation for a
// reservation that is already paid is a no-op returning the stored record,
// so the first write wins.  A successful payment must reference an order
// the gateway issued for this reservation and amount, and its payment id
// may settle only one reservation.
func (s *Service) ConfirmPayment(ctx context.Context, id string, actor model.Actor, in PaymentConfirmation) (*model.Reservation, error) {
	const op = "ConfirmPayment"
	if strings.TrimSpace(id) == "" {
		return nil, validationErr(op, "reservation id is required")
	}
	// The payload is checked up front but reported only after the state
	// checks, so a reservation that cannot be paid always answers
	// PaymentNotAllowed whatever the payload.
	var (
		method     model.PaymentMethod
		payloadErr error
	)
	paymentID := strings.TrimSpace(in.PaymentID)
	txID := strings.TrimSpace(in.TransactionID)
	if in.Success {
		m, err := model.ParsePaymentMethod(in.Method)
		switch {
		case paymentID == "":
			payloadErr = validationErr(op, "payment id is required")
		case utf8.RuneCountInString(paymentID) > maxPaymentRefLen:
			payloadErr = validationErr(op, "payment id longer than %d characters", maxPaymentRefLen)
		case utf8.RuneCountInString(txID) > maxPaymentRefLen:
			payloadErr = validationErr(op, "transaction id longer than %d characters", maxPaymentRefLen)
		case err != nil:
			payloadErr = validationErr(op, "%v", err)
		}
		method = m
	}

	var (
		out     *model.Reservation
		changed bool
	)
	err := s.repo.InTx(ctx, "", func(tx repository.Store) error {
		r, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanAccess(r) {
			return forbiddenErr(op, "not your reservation")
		}
		if r.BookingStatus != model.BookingApproved {
			return paymentErr(op, "payment only allowed for approved bookings, booking is %s", r.BookingStatus)
		}
		switch r.PaymentStatus {
		case model.PaymentPaid:
			out = r
			return nil
		case model.PaymentRefunded:
			return paymentErr(op, "payment already refunded")
		case model.PaymentFailed:
			return paymentErr(op, "previous payment failed, retry first")
		}
		if payloadErr != nil {
			return payloadErr
		}

		if !in.Success {
			r.PaymentStatus = model.PaymentFailed
		} else {
			if s.payments.RequiresSignature() && !s.payments.VerifyPayment(in.OrderID, paymentID, in.Signature) {
				return paymentErr(op, "payment signature verification failed")
			}
			if err := s.payments.VerifyOrder(ctx, strings.TrimSpace(in.OrderID), r.ID, r.QuotedPriceCents); err != nil {
				if errors.Is(err, gateway.ErrOrderMismatch) {
					return paymentErr(op, "payment order was not issued for this reservation")
				}
				return &Error{Kind: KindStorage, Op: op, Msg: "payment gateway unavailable", Transient: true, Err: err}
			}
			if txID == "" {
				txID = paymentID
			}
			ts := s.now()
			r.PaymentStatus = model.PaymentPaid
			r.PaymentMethod = &method
			r.PaymentID = &paymentID
			r.TransactionID = &txID
			r.PaymentTimestamp = &ts
		}
		if err := tx.Update(ctx, r); err != nil {
			return err
		}
		out, changed = r, true
		return nil
	})
	if err != nil {
		return nil, storageErr(op, err)
	}

	if changed {
		typ := queue.EventPaymentConfirmed
		if out.PaymentStatus == model.PaymentFailed {
			typ = queue.EventPaymentFailed
		}
		s.afterCommit(ctx, typ, out, actor, "")
		logger.InfoLogger.WithFields(logrus.Fields{
			"reservation_id": out.ID,
			"payment_status": out.PaymentStatus,
		}).Info("payment recorded")
	}
	return out, nil
}

// RefundPayment marks a paid reservation refunded.  Admin only; the money
// movement happens at the processor.
func (s *Service) RefundPayment(ctx context.Context, id string, actor model.Actor) (*model.Reservation, error) {
	const op = "RefundPayment"
	if !actor.IsAdmin() {
		return nil, forbiddenErr(op, "admin role required")
	}
	return s.movePayment(ctx, op, id, actor, model.PaymentPaid, model.PaymentRefunded, queue.EventPaymentRefunded, false)
}

// RetryPayment resets a failed attempt to unpaid so the guest can pay again.
func (s *Service) RetryPayment(ctx context.Context, id string, actor model.Actor) (*model.Reservation, error) {
	const op = "RetryPayment"
	return s.movePayment(ctx, op, id, actor, model.PaymentFailed, model.PaymentUnpaid, queue.EventPaymentRetry, true)
}

func (s *Service) movePayment(ctx context.Context, op, id string, actor model.Actor, from, to model.PaymentStatus, event string, needApproved bool) (*model.Reservation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validationErr(op, "reservation id is required")
	}
	var out *model.Reservation
	err := s.repo.InTx(ctx, "", func(tx repository.Store) error {
		r, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanAccess(r) {
			return forbiddenErr(op, "not your reservation")
		}
		if needApproved && r.BookingStatus != model.BookingApproved {
			return paymentErr(op, "booking is %s", r.BookingStatus)
		}
		if r.PaymentStatus != from || !from.CanTransitionTo(to) {
			return paymentErr(op, "payment is %s, expected %s", r.PaymentStatus, from)
		}
		r.PaymentStatus = to
		if err := tx.Update(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, storageErr(op, err)
	}
	s.afterCommit(ctx, event, out, actor, "")
	return out, nil
}
