package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/resort-reservation/internal/logger"
	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/queue"
	"github.com/iliyamo/resort-reservation/internal/repository"
)

// TransitionBooking moves reservation id to target under the record lock.
// Admins decide approved, rejected and pending; cancellation is open to the
// owner and admins.  Re-requesting the current status of a pending or
// approved reservation is an idempotent no-op.  Any illegal edge returns
// InvalidTransition and leaves the record untouched.
func (s *Service) TransitionBooking(ctx context.Context, id string, target model.BookingStatus, actor model.Actor, reason *string) (*model.Reservation, error) {
	const op = "TransitionBooking"
	if strings.TrimSpace(id) == "" {
		return nil, validationErr(op, "reservation id is required")
	}
	if err := s.checkTarget(op, target, actor); err != nil {
		return nil, err
	}
	note, err := optionalText(op, "cancellation reason", reason, maxCancelReasonLen)
	if err != nil {
		return nil, err
	}

	var (
		out     *model.Reservation
		prev    model.BookingStatus
		changed bool
	)
	err = s.repo.InTx(ctx, "", func(tx repository.Store) error {
		r, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanAccess(r) {
			return forbiddenErr(op, "not your reservation")
		}
		if !r.BookingStatus.CanTransitionTo(target) {
			return transitionErr(op, "cannot move booking from %s to %s", r.BookingStatus, target)
		}
		if target == model.BookingCancelled && r.PaymentStatus == model.PaymentPaid && !s.policy.AllowPaidCancellation {
			return transitionErr(op, "paid reservation cannot be cancelled")
		}
		prev = r.BookingStatus
		if r.BookingStatus == target {
			out = r
			return nil
		}
		r.BookingStatus = target
		if target == model.BookingCancelled && note != nil {
			r.CancellationReason = note
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
		s.afterCommit(ctx, queue.EventStatusChanged, out, actor, prev)
		logger.InfoLogger.WithFields(logrus.Fields{
			"reservation_id": out.ID,
			"from":           prev,
			"to":             out.BookingStatus,
			"actor":          actor.UserID,
		}).Info("booking status changed")
	}
	return out, nil
}

// checkTarget rejects unknown targets and non-admin decisions before any
// storage access.
func (s *Service) checkTarget(op string, target model.BookingStatus, actor model.Actor) error {
	if !target.IsValid() {
		return validationErr(op, "unknown booking status %q", target)
	}
	if actor.UserID == "" {
		return forbiddenErr(op, "anonymous caller")
	}
	if target != model.BookingCancelled && !actor.IsAdmin() {
		return forbiddenErr(op, "admin role required to set "+string(target))
	}
	return nil
}

// BatchItemResult is the outcome for one id of a batch.
type BatchItemResult struct {
	ID      string              `json:"id"`
	Status  model.BookingStatus `json:"status,omitempty"`
	Kind    Kind                `json:"error,omitempty"`
	Message string              `json:"message,omitempty"`
}

// BatchResult aggregates a batch transition.  ModifiedCount counts the ids
// that ended in the target status, idempotent no-ops included.
type BatchResult struct {
	ModifiedCount int               `json:"modified_count"`
	Results       []BatchItemResult `json:"results"`
}

// BatchTransitionBooking applies TransitionBooking to each distinct id in
// order.  Every id is its own unit of work, so a failure never rolls back
// the others.
func (s *Service) BatchTransitionBooking(ctx context.Context, ids []string, target model.BookingStatus, actor model.Actor) (BatchResult, error) {
	const op = "BatchTransitionBooking"
	if len(ids) == 0 {
		return BatchResult{}, validationErr(op, "ids must not be empty")
	}
	if len(ids) > maxBatchSize {
		return BatchResult{}, validationErr(op, "at most %d ids per batch", maxBatchSize)
	}
	if err := s.checkTarget(op, target, actor); err != nil {
		return BatchResult{}, err
	}

	seen := make(map[string]bool, len(ids))
	res := BatchResult{Results: make([]BatchItemResult, 0, len(ids))}
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if seen[id] {
			continue
		}
		seen[id] = true

		item := BatchItemResult{ID: id}
		r, err := s.TransitionBooking(ctx, id, target, actor, nil)
		if err != nil {
			item.Kind = KindOf(err)
			item.Message = Message(err)
		} else {
			item.Status = r.BookingStatus
			res.ModifiedCount++
		}
		res.Results = append(res.Results, item)
	}
	return res, nil
}
