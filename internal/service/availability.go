package service

import (
	"context"

	"github.com/iliyamo/resort-reservation/internal/model"
)

// IsAvailable reports whether candidate is free on resourceID, ignoring
// excludeID.  Pending and approved reservations block; rejected and
// cancelled ones never do.  It only reads.
func (s *Service) IsAvailable(ctx context.Context, resourceID string, candidate model.Interval, excludeID string) (bool, error) {
	const op = "IsAvailable"
	if err := validateResourceID(op, resourceID); err != nil {
		return false, err
	}
	if !candidate.Valid() {
		return false, validationErr(op, "start date must be before end date")
	}
	active, err := s.repo.FindActiveByResource(ctx, resourceID, excludeID)
	if err != nil {
		return false, storageErr(op, err)
	}
	return findConflict(active, candidate) == nil, nil
}

// BookedIntervals lists the intervals currently blocking resourceID, in
// start order, for calendar display.
func (s *Service) BookedIntervals(ctx context.Context, resourceID string) ([]model.Interval, error) {
	const op = "BookedIntervals"
	if err := validateResourceID(op, resourceID); err != nil {
		return nil, err
	}
	active, err := s.repo.FindActiveByResource(ctx, resourceID, "")
	if err != nil {
		return nil, storageErr(op, err)
	}
	out := make([]model.Interval, 0, len(active))
	for _, r := range active {
		out = append(out, r.Interval)
	}
	return out, nil
}

// findConflict returns the first active reservation overlapping candidate.
func findConflict(active []model.Reservation, candidate model.Interval) *model.Reservation {
	for i := range active {
		if active[i].IsActive() && model.Overlaps(active[i].Interval, candidate) {
			return &active[i]
		}
	}
	return nil
}
