package model

import "fmt"

// BookingStatus is the lifecycle state of a reservation.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingApproved  BookingStatus = "approved"
	BookingRejected  BookingStatus = "rejected"
	BookingCancelled BookingStatus = "cancelled"
)

// bookingTransitions lists every legal edge.  Self edges on pending and
// approved are idempotent admin re-decisions.  Rejected and cancelled are
// terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingPending, BookingApproved, BookingRejected, BookingCancelled},
	BookingApproved:  {BookingApproved, BookingCancelled},
	BookingRejected:  {},
	BookingCancelled: {},
}

// AllBookingStatuses returns the statuses in declaration order.
func AllBookingStatuses() []BookingStatus {
	return []BookingStatus{BookingPending, BookingApproved, BookingRejected, BookingCancelled}
}

// IsValid reports whether s is a known booking status.
func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// CanTransitionTo reports whether the edge s -> target exists.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsActive reports whether a reservation in this status blocks availability.
func (s BookingStatus) IsActive() bool {
	return s == BookingPending || s == BookingApproved
}

// IsTerminal reports whether no edge leaves s.
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

func (s BookingStatus) String() string { return string(s) }

// ParseBookingStatus converts s into a BookingStatus.
func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid booking status: %q", s)
	}
	return st, nil
}
