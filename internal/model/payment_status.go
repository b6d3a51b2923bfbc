package model

import "fmt"

// PaymentStatus is the payment sub-state of a reservation.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnpaid:   {PaymentPaid, PaymentFailed},
	PaymentPaid:     {PaymentRefunded},
	PaymentFailed:   {PaymentUnpaid},
	PaymentRefunded: {},
}

// AllPaymentStatuses returns the statuses in declaration order.
func AllPaymentStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentUnpaid, PaymentPaid, PaymentRefunded, PaymentFailed}
}

func (s PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// CanTransitionTo reports whether the edge s -> target exists.  Booking
// preconditions are enforced by the service, not here.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, t := range paymentTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s PaymentStatus) String() string { return string(s) }

// PaymentMethod is how a guest paid.
type PaymentMethod string

const (
	MethodCard       PaymentMethod = "card"
	MethodUPI        PaymentMethod = "upi"
	MethodNetBanking PaymentMethod = "netbanking"
	MethodWallet     PaymentMethod = "wallet"
)

// ParsePaymentMethod maps an empty string to card.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case "":
		return MethodCard, nil
	case MethodCard, MethodUPI, MethodNetBanking, MethodWallet:
		return m, nil
	default:
		return "", fmt.Errorf("invalid payment method: %q", s)
	}
}
