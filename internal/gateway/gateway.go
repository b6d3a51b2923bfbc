// Package gateway talks to the external payment processor.  The engine only
// asks it for a correlation (order) id and checks the signature it returns
// with a completed payment; money movement stays with the processor.
package gateway

import (
	"context"
	"errors"
)

// Order is the processor-side correlation record for one payment attempt.
type Order struct {
	ID          string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
}

// Gateway is implemented by every supported payment processor.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, reservationID string, amountCents int64, currency string) (Order, error)
	// RequiresSignature reports whether ConfirmPayment must present a
	// processor signature.
	RequiresSignature() bool
	VerifyPayment(orderID, paymentID, signature string) bool
	// VerifyOrder returns ErrOrderMismatch unless orderID was issued for
	// reservationID and amountCents.
	VerifyOrder(ctx context.Context, orderID, reservationID string, amountCents int64) error
}

// ErrOrderRejected is returned when the processor answers without an order.
var ErrOrderRejected = errors.New("payment gateway rejected order")

// ErrOrderMismatch is returned when an order belongs to another reservation
// or amount.
var ErrOrderMismatch = errors.New("payment order does not match reservation")
