package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Local issues order ids without an external processor.  It is used for
// development and tests, and accepts every signature.
type Local struct {
	now func() time.Time
}

// NewLocal returns a Local gateway on the wall clock.
func NewLocal() *Local { return &Local{now: time.Now} }

// Name identifies the gateway in logs and payment intents.
func (l *Local) Name() string { return "local" }

// RequiresSignature is false; Local confirmations carry no signature.
func (l *Local) RequiresSignature() bool { return false }

// CreateOrder returns ORDER_<unix millis>_<last six characters of the id>.
func (l *Local) CreateOrder(ctx context.Context, reservationID string, amountCents int64, currency string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	return Order{
		ID:          fmt.Sprintf("ORDER_%d_%s", l.now().UnixMilli(), orderSuffix(reservationID)),
		AmountCents: amountCents,
		Currency:    currency,
		Receipt:     receipt(reservationID),
	}, nil
}

// VerifyPayment always succeeds.
func (l *Local) VerifyPayment(string, string, string) bool { return true }

// VerifyOrder accepts a missing order id.  A present one must carry the
// reservation's suffix.
func (l *Local) VerifyOrder(ctx context.Context, orderID, reservationID string, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if orderID == "" || strings.HasSuffix(orderID, "_"+orderSuffix(reservationID)) {
		return nil
	}
	return ErrOrderMismatch
}

func orderSuffix(reservationID string) string {
	if len(reservationID) > 6 {
		return reservationID[len(reservationID)-6:]
	}
	return reservationID
}

// New picks a gateway by name.
func New(name, keyID, keySecret string) (Gateway, error) {
	switch name {
	case "", "local":
		return NewLocal(), nil
	case "razorpay":
		if keyID == "" || keySecret == "" {
			return nil, fmt.Errorf("razorpay gateway needs RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET")
		}
		return NewRazorpay(keyID, keySecret), nil
	}
	return nil, fmt.Errorf("unknown payment gateway %q", name)
}
