package gateway

import (
	"context"
	"fmt"

	"github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// orderAPI is the slice of the Razorpay SDK used here; tests swap it.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Razorpay creates orders through the Razorpay API and verifies the
// checkout signature HMAC-SHA256(order_id|payment_id, key_secret).
type Razorpay struct {
	orders    orderAPI
	keySecret string
}

// NewRazorpay returns a gateway backed by the Razorpay SDK client.
func NewRazorpay(keyID, keySecret string) *Razorpay {
	client := razorpay.NewClient(keyID, keySecret)
	return &Razorpay{orders: client.Order, keySecret: keySecret}
}

// Name identifies the gateway in logs and payment intents.
func (r *Razorpay) Name() string { return "razorpay" }

// RequiresSignature is true; checkout returns razorpay_signature.
func (r *Razorpay) RequiresSignature() bool { return true }

// CreateOrder registers an order for amountCents (Razorpay expects the
// amount in the currency's smallest unit) with the reservation id as
// receipt.
func (r *Razorpay) CreateOrder(ctx context.Context, reservationID string, amountCents int64, currency string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	data := map[string]interface{}{
		"amount":   amountCents,
		"currency": currency,
		"receipt":  receipt(reservationID),
		"notes":    map[string]interface{}{"reservation_id": reservationID},
	}
	body, err := r.orders.Create(data, nil)
	if err != nil {
		return Order{}, fmt.Errorf("razorpay create order: %w", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return Order{}, fmt.Errorf("%w: response without id", ErrOrderRejected)
	}
	return Order{ID: id, AmountCents: amountCents, Currency: currency, Receipt: receipt(reservationID)}, nil
}

// VerifyPayment checks the checkout signature over order_id|payment_id.
func (r *Razorpay) VerifyPayment(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return utils.VerifyWebhookSignature(orderID+"|"+paymentID, signature, r.keySecret)
}

// VerifyOrder fetches the order and compares the reservation id stored in
// its notes and its amount.
func (r *Razorpay) VerifyOrder(ctx context.Context, orderID, reservationID string, amountCents int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderMismatch)
	}
	body, err := r.orders.Fetch(orderID, nil, nil)
	if err != nil {
		return fmt.Errorf("razorpay fetch order: %w", err)
	}
	// Razorpay returns notes as an empty array when none were set.
	notes, _ := body["notes"].(map[string]interface{})
	owner, _ := notes["reservation_id"].(string)
	if owner != reservationID {
		return fmt.Errorf("%w: order %s was opened for another reservation", ErrOrderMismatch, orderID)
	}
	if amount, ok := intAmount(body["amount"]); !ok || amount != amountCents {
		return fmt.Errorf("%w: order %s amount differs", ErrOrderMismatch, orderID)
	}
	return nil
}

// intAmount reads a JSON number decoded into an interface value.
func intAmount(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), n == float64(int64(n))
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// receipt is capped at 40 characters by the Razorpay API.
func receipt(reservationID string) string {
	r := "rcpt_" + reservationID
	if len(r) > 40 {
		r = r[:40]
	}
	return r
}
