package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resort-reservation/internal/service"
)

// InitiatePayment handles POST /v1/reservations/:id/payment.  It returns the
// processor order id the client needs for checkout; the reservation itself
// is not modified.
func (h *ReservationHandler) InitiatePayment(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	intent, err := h.Svc.InitiatePayment(c.Request().Context(), id, a)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, intent)
}

type confirmPaymentRequest struct {
	Success       *bool  `json:"success"`
	PaymentID     string `json:"payment_id"`
	TransactionID string `json:"transaction_id"`
	Method        string `json:"payment_method"`
	OrderID       string `json:"order_id"`
	Signature     string `json:"signature"`
}

// ConfirmPayment handles PATCH /v1/reservations/:id/payment with the
// processor's verdict.  Replaying a success for a paid reservation returns
// the stored record unchanged.
func (h *ReservationHandler) ConfirmPayment(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var body confirmPaymentRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Success == nil {
		return badRequest(c, "success is required")
	}
	r, err := h.Svc.ConfirmPayment(c.Request().Context(), id, a, service.PaymentConfirmation{
		Success:       *body.Success,
		PaymentID:     body.PaymentID,
		TransactionID: body.TransactionID,
		Method:        body.Method,
		OrderID:       body.OrderID,
		Signature:     body.Signature,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// RetryPayment handles POST /v1/reservations/:id/payment/retry.
func (h *ReservationHandler) RetryPayment(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	r, err := h.Svc.RetryPayment(c.Request().Context(), id, a)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// RefundPayment handles POST /v1/admin/reservations/:id/refund.
func (h *ReservationHandler) RefundPayment(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	r, err := h.Svc.RefundPayment(c.Request().Context(), id, a)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}
