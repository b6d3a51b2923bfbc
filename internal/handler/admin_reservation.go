package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resort-reservation/internal/model"
)

// parseFilter reads user_id, resource_id, booking_status, payment_status and
// limit from the query string.  Statuses are validated by the service.
func parseFilter(c echo.Context) (model.ReservationFilter, error) {
	f := model.ReservationFilter{
		UserID:        strings.TrimSpace(c.QueryParam("user_id")),
		ResourceID:    strings.TrimSpace(c.QueryParam("resource_id")),
		BookingStatus: model.BookingStatus(strings.TrimSpace(c.QueryParam("booking_status"))),
		PaymentStatus: model.PaymentStatus(strings.TrimSpace(c.QueryParam("payment_status"))),
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f, nil
}

// ListReservations handles GET /v1/admin/reservations.
func (h *ReservationHandler) ListReservations(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	f, err := parseFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	items, err := h.Svc.ListReservations(c.Request().Context(), a, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

type statusRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason"`
}

// SetBookingStatus handles POST /v1/admin/reservations/:id/status.
func (h *ReservationHandler) SetBookingStatus(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var body statusRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	r, err := h.Svc.TransitionBooking(c.Request().Context(), id, model.BookingStatus(strings.TrimSpace(body.Status)), a, body.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

type batchStatusRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

// BatchSetBookingStatus handles PATCH /v1/admin/reservations/status.  It
// answers 200 with per-id results even when some ids fail.
func (h *ReservationHandler) BatchSetBookingStatus(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var body batchStatusRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Svc.BatchTransitionBooking(c.Request().Context(), body.IDs, model.BookingStatus(strings.TrimSpace(body.Status)), a)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ExpireStale handles POST /v1/admin/reservations/expire.
func (h *ReservationHandler) ExpireStale(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	n, err := h.Svc.ExpireStalePending(c.Request().Context(), a)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}
