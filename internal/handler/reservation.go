package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/service"
)

type createReservationRequest struct {
	UserID           string  `json:"user_id"`
	ResourceID       string  `json:"resource_id"`
	StartDate        string  `json:"start_date"`
	EndDate          string  `json:"end_date"`
	QuotedPriceCents int64   `json:"quoted_price_cents"`
	OfferLabel       *string `json:"offer_label"`
	GuestCount       int     `json:"guest_count"`
	SpecialRequests  *string `json:"special_requests"`
}

// CreateReservation handles POST /v1/reservations.  It returns 201 with the
// pending reservation, or 409 when the dates overlap an active one.
func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var body createReservationRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	iv, err := model.ParseInterval(body.StartDate, body.EndDate)
	if err != nil {
		return badRequest(c, "start_date and end_date must be YYYY-MM-DD with start before end")
	}
	r, err := h.Svc.CreateReservation(c.Request().Context(), a, service.CreateReservationInput{
		UserID:           body.UserID,
		ResourceID:       body.ResourceID,
		Interval:         iv,
		QuotedPriceCents: body.QuotedPriceCents,
		OfferLabel:       body.OfferLabel,
		GuestCount:       body.GuestCount,
		SpecialRequests:  body.SpecialRequests,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// ListMyReservations handles GET /v1/my-reservations.
func (h *ReservationHandler) ListMyReservations(c echo.Context) error {
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
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetReservation handles GET /v1/reservations/:id.  Other guests'
// reservations answer 403.
func (h *ReservationHandler) GetReservation(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	r, err := h.Svc.GetReservation(c.Request().Context(), id, a)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

type cancelRequest struct {
	Reason *string `json:"reason"`
}

// CancelReservation handles POST /v1/reservations/:id/cancel.  The body is
// optional.
func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var body cancelRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	r, err := h.Svc.TransitionBooking(c.Request().Context(), id, model.BookingCancelled, a, body.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}
