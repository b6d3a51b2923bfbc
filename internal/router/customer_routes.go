package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resort-reservation/internal/handler"
	"github.com/iliyamo/resort-reservation/internal/middleware"
	"github.com/iliyamo/resort-reservation/internal/model"
)

// RegisterCustomer registers the guest endpoints under /v1.  Every route
// needs a valid token with the user or admin role; the service decides
// whether the caller owns the reservation.  Writes pass through limiter.
func RegisterCustomer(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.POST("/reservations", h.CreateReservation, limiter)
	g.GET("/my-reservations", h.ListMyReservations)
	g.GET("/reservations/:id", h.GetReservation)
	g.POST("/reservations/:id/cancel", h.CancelReservation, limiter)

	// payment lifecycle
	g.POST("/reservations/:id/payment", h.InitiatePayment, limiter)
	g.PATCH("/reservations/:id/payment", h.ConfirmPayment, limiter)
	g.POST("/reservations/:id/payment/retry", h.RetryPayment, limiter)
}
