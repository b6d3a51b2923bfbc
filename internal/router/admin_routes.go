package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resort-reservation/internal/handler"
	"github.com/iliyamo/resort-reservation/internal/middleware"
	"github.com/iliyamo/resort-reservation/internal/model"
)

// RegisterAdmin registers the back-office endpoints under /v1/admin.  All
// routes require the admin role.
func RegisterAdmin(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/reservations", h.ListReservations)
	g.PATCH("/reservations/status", h.BatchSetBookingStatus)
	g.POST("/reservations/expire", h.ExpireStale)
	g.POST("/reservations/:id/status", h.SetBookingStatus)
	g.POST("/reservations/:id/refund", h.RefundPayment)
}
