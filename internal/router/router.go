package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resort-reservation/internal/handler"
	"github.com/iliyamo/resort-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated availability endpoints.  The
// calendar response is cached per resource; the service drops the entries
// whenever that resource's reservations change.
func RegisterPublic(e *echo.Echo, h *handler.ReservationHandler, cache *middleware.CalendarCache) {
	g := e.Group("/v1/resources")
	g.GET("/:id/availability", h.Availability)
	g.GET("/:id/calendar", h.Calendar, cache.Middleware())
}
