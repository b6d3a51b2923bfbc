package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resort-reservation/internal/model"
)

// Availability handles GET /v1/resources/:id/availability?start=&end=&exclude=.
// No authentication is required.
func (h *ReservationHandler) Availability(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid resource id")
	}
	iv, err := model.ParseInterval(c.QueryParam("start"), c.QueryParam("end"))
	if err != nil {
		return badRequest(c, "start and end must be YYYY-MM-DD with start before end")
	}
	free, err := h.Svc.IsAvailable(c.Request().Context(), id, iv, strings.TrimSpace(c.QueryParam("exclude")))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"resource_id": id,
		"start_date":  iv.Start.Format(model.DateLayout),
		"end_date":    iv.End.Format(model.DateLayout),
		"available":   free,
	})
}

// Calendar handles GET /v1/resources/:id/calendar.  It lists the intervals
// blocked by pending and approved reservations, in start order.
func (h *ReservationHandler) Calendar(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid resource id")
	}
	booked, err := h.Svc.BookedIntervals(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"resource_id": id, "booked": booked})
}
