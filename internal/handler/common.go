package handler // handler translates HTTP requests into reservation engine calls

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/resort-reservation/internal/logger"
	"github.com/iliyamo/resort-reservation/internal/middleware"
	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/service"
)

// ReservationHandler exposes the engine over HTTP.  Authentication and role
// checks are done by middleware; ownership is decided by the service.
type ReservationHandler struct {
	Svc *service.Service
}

// NewReservationHandler panics when svc is nil.
func NewReservationHandler(svc *service.Service) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc}
}

// actor returns the caller set by JWTAuth.
func actor(c echo.Context) (model.Actor, bool) {
	return middleware.ActorFrom(c)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": string(service.KindValidation), "message": msg})
}

// statusFor maps an engine error kind to its HTTP status.
func statusFor(kind service.Kind, transient bool) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindConflict, service.KindInvalidTransition:
		return http.StatusConflict
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindPaymentNotAllowed:
		return http.StatusUnprocessableEntity
	case service.KindForbidden:
		return http.StatusForbidden
	}
	if transient {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": kind, "message": text}.  Storage
// failures are logged; their cause is never sent to the client.
func writeError(c echo.Context, err error) error {
	kind := service.KindOf(err)
	status := statusFor(kind, service.IsTransient(err))
	if status >= http.StatusInternalServerError {
		logger.ErrorLogger.WithError(err).WithFields(logrus.Fields{
			"method": c.Request().Method,
			"path":   c.Path(),
		}).Error("request failed")
	}
	return c.JSON(status, echo.Map{"error": string(kind), "message": service.Message(err)})
}

// pathID returns the trimmed :id parameter.
func pathID(c echo.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	return id, id != ""
}
