package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resort-reservation/internal/model"
)

// ActorFrom returns the caller stored by JWTAuth.
func ActorFrom(c echo.Context) (model.Actor, bool) {
	a, ok := c.Get(CtxActor).(model.Actor)
	if !ok || a.UserID == "" {
		return model.Actor{}, false
	}
	return a, true
}

// userID identifies the caller for rate limit keys; "guest" when the route
// is public.
func userID(c echo.Context) string {
	if a, ok := ActorFrom(c); ok {
		return a.UserID
	}
	return "guest"
}
