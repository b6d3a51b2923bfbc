package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
	"github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/resort-reservation/internal/model"
)

// Context keys set by JWTAuth.
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
	CtxRole   = "role"
	CtxActor  = "actor"
)

// JWTAuth returns an Echo middleware that validates a Bearer identity token
// issued by the identity service and injects the caller into the request
// context.  The secret must match the one used when issuing tokens.  Tokens
// must carry a non-empty "sub" and a "role" of user or admin; "email" is
// optional.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Only HMAC signatures are accepted; exp is validated by the parser.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			actor, ok := actorFromClaims(claims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set(CtxUserID, actor.UserID)
			c.Set(CtxEmail, actor.Email)
			c.Set(CtxRole, actor.Role)
			c.Set(CtxActor, actor)
			return next(c)
		}
	}
}

func actorFromClaims(claims jwt.MapClaims) (model.Actor, bool) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return model.Actor{}, false
	}
	role, _ := claims["role"].(string)
	if role != model.RoleUser && role != model.RoleAdmin {
		return model.Actor{}, false
	}
	email, _ := claims["email"].(string)
	return model.Actor{UserID: sub, Email: email, Role: role}, true
}
