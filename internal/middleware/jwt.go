package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strconv"
	"strings" // string utilities for prefix checking and trimming

	"github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
	"github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and turns its "sub" and "role" claims into a model.Actor available to
// handlers through ActorFrom.  Tokens are issued elsewhere; only HS256 with
// the shared secret is accepted.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
			if err != nil || !tok.Valid {
				return unauthorized(c, "invalid token")
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(c, "invalid claims")
			}

			actor := model.Actor{ID: subject(claims["sub"])}
			if r, ok := claims["role"].(string); ok {
				actor.Role = model.Role(strings.ToUpper(r))
			}
			if actor.ID == "" || !actor.Role.Valid() {
				return unauthorized(c, "token carries no usable subject or role")
			}
			SetActor(c, actor)
			return next(c)
		}
	}
}

// subject accepts string subjects and the numeric ids some issuers emit.
func subject(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatInt(int64(s), 10)
	}
	return ""
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": msg})
}
