package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// RequireRole aborts with 403 unless the authenticated actor holds one of
// roles.  Staff roles are hierarchical (see model.HasRole), so
// RequireRole(model.RoleReceptionist) also admits managers and admins.  It
// must run after JWTAuth.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if ok {
				for _, r := range roles {
					if model.HasRole(actor, r) {
						return next(c)
					}
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "role not allowed"})
		}
	}
}
