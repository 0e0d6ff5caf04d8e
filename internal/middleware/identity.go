package middleware

// identity.go carries the authenticated actor between JWTAuth, the rate
// limiter and the handlers.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

const actorKey = "actor"

// SetActor stores actor on the request context.
func SetActor(c echo.Context, actor model.Actor) { c.Set(actorKey, actor) }

// ActorFrom returns the actor stored by JWTAuth.  ok is false for
// unauthenticated requests.
func ActorFrom(c echo.Context) (model.Actor, bool) {
	a, ok := c.Get(actorKey).(model.Actor)
	return a, ok && a.ID != ""
}

// actorID is the rate limiter's view of the caller; "anon" when no token
// was presented.
func actorID(c echo.Context) string {
	if a, ok := ActorFrom(c); ok {
		return a.ID
	}
	return "anon"
}
