package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/hotel-reservation-engine/internal/config"
	"github.com/iliyamo/hotel-reservation-engine/internal/handler"
	"github.com/iliyamo/hotel-reservation-engine/internal/middleware"
)

// API bundles the handlers mounted under /v1.
type API struct {
	Reservations *handler.ReservationHandler
	Points       *handler.PointsHandler
}

// RegisterAPI creates the /v1 group.  Every route requires a valid JWT and
// then passes the Redis token bucket, so buckets can be keyed by actor.
func RegisterAPI(e *echo.Echo, api API, jwtSecret string, rl config.RateLimitConfig, rdb redis.UniversalClient) *echo.Group {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.NewTokenBucket(rl, rdb),
	)
	RegisterReservations(g, api.Reservations)
	RegisterPoints(g, api.Points)
	return g
}
