package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/hotel-reservation-engine/internal/handler" // import the handlers that implement business logic
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check which
// probes the given dependencies.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Check) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service and its stores are reachable.
	e.GET("/healthz", handler.Health(checks))
}
