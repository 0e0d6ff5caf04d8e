package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"net/http" // net/http provides status codes and response helpers
	"sort"
	"time"

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Health is the health-check endpoint used by load balancers and
// monitoring systems.  It runs every check with a short deadline and
// answers 200 {"status":"ok"} or 503 with the failing dependencies.
func Health(checks map[string]Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) == 0 {
			return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
		}
		names := make([]string, 0, len(failed))
		for n := range failed {
			names = append(names, n)
		}
		sort.Strings(names)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "failing": names, "errors": failed})
	}
}
