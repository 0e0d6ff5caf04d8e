package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation-engine/internal/handler"
)

// RegisterPoints registers the loyalty endpoints on the authenticated /v1
// group.  Clients may read their own account; adjustments are checked per
// reason inside the engine.
func RegisterPoints(g *echo.Group, h *handler.PointsHandler) {
	g.GET("/clients/:id/points", h.Balance)
	g.GET("/clients/:id/points/ledger", h.Ledger)
	g.POST("/clients/:id/points/adjustments", h.Adjust)
}
