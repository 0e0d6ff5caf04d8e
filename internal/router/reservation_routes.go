package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation-engine/internal/handler"
	"github.com/iliyamo/hotel-reservation-engine/internal/middleware"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// RegisterReservations registers the reservation lifecycle endpoints on the
// authenticated /v1 group.  Ownership and role rules beyond "authenticated"
// are enforced by the engine, except for the audit endpoint which is
// limited to front desk staff and above.
func RegisterReservations(g *echo.Group, h *handler.ReservationHandler) {
	g.POST("/reservations", h.Create)
	g.GET("/reservations/:id", h.Get)
	g.POST("/reservations/:id/transitions/:name", h.ApplyTransition)
	// Preview of the penalty and refund a cancellation would produce now
	g.GET("/reservations/:id/cancellation", h.PreviewCancellation)

	// ---- Payments ----
	g.POST("/reservations/:id/payments", h.SubmitPayment)
	g.POST("/reservations/:id/payments/:pid/refund", h.RefundPayment)

	// ---- Audit ----
	g.GET("/reservations/:id/audit", h.Audit, middleware.RequireRole(model.RoleReceptionist))
}
