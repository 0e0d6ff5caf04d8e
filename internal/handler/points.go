package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation-engine/internal/lifecycle"
	"github.com/iliyamo/hotel-reservation-engine/internal/service"
)

// PointsHandler serves the loyalty endpoints under /v1/clients/:id.
type PointsHandler struct {
	svc *service.BookingService
	errorWriter
}

func NewPointsHandler(svc *service.BookingService, log logrus.FieldLogger) *PointsHandler {
	if svc == nil {
		panic("nil service passed to NewPointsHandler")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PointsHandler{svc: svc, errorWriter: errorWriter{log: log}}
}

// Balance handles GET /v1/clients/:id/points.
func (h *PointsHandler) Balance(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return h.write(c, err)
	}
	acct, err := h.svc.PointsBalance(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusOK, acct)
}

// Ledger handles GET /v1/clients/:id/points/ledger?limit=N.
func (h *PointsHandler) Ledger(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return h.write(c, err)
	}
	entries, err := h.svc.PointsLedger(c.Request().Context(), c.Param("id"), c.QueryParam("limit"), actor)
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"client_id": c.Param("id"), "entries": entries})
}

// Adjust handles POST /v1/clients/:id/points/adjustments.
func (h *PointsHandler) Adjust(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return h.write(c, err)
	}
	var body lifecycle.PointsAdjustment
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid_body", "invalid request body")
	}
	resp, err := h.svc.AdjustPoints(c.Request().Context(), c.Param("id"), idempotencyKey(c), body, actor)
	if err != nil {
		return h.write(c, err)
	}
	return writeResponse(c, resp)
}
