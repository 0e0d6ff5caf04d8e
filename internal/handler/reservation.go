package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation-engine/internal/lifecycle"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
	"github.com/iliyamo/hotel-reservation-engine/internal/service"
)

// ReservationHandler exposes the booking façade over HTTP.  All methods
// assume JWTAuth already ran.
type ReservationHandler struct {
	svc *service.BookingService
	errorWriter
}

// NewReservationHandler panics on a nil service, like the other
// constructors of this package.
func NewReservationHandler(svc *service.BookingService, log logrus.FieldLogger) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ReservationHandler{svc: svc, errorWriter: errorWriter{log: log}}
}

// Create handles POST /v1/reservations.  The Idempotency-Key header is
// optional.  Clients book for themselves: a missing client_id defaults to
// the caller.
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return h.write(c, err)
	}
	var body lifecycle.NewReservation
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid_body", "invalid request body")
	}
	if body.ClientID == "" && actor.Role == model.RoleClient {
		body.ClientID = actor.ID
	}
	resp, err := h.svc.CreateReservation(c.Request().Context(), idempotencyKey(c), body, actor)
	if err != nil {
		return h.write(c, err)
	}
	return writeResponse(c, resp)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return h.write(c, err)
	}
	v, err := h.svc.Reservation(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// transitionName accepts CHECK_IN, check_in and check-in.
func transitionName(raw string) model.Transition {
	return model.Transition(strings.ToUpper(strings.ReplaceAll(raw, "-", "_")))
}

// ApplyTransition handles POST /v1/reservations/:id/transitions/:name.
// The body is an optional lifecycle.TransitionContext.
func (h *ReservationHandler) ApplyTransition(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return h.write(c, err)
	}
	var tc lifecycle.TransitionContext
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&tc); err != nil {
			return badRequest(c, "invalid_body", "invalid request body")
		}
	}
	resp, err := h.svc.ApplyTransition(c.Request().Context(), c.Param("id"), idempotencyKey(c), transitionName(c.Param("name")), actor, tc)
	if err != nil {
		return h.write(c, err)
	}
	return writeResponse(c, resp)
}

// PreviewCancellation handles GET /v1/reservations/:id/cancellation.
func (h *ReservationHandler) PreviewCancellation(c echo.Context) error {
	if _, err := currentActor(c); err != nil {
		return h.write(c, err)
	}
	p, err := h.svc.PreviewCancellation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Audit handles GET /v1/reservations/:id/audit.
func (h *ReservationHandler) Audit(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return h.write(c, err)
	}
	report, err := h.svc.AuditConsistency(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// SubmitPayment handles POST /v1/reservations/:id/payments.  The
// Idempotency-Key header is mandatory.
func (h *ReservationHandler) SubmitPayment(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return h.write(c, err)
	}
	var body lifecycle.PaymentDetails
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid_body", "invalid request body")
	}
	resp, err := h.svc.SubmitPayment(c.Request().Context(), c.Param("id"), idempotencyKey(c), body, actor)
	if err != nil {
		return h.write(c, err)
	}
	return writeResponse(c, resp)
}

// RefundPayment handles POST /v1/reservations/:id/payments/:pid/refund.
func (h *ReservationHandler) RefundPayment(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return h.write(c, err)
	}
	resp, err := h.svc.RefundPayment(c.Request().Context(), c.Param("id"), c.Param("pid"), idempotencyKey(c), actor)
	if err != nil {
		return h.write(c, err)
	}
	return writeResponse(c, resp)
}
