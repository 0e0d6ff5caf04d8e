package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
	"github.com/iliyamo/hotel-reservation-engine/internal/consistency"
	"github.com/iliyamo/hotel-reservation-engine/internal/idempotency"
	"github.com/iliyamo/hotel-reservation-engine/internal/lifecycle"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
	"github.com/iliyamo/hotel-reservation-engine/internal/utils"
)

// Engine is the part of lifecycle.Engine the booking service drives.
type Engine interface {
	CreateReservation(ctx context.Context, in lifecycle.NewReservation, actor model.Actor) (*model.Reservation, error)
	SubmitPayment(ctx context.Context, id string, d lifecycle.PaymentDetails, actor model.Actor) (*lifecycle.PaymentOutcome, error)
	Apply(ctx context.Context, id string, t model.Transition, actor model.Actor, tc lifecycle.TransitionContext) (*model.Reservation, error)
	RefundPayment(ctx context.Context, id, paymentID string, actor model.Actor) (*model.Payment, error)
	PreviewCancellation(ctx context.Context, id string) (*lifecycle.CancellationPreview, error)
	Get(ctx context.Context, id string, actor model.Actor) (*lifecycle.View, error)
	Audit(ctx context.Context, id string, actor model.Actor) (*consistency.Report, error)
	PointsBalance(ctx context.Context, clientID string, actor model.Actor) (*model.PointsAccount, error)
	PointsLedger(ctx context.Context, clientID string, limit int, actor model.Actor) ([]model.LedgerEntry, error)
	AdjustPoints(ctx context.Context, clientID string, adj lifecycle.PointsAdjustment, actor model.Actor) (*model.LedgerEntry, error)
}

// Idempotency runs an operation at most once per key.
type Idempotency interface {
	Do(ctx context.Context, key, fingerprint string, fn func(ctx context.Context) (idempotency.Response, error)) (idempotency.Response, error)
}

// BookingService is the request façade in front of the lifecycle engine.
// Writes return an idempotency.Response holding the status and JSON body
// to send, so a retried request is answered with the exact bytes of the
// first one.  Reads pass straight through.
type BookingService struct {
	engine Engine
	idem   Idempotency
	log    logrus.FieldLogger
}

// NewBookingService wires the façade.
func NewBookingService(engine Engine, idem Idempotency, log logrus.FieldLogger) *BookingService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BookingService{engine: engine, idem: idem, log: log}
}

// write runs op under key.  Keys are scoped to the calling actor so two
// clients cannot collide on the same value.  An empty key is rejected
// before scoping when required is set; otherwise op simply runs.
func (s *BookingService) write(ctx context.Context, op, key string, required bool, actor model.Actor, request any, status int, fn func(ctx context.Context) (any, error)) (idempotency.Response, error) {
	run := func(ctx context.Context) (idempotency.Response, error) {
		out, err := fn(ctx)
		if err != nil {
			return idempotency.Response{}, err
		}
		body, err := json.Marshal(out)
		if err != nil {
			return idempotency.Response{}, fmt.Errorf("encode %s response: %w", op, err)
		}
		return idempotency.Response{Status: status, Body: body}, nil
	}
	if key == "" {
		if required {
			return idempotency.Response{}, apperr.Validation("missing_idempotency_key", "idempotency key is required")
		}
		return run(ctx)
	}

	raw, err := json.Marshal(request)
	if err != nil {
		return idempotency.Response{}, fmt.Errorf("encode %s request: %w", op, err)
	}
	resp, err := s.idem.Do(ctx, actor.ID+":"+key, idempotency.Fingerprint(op, actor.ID, string(actor.Role), string(raw)), run)
	if err != nil {
		return idempotency.Response{}, err
	}
	if resp.Replayed {
		s.log.WithFields(logrus.Fields{"operation": op, "actor": actor.ID}).Info("service: idempotent replay")
	}
	return resp, nil
}

// CreateReservation books a room.  The key is optional.
func (s *BookingService) CreateReservation(ctx context.Context, key string, in lifecycle.NewReservation, actor model.Actor) (idempotency.Response, error) {
	return s.write(ctx, "create_reservation", key, false, actor, in, http.StatusCreated, func(ctx context.Context) (any, error) {
		return s.engine.CreateReservation(ctx, in, actor)
	})
}

// SubmitPayment records a gateway result.  The key is mandatory: a payment
// retried without one could charge twice.
func (s *BookingService) SubmitPayment(ctx context.Context, id, key string, d lifecycle.PaymentDetails, actor model.Actor) (idempotency.Response, error) {
	// the fingerprint must not depend on the raw card number
	masked := d
	if masked.CardNumber != "" {
		masked.CardNumber = utils.MaskCard(masked.CardNumber)
	}
	request := struct {
		ID      string                   `json:"id"`
		Details lifecycle.PaymentDetails `json:"details"`
	}{id, masked}
	return s.write(ctx, "submit_payment", key, true, actor, request, http.StatusCreated, func(ctx context.Context) (any, error) {
		return s.engine.SubmitPayment(ctx, id, d, actor)
	})
}

// ApplyTransition applies a named transition.  The key is optional since
// the engine already treats a repeated transition as a no-op.
func (s *BookingService) ApplyTransition(ctx context.Context, id, key string, t model.Transition, actor model.Actor, tc lifecycle.TransitionContext) (idempotency.Response, error) {
	request := struct {
		ID         string                      `json:"id"`
		Transition model.Transition            `json:"transition"`
		Context    lifecycle.TransitionContext `json:"context"`
	}{id, t, tc}
	return s.write(ctx, "apply_transition", key, false, actor, request, http.StatusOK, func(ctx context.Context) (any, error) {
		return s.engine.Apply(ctx, id, t, actor, tc)
	})
}

// RefundPayment refunds one payment.  The key is optional.
func (s *BookingService) RefundPayment(ctx context.Context, id, paymentID, key string, actor model.Actor) (idempotency.Response, error) {
	request := []string{id, paymentID}
	return s.write(ctx, "refund_payment", key, false, actor, request, http.StatusOK, func(ctx context.Context) (any, error) {
		return s.engine.RefundPayment(ctx, id, paymentID, actor)
	})
}

// AdjustPoints books a manual points change.  The key is optional.
func (s *BookingService) AdjustPoints(ctx context.Context, clientID, key string, adj lifecycle.PointsAdjustment, actor model.Actor) (idempotency.Response, error) {
	request := struct {
		ClientID   string                     `json:"client_id"`
		Adjustment lifecycle.PointsAdjustment `json:"adjustment"`
	}{clientID, adj}
	return s.write(ctx, "adjust_points", key, false, actor, request, http.StatusCreated, func(ctx context.Context) (any, error) {
		return s.engine.AdjustPoints(ctx, clientID, adj, actor)
	})
}

// Reservation returns a reservation with its stay, payments and history.
func (s *BookingService) Reservation(ctx context.Context, id string, actor model.Actor) (*lifecycle.View, error) {
	return s.engine.Get(ctx, id, actor)
}

// PreviewCancellation computes what cancelling now would cost.
func (s *BookingService) PreviewCancellation(ctx context.Context, id string) (*lifecycle.CancellationPreview, error) {
	return s.engine.PreviewCancellation(ctx, id)
}

// AuditConsistency re-checks the stored records of a reservation.
func (s *BookingService) AuditConsistency(ctx context.Context, id string, actor model.Actor) (*consistency.Report, error) {
	return s.engine.Audit(ctx, id, actor)
}

// PointsBalance returns a client's points account.
func (s *BookingService) PointsBalance(ctx context.Context, clientID string, actor model.Actor) (*model.PointsAccount, error) {
	return s.engine.PointsBalance(ctx, clientID, actor)
}

// PointsLedger returns a client's newest ledger entries.  rawLimit is the
// query string value; empty means the default.
func (s *BookingService) PointsLedger(ctx context.Context, clientID, rawLimit string, actor model.Actor) ([]model.LedgerEntry, error) {
	limit := 0
	if rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil {
			return nil, apperr.Validation("invalid_limit", "limit %q is not a number", rawLimit)
		}
		limit = n
	}
	return s.engine.PointsLedger(ctx, clientID, limit, actor)
}
