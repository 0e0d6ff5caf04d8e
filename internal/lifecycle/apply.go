package lifecycle

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
	"github.com/iliyamo/hotel-reservation-engine/internal/penalty"
	"github.com/iliyamo/hotel-reservation-engine/internal/queue"
	"github.com/iliyamo/hotel-reservation-engine/internal/repository"
)

// Apply moves reservation id along transition t on behalf of actor.
//
// Requesting a transition whose target is the current status is a no-op
// that returns the reservation unchanged, so a retried request observes
// the outcome of the first one.  Any other transition that is not allowed
// from the current status fails with a business rule error.
func (e *Engine) Apply(ctx context.Context, id string, t model.Transition, actor model.Actor, tc TransitionContext) (*model.Reservation, error) {
	ctx, span := e.startSpan(ctx, "lifecycle.apply",
		attribute.String("reservation.id", id), attribute.String("transition", string(t)))
	defer span.End()
	fields := logrus.Fields{"reservation_id": id, "transition": t, "actor": actor.ID, "role": actor.Role}

	if !t.Valid() {
		return nil, e.fail(span, fields, apperr.Validation("unknown_transition", "unknown transition %q", t))
	}
	if err := checkActor(actor); err != nil {
		return nil, e.fail(span, fields, err)
	}

	var (
		out      model.Reservation
		events   []queue.ReservationEvent
		replayed bool
	)
	run := func(ctx context.Context) error {
		return e.store.InTx(ctx, func(tx repository.Tx) error {
			events, replayed = nil, false
			st, err := loadState(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := e.authorize(actor, st.res, t, tc); err != nil {
				return err
			}
			if to, _ := Target(t); st.res.Status == to {
				out, replayed = *st.res, true
				return nil
			}
			rec, err := e.step(ctx, tx, st, t, actor, tc, e.now())
			if err != nil {
				return err
			}
			out = *st.res
			events = append(events, transitionEvent(st, rec))
			return nil
		})
	}

	err := e.locker.WithLock(ctx, reservationKey(id), e.lockTimeout, func(ctx context.Context) error {
		if t != model.TransitionCheckOut {
			return run(ctx)
		}
		// the ledger of the owner is shared with other reservations and
		// manual adjustments, so checkout also holds the points lock
		clientID, err := e.clientOf(ctx, id)
		if err != nil {
			return err
		}
		return e.locker.WithLock(ctx, pointsKey(clientID), e.lockTimeout, run)
	})
	if err != nil {
		return nil, e.fail(span, fields, err)
	}

	if replayed {
		e.log.WithFields(fields).Debug("lifecycle: transition replayed")
	} else {
		e.log.WithFields(fields).WithField("status", out.Status).Info("lifecycle: transition applied")
	}
	span.SetStatus(codes.Ok, string(out.Status))
	e.publish(ctx, events)
	return &out, nil
}

// CancellationPreview is what a CANCEL applied now would record.
// RefundAmount is the refund obligation: the confirmed amount paid minus
// the penalty.
type CancellationPreview struct {
	penalty.Result
	BookingAmount decimal.Decimal `json:"booking_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
}

// PreviewCancellation computes the penalty of cancelling reservation id
// now without changing anything.
func (e *Engine) PreviewCancellation(ctx context.Context, id string) (*CancellationPreview, error) {
	ctx, span := e.startSpan(ctx, "lifecycle.preview_cancellation", attribute.String("reservation.id", id))
	defer span.End()

	var out CancellationPreview
	err := e.store.InTx(ctx, func(tx repository.Tx) error {
		st, err := loadState(ctx, tx, id)
		if err != nil {
			return err
		}
		if !Allowed(st.res.Status, model.TransitionCancel) {
			return apperr.BusinessRule("not_cancelable", "a %s reservation cannot be canceled", st.res.Status)
		}
		r := e.penaltyFor(st, model.TransitionCancel, e.now())
		r.RefundAmount = refundDue(st.payments, r.PenaltyAmount)
		out = CancellationPreview{
			Result:        r,
			BookingAmount: st.res.BookingAmount(),
			PaidAmount:    sumWhere(st.payments, model.PaymentConfirmed),
		}
		return nil
	})
	if err != nil {
		return nil, e.fail(span, logrus.Fields{"reservation_id": id}, err)
	}
	return &out, nil
}
