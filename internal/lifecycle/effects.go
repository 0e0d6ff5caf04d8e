package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
	"github.com/iliyamo/hotel-reservation-engine/internal/consistency"
	"github.com/iliyamo/hotel-reservation-engine/internal/loyalty"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
	"github.com/iliyamo/hotel-reservation-engine/internal/penalty"
	"github.com/iliyamo/hotel-reservation-engine/internal/repository"
)

// step applies one transition to st inside tx and persists the result.
// The caller holds the reservation lock (and the points lock for
// CHECK_OUT) and has already authorized actor.
func (e *Engine) step(ctx context.Context, tx repository.Tx, st *state, t model.Transition, actor model.Actor, tc TransitionContext, now time.Time) (*model.TransitionRecord, error) {
	from := st.res.Status
	if !Allowed(from, t) {
		return nil, apperr.BusinessRule("invalid_transition", "%s is not allowed from %s", t, from)
	}
	to, _ := Target(t)
	if err := guard(st, t, tc, now); err != nil {
		return nil, err
	}

	if err := e.applyBefore(st, t, actor, tc, now); err != nil {
		return nil, err
	}
	st.res.Status = to
	st.res.UpdatedAt = now

	res, stay, err := consistency.ValidateAndDerive(*st.res, st.stay, st.payments, now)
	if err != nil {
		return nil, err
	}
	*st.res = res
	st.stay = stay

	if err := e.applyAfter(ctx, tx, st, t, actor, tc, now); err != nil {
		return nil, err
	}
	if err := st.persist(ctx, tx); err != nil {
		return nil, err
	}

	note := tc.Note
	switch t {
	case model.TransitionSubmitProof:
		note = "proof " + tc.ProofRef
	case model.TransitionCancel, model.TransitionNoShow:
		note = fmt.Sprintf("penalty %s (%s)", st.res.PenaltyAmount.StringFixed(2), st.res.PenaltyRule)
		if st.res.PenaltyWaivedBy != "" {
			note += " waived by " + st.res.PenaltyWaivedBy
		}
	}
	rec := &model.TransitionRecord{
		ID:            uuid.NewString(),
		ReservationID: st.res.ID,
		Transition:    t,
		From:          from,
		To:            to,
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
		Note:          note,
		CreatedAt:     now,
	}
	if err := tx.AppendTransition(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// applyBefore runs the effects that must be visible to the consistency
// layer: payment moves, actual times and the penalty decision.
func (e *Engine) applyBefore(st *state, t model.Transition, actor model.Actor, tc TransitionContext, now time.Time) error {
	switch t {
	case model.TransitionApprove:
		for i := range st.payments {
			if st.payments[i].Status == model.PaymentPending {
				if err := st.setPaymentStatus(i, model.PaymentConfirmed, now); err != nil {
					return err
				}
			}
		}
	case model.TransitionCheckIn:
		at := now
		st.res.CheckinActual = &at
	case model.TransitionCheckOut:
		at := now
		st.res.CheckoutActual = &at
	case model.TransitionCancel, model.TransitionNoShow:
		decision := e.penaltyFor(st, t, now)
		if t == model.TransitionCancel && tc.WaivePenalty {
			decision = penalty.Waive(decision, st.res.BookingAmount(), actor.ID)
		}
		st.res.PenaltyAmount = decision.PenaltyAmount
		st.res.RefundAmount = refundDue(st.payments, decision.PenaltyAmount)
		st.res.PenaltyRule = decision.RuleApplied
		st.res.PenaltyWaivedBy = decision.WaivedBy
		st.res.CancelReason = tc.Reason
		at := now
		st.res.CanceledAt = &at
		for i := range st.payments {
			if st.payments[i].Status == model.PaymentPending {
				if err := st.setPaymentStatus(i, model.PaymentCanceled, now); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// applyAfter runs the effects that need the derived stay or the ledger.
func (e *Engine) applyAfter(ctx context.Context, tx repository.Tx, st *state, t model.Transition, actor model.Actor, tc TransitionContext, now time.Time) error {
	switch t {
	case model.TransitionCheckIn:
		st.stay.Guests = tc.Guests
		st.stay.VehiclePlate = tc.VehiclePlate
		if tc.Deposit.IsPositive() {
			st.stay.DepositAmount = tc.Deposit.Round(2)
			st.stay.DepositStatus = model.DepositHeld
		}
	case model.TransitionCheckOut:
		points := loyalty.ComputePoints(st.res.SuiteType, st.res.Nights)
		// an existing accrual is returned unchanged, never credited twice
		entry, _, err := loyalty.Credit(ctx, tx, loyalty.Posting{
			ClientID:      st.res.ClientID,
			Amount:        points,
			Reason:        model.ReasonCheckoutAccrual,
			ReservationID: st.res.ID,
			Note:          fmt.Sprintf("%s, %d nights", st.res.SuiteType, st.res.Nights),
			ActorID:       actor.ID,
			At:            now,
		})
		if err != nil {
			return err
		}
		st.earned = entry.Delta
	}
	return nil
}

// penaltyFor computes the penalty t would charge now.  NO_SHOW always
// uses the RIGID table unless the reservation is NON_REFUNDABLE.
func (e *Engine) penaltyFor(st *state, t model.Transition, now time.Time) penalty.Result {
	policy := st.res.Policy
	if t == model.TransitionNoShow {
		policy = penalty.ForNoShow(policy)
	}
	return penalty.Compute(policy, now, st.res.CheckinExpected, st.res.BookingAmount())
}

// refundDue is what the guest is owed back: the confirmed amount paid
// minus the penalty, never below zero.
func refundDue(payments []model.Payment, penaltyAmount decimal.Decimal) decimal.Decimal {
	paid := sumWhere(payments, model.PaymentConfirmed)
	refund := paid.Sub(penaltyAmount)
	if refund.IsNegative() {
		return decimal.Zero
	}
	return refund.Round(2)
}
