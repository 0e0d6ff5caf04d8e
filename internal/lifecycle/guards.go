package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// TransitionContext carries the caller-supplied inputs of a transition.
// Fields that do not apply to the requested transition are ignored.
type TransitionContext struct {
	// Reason is recorded on CANCEL and NO_SHOW.
	Reason string `json:"reason,omitempty"`
	// WaivePenalty forces a zero penalty on CANCEL; MANAGER or above only.
	WaivePenalty bool `json:"waive_penalty,omitempty"`
	// ProofRef identifies the payment proof given with SUBMIT_PROOF.
	ProofRef string `json:"proof_ref,omitempty"`
	// Desk data captured on CHECK_IN.
	Guests       int             `json:"guests,omitempty"`
	VehiclePlate string          `json:"vehicle_plate,omitempty"`
	Deposit      decimal.Decimal `json:"deposit"`
	Note         string          `json:"note,omitempty"`
}

func (e *Engine) isOwner(actor model.Actor, res *model.Reservation) bool {
	return actor.Role == model.RoleClient && actor.ID != "" && actor.ID == res.ClientID
}

func (e *Engine) isSystem(actor model.Actor) bool { return actor.Role == model.RoleSystem }

func (e *Engine) isDesk(actor model.Actor) bool { return e.hasRole(actor, model.RoleReceptionist) }

func (e *Engine) isManager(actor model.Actor) bool { return e.hasRole(actor, model.RoleManager) }

func checkActor(actor model.Actor) error {
	if actor.ID == "" || !actor.Role.Valid() {
		return apperr.Forbidden("unknown_actor", "actor is not identified")
	}
	return nil
}

// authorize decides whether actor may request t on res.
func (e *Engine) authorize(actor model.Actor, res *model.Reservation, t model.Transition, tc TransitionContext) error {
	if err := checkActor(actor); err != nil {
		return err
	}
	var ok bool
	switch t {
	case model.TransitionRegisterPayment, model.TransitionApprove, model.TransitionNoShow:
		ok = e.isDesk(actor) || e.isSystem(actor)
	case model.TransitionSubmitProof:
		ok = e.isOwner(actor, res) || e.isDesk(actor) || e.isSystem(actor)
	case model.TransitionCheckIn, model.TransitionCheckOut:
		ok = e.isDesk(actor)
	case model.TransitionCancel:
		ok = e.isOwner(actor, res) || e.isDesk(actor) || e.isSystem(actor)
		if ok && tc.WaivePenalty && !e.isManager(actor) {
			return apperr.Forbidden("waiver_requires_manager", "waiving a cancellation penalty requires MANAGER or ADMIN")
		}
	}
	if !ok {
		return apperr.Forbidden("transition_forbidden", "%s may not apply %s", actor.Role, t)
	}
	return nil
}

// guard evaluates the precondition of t against the current records.  It
// never modifies st.
func guard(st *state, t model.Transition, tc TransitionContext, now time.Time) error {
	n := countByStatus(st.payments)
	switch t {
	case model.TransitionRegisterPayment:
		if n[model.PaymentPending] == 0 {
			return apperr.BusinessRule("payment_required", "no pending payment to register")
		}
	case model.TransitionSubmitProof:
		if tc.ProofRef == "" {
			return apperr.BusinessRule("proof_required", "a proof reference is required")
		}
		if n[model.PaymentPending] == 0 && n[model.PaymentConfirmed] == 0 {
			return apperr.BusinessRule("payment_required", "no payment to attach the proof to")
		}
	case model.TransitionApprove:
		covered := sumWhere(st.payments, model.PaymentPending, model.PaymentConfirmed)
		if covered.LessThan(st.res.BookingAmount()) {
			return apperr.BusinessRule("insufficient_payment",
				"payments of %s do not cover the booking amount %s",
				covered.StringFixed(2), st.res.BookingAmount().StringFixed(2))
		}
	case model.TransitionCheckIn:
		if n[model.PaymentConfirmed] == 0 {
			return apperr.BusinessRule("payment_not_confirmed", "check-in requires a confirmed payment")
		}
		if st.stay != nil && st.stay.Status != model.StayNotStarted {
			return apperr.BusinessRule("stay_already_started", "stay is already %s", st.stay.Status)
		}
		if tc.Guests < 0 || tc.Deposit.IsNegative() {
			return apperr.Validation("invalid_checkin_data", "guests and deposit must not be negative")
		}
	case model.TransitionCheckOut:
		if st.stay == nil || st.stay.Status != model.StayCheckedIn {
			return apperr.BusinessRule("stay_not_checked_in", "check-out requires a checked-in stay")
		}
	case model.TransitionNoShow:
		if now.Before(st.res.CheckinExpected) {
			return apperr.BusinessRule("checkin_not_due",
				"no-show can only be recorded from the expected check-in time %s",
				st.res.CheckinExpected.Format(time.RFC3339))
		}
	}
	return nil
}

func countByStatus(payments []model.Payment) map[model.PaymentStatus]int {
	n := make(map[model.PaymentStatus]int, len(payments))
	for _, p := range payments {
		n[p.Status]++
	}
	return n
}

func sumWhere(payments []model.Payment, statuses ...model.PaymentStatus) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		for _, s := range statuses {
			if p.Status == s {
				total = total.Add(p.Amount)
				break
			}
		}
	}
	return total
}
