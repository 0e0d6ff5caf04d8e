// Package consistency keeps a Reservation, its Stay and its Payments in
// agreement.  Every write path of the lifecycle engine passes the final
// state of the three records through ValidateAndDerive before commit; the
// Stay is only ever created or advanced here.  Audit runs the same rules
// read-only and reports drift instead of failing.
package consistency

import (
	"time"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// ExpectedStay returns the stay status a reservation in status s must have.
// ok is false when the stay must be absent or NOT_STARTED.
func ExpectedStay(s model.ReservationStatus) (model.StayStatus, bool) {
	switch s {
	case model.StatusCheckedIn:
		return model.StayCheckedIn, true
	case model.StatusCheckedOut:
		return model.StayCheckedOut, true
	}
	return model.StayNotStarted, false
}

// ValidateAndDerive checks the three records against each other and
// returns the normalized reservation and stay.  A stay that lags behind
// the reservation is created or advanced; a stay that is ahead of it, or a
// payment set that contradicts the status, is a consistency violation.
// The inputs are not modified.
func ValidateAndDerive(res model.Reservation, stay *model.Stay, payments []model.Payment, now time.Time) (model.Reservation, *model.Stay, error) {
	if !res.Status.Valid() {
		return res, stay, apperr.Consistency("invalid_status", "reservation %s has unknown status %q", res.ID, res.Status)
	}
	var out *model.Stay
	if stay != nil {
		cp := *stay
		out = &cp
	}

	want, needed := ExpectedStay(res.Status)
	have := model.StayNotStarted
	if out != nil {
		have = out.Status
	}
	if have.Rank() > want.Rank() {
		return res, stay, apperr.Consistency("stay_ahead",
			"stay %s is ahead of reservation %s in %s", have, res.ID, res.Status)
	}

	if needed && have != want {
		switch want {
		case model.StayCheckedIn:
			if out == nil {
				out = &model.Stay{
					ReservationID: res.ID,
					Status:        model.StayNotStarted,
					DepositStatus: model.DepositNone,
					CreatedAt:     now,
				}
			}
			at := now
			if res.CheckinActual != nil {
				at = *res.CheckinActual
			}
			out.Status = model.StayCheckedIn
			out.CheckedInAt = &at
			out.UpdatedAt = now
		case model.StayCheckedOut:
			if have != model.StayCheckedIn {
				return res, stay, apperr.Consistency("stay_not_checked_in",
					"reservation %s cannot be checked out without a checked-in stay", res.ID)
			}
			at := now
			if res.CheckoutActual != nil {
				at = *res.CheckoutActual
			}
			out.Status = model.StayCheckedOut
			out.CheckedOutAt = &at
			if out.DepositStatus == model.DepositHeld {
				out.DepositStatus = model.DepositReleased
			}
			out.UpdatedAt = now
		}
	}

	if out != nil {
		if out.Status == model.StayCheckedIn && res.CheckinActual == nil {
			t := *out.CheckedInAt
			res.CheckinActual = &t
		}
		if out.Status == model.StayCheckedOut && res.CheckoutActual == nil {
			t := *out.CheckedOutAt
			res.CheckoutActual = &t
		}
	}

	if err := checkPayments(res, payments); err != nil {
		return res, stay, err
	}
	return res, out, nil
}

// CheckPaymentChange is the only place payment status moves are decided.
// A CONFIRMED payment may only become REFUNDED; settled payments (DENIED,
// REFUNDED, CANCELED) never move.
func CheckPaymentChange(from, to model.PaymentStatus) error {
	if !to.Valid() {
		return apperr.Validation("invalid_payment_status", "unknown payment status %q", to)
	}
	if from == to {
		return nil
	}
	ok := false
	switch from {
	case model.PaymentPending:
		ok = to == model.PaymentConfirmed || to == model.PaymentDenied || to == model.PaymentCanceled
	case model.PaymentConfirmed:
		ok = to == model.PaymentRefunded
	}
	if !ok {
		return apperr.BusinessRule("payment_status_locked", "payment cannot move from %s to %s", from, to)
	}
	return nil
}

func countPayments(payments []model.Payment) map[model.PaymentStatus]int {
	n := make(map[model.PaymentStatus]int, len(payments))
	for _, p := range payments {
		n[p.Status]++
	}
	return n
}

func checkPayments(res model.Reservation, payments []model.Payment) error {
	for _, p := range payments {
		if !p.Status.Valid() {
			return apperr.Consistency("invalid_payment_status", "payment %s has unknown status %q", p.ID, p.Status)
		}
	}
	n := countPayments(payments)
	switch res.Status {
	case model.StatusPendingPayment:
		if n[model.PaymentPending] > 0 || n[model.PaymentConfirmed] > 0 {
			return apperr.Consistency("payment_ahead",
				"reservation %s awaits payment but holds a pending or confirmed one", res.ID)
		}
	case model.StatusAwaitingProof, model.StatusUnderReview:
		if n[model.PaymentPending] == 0 && n[model.PaymentConfirmed] == 0 {
			return apperr.Consistency("payment_missing",
				"reservation %s in %s has no pending or confirmed payment", res.ID, res.Status)
		}
	case model.StatusConfirmed, model.StatusCheckedIn:
		if n[model.PaymentConfirmed] == 0 {
			return apperr.Consistency("payment_missing",
				"reservation %s in %s has no confirmed payment", res.ID, res.Status)
		}
	case model.StatusCheckedOut:
		if n[model.PaymentConfirmed] == 0 && n[model.PaymentRefunded] == 0 {
			return apperr.Consistency("payment_missing",
				"reservation %s was checked out without a settled payment", res.ID)
		}
	case model.StatusCanceled, model.StatusNoShow:
		if n[model.PaymentPending] > 0 {
			return apperr.Consistency("payment_pending",
				"reservation %s in %s still holds a pending payment", res.ID, res.Status)
		}
	}
	return nil
}
