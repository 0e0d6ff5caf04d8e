package consistency

import (
	"fmt"

	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// Snapshot is everything persisted about one reservation.
type Snapshot struct {
	Reservation model.Reservation
	Stay        *model.Stay
	Payments    []model.Payment
	// Accrual is the CHECKOUT_ACCRUAL ledger entry, if any.
	Accrual *model.LedgerEntry
}

// Report is the result of an audit.  Drift is true when Details is not
// empty.
type Report struct {
	ReservationID string   `json:"reservation_id"`
	Status        string   `json:"status"`
	Drift         bool     `json:"drift"`
	Details       []string `json:"details"`
}

func (r *Report) addf(format string, args ...any) {
	r.Details = append(r.Details, fmt.Sprintf(format, args...))
	r.Drift = true
}

// Audit reports every disagreement between the records of s.  It never
// repairs anything.
func Audit(s Snapshot) Report {
	res := s.Reservation
	rep := Report{ReservationID: res.ID, Status: string(res.Status), Details: []string{}}

	if !res.Status.Valid() {
		rep.addf("unknown reservation status %q", res.Status)
		return rep
	}

	want, needed := ExpectedStay(res.Status)
	switch {
	case s.Stay == nil && needed:
		rep.addf("reservation is %s but has no stay", res.Status)
	case s.Stay != nil && !s.Stay.Status.Valid():
		rep.addf("stay has unknown status %q", s.Stay.Status)
	case s.Stay != nil && needed && s.Stay.Status != want:
		rep.addf("stay is %s, expected %s", s.Stay.Status, want)
	case s.Stay != nil && !needed && s.Stay.Status != model.StayNotStarted:
		rep.addf("stay is %s while reservation is %s", s.Stay.Status, res.Status)
	}
	if s.Stay != nil && s.Stay.Status == model.StayCheckedOut && s.Stay.DepositStatus == model.DepositHeld {
		rep.addf("deposit still held after check-out")
	}

	if err := checkPayments(res, s.Payments); err != nil {
		rep.addf("%s", err.Error())
	}

	switch res.Status {
	case model.StatusCheckedIn:
		if res.CheckinActual == nil {
			rep.addf("checked in without an actual check-in time")
		}
	case model.StatusCheckedOut:
		if res.CheckinActual == nil || res.CheckoutActual == nil {
			rep.addf("checked out without actual check-in and check-out times")
		}
		if s.Accrual == nil {
			rep.addf("checked out without a checkout accrual entry")
		}
	case model.StatusCanceled, model.StatusNoShow:
		if res.CanceledAt == nil {
			rep.addf("%s without a cancellation time", res.Status)
		}
		if res.PenaltyRule == "" {
			rep.addf("%s without a recorded penalty rule", res.Status)
		}
		if res.PenaltyAmount.IsNegative() || res.RefundAmount.IsNegative() {
			rep.addf("negative penalty or refund amount")
		}
	}
	if res.Status != model.StatusCheckedOut && s.Accrual != nil {
		rep.addf("checkout accrual exists while reservation is %s", res.Status)
	}
	return rep
}
