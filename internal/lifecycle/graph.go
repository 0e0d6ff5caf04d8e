package lifecycle

import (
	"fmt"

	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

type edge struct {
	from []model.ReservationStatus
	to   model.ReservationStatus
}

// graph is the complete set of allowed moves.  Anything not listed here is
// rejected.
var graph = map[model.Transition]edge{
	model.TransitionRegisterPayment: {
		from: []model.ReservationStatus{model.StatusPendingPayment},
		to:   model.StatusAwaitingProof,
	},
	model.TransitionSubmitProof: {
		from: []model.ReservationStatus{model.StatusAwaitingProof},
		to:   model.StatusUnderReview,
	},
	model.TransitionApprove: {
		from: []model.ReservationStatus{model.StatusUnderReview},
		to:   model.StatusConfirmed,
	},
	model.TransitionCheckIn: {
		from: []model.ReservationStatus{model.StatusConfirmed},
		to:   model.StatusCheckedIn,
	},
	model.TransitionCheckOut: {
		from: []model.ReservationStatus{model.StatusCheckedIn},
		to:   model.StatusCheckedOut,
	},
	model.TransitionCancel: {
		from: []model.ReservationStatus{
			model.StatusPendingPayment, model.StatusAwaitingProof,
			model.StatusUnderReview, model.StatusConfirmed,
		},
		to: model.StatusCanceled,
	},
	model.TransitionNoShow: {
		from: []model.ReservationStatus{model.StatusConfirmed},
		to:   model.StatusNoShow,
	},
}

// Target returns the status a transition leads to.
func Target(t model.Transition) (model.ReservationStatus, bool) {
	e, ok := graph[t]
	return e.to, ok
}

// Allowed reports whether t may be applied to a reservation in status from.
func Allowed(from model.ReservationStatus, t model.Transition) bool {
	e, ok := graph[t]
	if !ok {
		return false
	}
	for _, f := range e.from {
		if f == from {
			return true
		}
	}
	return false
}

// ValidWalk checks that history, ordered by Seq, is a path through the
// graph starting at PENDING_PAYMENT and ending at current.
func ValidWalk(history []model.TransitionRecord, current model.ReservationStatus) error {
	at := model.StatusPendingPayment
	for i, rec := range history {
		if rec.Seq != i+1 {
			return fmt.Errorf("history entry %d has seq %d", i+1, rec.Seq)
		}
		if rec.From != at {
			return fmt.Errorf("step %d starts at %s, expected %s", rec.Seq, rec.From, at)
		}
		if !Allowed(rec.From, rec.Transition) {
			return fmt.Errorf("step %d: %s is not allowed from %s", rec.Seq, rec.Transition, rec.From)
		}
		if to, _ := Target(rec.Transition); rec.To != to {
			return fmt.Errorf("step %d: %s leads to %s, recorded %s", rec.Seq, rec.Transition, to, rec.To)
		}
		at = rec.To
	}
	if at != current {
		return fmt.Errorf("history ends at %s but reservation is %s", at, current)
	}
	return nil
}
