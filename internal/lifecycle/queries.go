package lifecycle

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
	"github.com/iliyamo/hotel-reservation-engine/internal/consistency"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
	"github.com/iliyamo/hotel-reservation-engine/internal/repository"
)

// View is a reservation together with everything recorded against it.
type View struct {
	Reservation model.Reservation        `json:"reservation"`
	Stay        *model.Stay              `json:"stay,omitempty"`
	Payments    []model.Payment          `json:"payments"`
	History     []model.TransitionRecord `json:"history"`
}

// Get returns reservation id.  Clients only see their own reservations.
func (e *Engine) Get(ctx context.Context, id string, actor model.Actor) (*View, error) {
	ctx, span := e.startSpan(ctx, "lifecycle.get", attribute.String("reservation.id", id))
	defer span.End()
	fields := logrus.Fields{"reservation_id": id, "actor": actor.ID, "role": actor.Role}

	if err := checkActor(actor); err != nil {
		return nil, e.fail(span, fields, err)
	}
	var v View
	err := e.store.InTx(ctx, func(tx repository.Tx) error {
		st, err := loadState(ctx, tx, id)
		if err != nil {
			return err
		}
		if !e.isOwner(actor, st.res) && !e.isDesk(actor) && !e.isSystem(actor) {
			// hide other guests' bookings behind the same answer as a miss
			return apperr.NotFound("reservation_not_found", "reservation %s not found", id)
		}
		history, err := tx.Transitions(ctx, id)
		if err != nil {
			return err
		}
		v = View{Reservation: *st.res, Stay: st.stay, Payments: st.payments, History: history}
		if v.Payments == nil {
			v.Payments = []model.Payment{}
		}
		if v.History == nil {
			v.History = []model.TransitionRecord{}
		}
		return nil
	})
	if err != nil {
		return nil, e.fail(span, fields, err)
	}
	return &v, nil
}

// Audit re-checks the stored records of reservation id against the
// cross-entity rules and the transition graph.  Drift is reported, never
// repaired.
func (e *Engine) Audit(ctx context.Context, id string, actor model.Actor) (*consistency.Report, error) {
	ctx, span := e.startSpan(ctx, "lifecycle.audit", attribute.String("reservation.id", id))
	defer span.End()
	fields := logrus.Fields{"reservation_id": id, "actor": actor.ID, "role": actor.Role}

	if err := checkActor(actor); err != nil {
		return nil, e.fail(span, fields, err)
	}
	if !e.isDesk(actor) && !e.isSystem(actor) {
		return nil, e.fail(span, fields, apperr.Forbidden("audit_forbidden", "audits are restricted to hotel staff"))
	}

	var report consistency.Report
	err := e.store.InTx(ctx, func(tx repository.Tx) error {
		st, err := loadState(ctx, tx, id)
		if err != nil {
			return err
		}
		accrual, err := tx.AccrualEntry(ctx, id)
		if err != nil {
			return err
		}
		history, err := tx.Transitions(ctx, id)
		if err != nil {
			return err
		}
		report = consistency.Audit(consistency.Snapshot{
			Reservation: *st.res,
			Stay:        st.stay,
			Payments:    st.payments,
			Accrual:     accrual,
		})
		if err := ValidWalk(history, st.res.Status); err != nil {
			report.Drift = true
			report.Details = append(report.Details, fmt.Sprintf("history: %v", err))
		}
		return nil
	})
	if err != nil {
		return nil, e.fail(span, fields, err)
	}
	if report.Drift {
		e.log.WithFields(fields).WithField("details", report.Details).Error("lifecycle: drift detected")
	}
	return &report, nil
}
