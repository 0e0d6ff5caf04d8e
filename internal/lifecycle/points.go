package lifecycle

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
	"github.com/iliyamo/hotel-reservation-engine/internal/loyalty"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
	"github.com/iliyamo/hotel-reservation-engine/internal/repository"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
)

// PointsAdjustment is a balance change outside checkout.  A positive Delta
// credits, a negative one debits.
type PointsAdjustment struct {
	Delta  int64              `json:"delta"`
	Reason model.LedgerReason `json:"reason"`
	Note   string             `json:"note,omitempty"`
}

func (e *Engine) canSeePoints(actor model.Actor, clientID string) bool {
	return (actor.Role == model.RoleClient && actor.ID == clientID) || e.isDesk(actor) || e.isSystem(actor)
}

// PointsBalance returns the points account of clientID.
func (e *Engine) PointsBalance(ctx context.Context, clientID string, actor model.Actor) (*model.PointsAccount, error) {
	ctx, span := e.startSpan(ctx, "lifecycle.points_balance", attribute.String("client.id", clientID))
	defer span.End()
	fields := logrus.Fields{"client_id": clientID, "actor": actor.ID, "role": actor.Role}

	if err := checkActor(actor); err != nil {
		return nil, e.fail(span, fields, err)
	}
	if !e.canSeePoints(actor, clientID) {
		return nil, e.fail(span, fields, apperr.Forbidden("points_forbidden", "cannot read another client's points"))
	}
	var acct *model.PointsAccount
	err := e.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		acct, err = tx.Account(ctx, clientID)
		if err != nil {
			return err
		}
		if acct == nil {
			return apperr.NotFound("account_not_found", "client %s has no points account", clientID)
		}
		return nil
	})
	if err != nil {
		return nil, e.fail(span, fields, err)
	}
	return acct, nil
}

// PointsLedger returns the newest ledger entries of clientID.  A zero limit
// means 50; larger values are capped at 500.
func (e *Engine) PointsLedger(ctx context.Context, clientID string, limit int, actor model.Actor) ([]model.LedgerEntry, error) {
	ctx, span := e.startSpan(ctx, "lifecycle.points_ledger", attribute.String("client.id", clientID))
	defer span.End()
	fields := logrus.Fields{"client_id": clientID, "actor": actor.ID, "role": actor.Role}

	if err := checkActor(actor); err != nil {
		return nil, e.fail(span, fields, err)
	}
	if !e.canSeePoints(actor, clientID) {
		return nil, e.fail(span, fields, apperr.Forbidden("points_forbidden", "cannot read another client's points"))
	}
	switch {
	case limit < 0:
		return nil, e.fail(span, fields, apperr.Validation("invalid_limit", "limit must not be negative"))
	case limit == 0:
		limit = defaultLedgerLimit
	case limit > maxLedgerLimit:
		limit = maxLedgerLimit
	}

	var entries []model.LedgerEntry
	err := e.store.InTx(ctx, func(tx repository.Tx) error {
		acct, err := tx.Account(ctx, clientID)
		if err != nil {
			return err
		}
		if acct == nil {
			return apperr.NotFound("account_not_found", "client %s has no points account", clientID)
		}
		entries, err = tx.LedgerEntries(ctx, clientID, limit)
		return err
	})
	if err != nil {
		return nil, e.fail(span, fields, err)
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	return entries, nil
}

// AdjustPoints books a manual adjustment, a referral bonus or a
// redemption.  Checkout accruals are only ever written by CHECK_OUT.
func (e *Engine) AdjustPoints(ctx context.Context, clientID string, adj PointsAdjustment, actor model.Actor) (*model.LedgerEntry, error) {
	ctx, span := e.startSpan(ctx, "lifecycle.adjust_points",
		attribute.String("client.id", clientID), attribute.String("reason", string(adj.Reason)))
	defer span.End()
	fields := logrus.Fields{"client_id": clientID, "reason": adj.Reason, "delta": adj.Delta, "actor": actor.ID, "role": actor.Role}

	if err := checkActor(actor); err != nil {
		return nil, e.fail(span, fields, err)
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, e.fail(span, fields, apperr.Validation("missing_client", "client id is required"))
	}
	if adj.Delta == 0 {
		return nil, e.fail(span, fields, apperr.Validation("invalid_amount", "delta must not be zero"))
	}

	var allowed bool
	switch adj.Reason {
	case model.ReasonManualAdjustment, model.ReasonReferral:
		allowed = e.isManager(actor) || e.isSystem(actor)
		if adj.Reason == model.ReasonReferral && adj.Delta < 0 {
			return nil, e.fail(span, fields, apperr.Validation("invalid_amount", "referral bonuses credit points"))
		}
	case model.ReasonRedemption:
		allowed = (actor.Role == model.RoleClient && actor.ID == clientID) || e.isDesk(actor) || e.isSystem(actor)
		if adj.Delta > 0 {
			return nil, e.fail(span, fields, apperr.Validation("invalid_amount", "redemptions debit points"))
		}
	case model.ReasonCheckoutAccrual:
		return nil, e.fail(span, fields, apperr.Validation("invalid_reason", "checkout accruals are booked by check-out"))
	default:
		return nil, e.fail(span, fields, apperr.Validation("invalid_reason", "unknown ledger reason %q", adj.Reason))
	}
	if !allowed {
		return nil, e.fail(span, fields, apperr.Forbidden("adjustment_forbidden", "%s may not book %s", actor.Role, adj.Reason))
	}

	var entry model.LedgerEntry
	err := e.locker.WithLock(ctx, pointsKey(clientID), e.lockTimeout, func(ctx context.Context) error {
		return e.store.InTx(ctx, func(tx repository.Tx) error {
			acct, err := tx.Account(ctx, clientID)
			if err != nil {
				return err
			}
			if acct == nil {
				return apperr.NotFound("account_not_found", "client %s has no points account", clientID)
			}
			p := loyalty.Posting{
				ClientID: clientID,
				Reason:   adj.Reason,
				Note:     adj.Note,
				ActorID:  actor.ID,
				At:       e.now(),
			}
			if adj.Delta > 0 {
				p.Amount = adj.Delta
				entry, _, err = loyalty.Credit(ctx, tx, p)
				return err
			}
			p.Amount = -adj.Delta
			entry, err = loyalty.Debit(ctx, tx, p)
			return err
		})
	})
	if err != nil {
		return nil, e.fail(span, fields, err)
	}
	e.log.WithFields(fields).WithField("balance", entry.BalanceAfter).Info("lifecycle: points adjusted")
	return &entry, nil
}
