package loyalty

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// Tx is the slice of a store transaction the ledger needs.  Credit and
// Debit must run inside the caller's transaction and under the caller's
// lock so the balance read and the entry append cannot interleave with
// another writer.
type Tx interface {
	// Account returns nil, nil when the client has no account yet.
	Account(ctx context.Context, clientID string) (*model.PointsAccount, error)
	// SaveAccount inserts when Version is 0, otherwise updates guarded by
	// Version.  On success Version holds the new value.
	SaveAccount(ctx context.Context, a *model.PointsAccount) error
	// AccrualEntry returns the CHECKOUT_ACCRUAL entry of a reservation, or
	// nil, nil.
	AccrualEntry(ctx context.Context, reservationID string) (*model.LedgerEntry, error)
	InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error
}

// Posting describes a requested balance change.
type Posting struct {
	ClientID      string
	Amount        int64
	Reason        model.LedgerReason
	ReservationID string
	Note          string
	ActorID       string
	At            time.Time
}

// Credit adds p.Amount points.  For CHECKOUT_ACCRUAL an existing entry for
// the same reservation is returned unchanged and created is false.
func Credit(ctx context.Context, tx Tx, p Posting) (entry model.LedgerEntry, created bool, err error) {
	if p.Amount < 0 {
		return model.LedgerEntry{}, false, apperr.Validation("invalid_amount", "credit amount must not be negative")
	}
	switch p.Reason {
	case model.ReasonCheckoutAccrual:
		if p.ReservationID == "" {
			return model.LedgerEntry{}, false, apperr.Validation("missing_reservation", "checkout accrual needs a reservation")
		}
		existing, err := tx.AccrualEntry(ctx, p.ReservationID)
		if err != nil {
			return model.LedgerEntry{}, false, fmt.Errorf("lookup accrual: %w", err)
		}
		if existing != nil {
			return *existing, false, nil
		}
	case model.ReasonManualAdjustment, model.ReasonReferral:
	default:
		return model.LedgerEntry{}, false, apperr.Validation("invalid_reason", "reason %q cannot credit points", p.Reason)
	}
	e, err := post(ctx, tx, p, p.Amount)
	return e, err == nil, err
}

// Debit removes p.Amount points and fails with InsufficientBalance when the
// balance would drop below zero.
func Debit(ctx context.Context, tx Tx, p Posting) (model.LedgerEntry, error) {
	if p.Amount <= 0 {
		return model.LedgerEntry{}, apperr.Validation("invalid_amount", "debit amount must be positive")
	}
	if p.Reason != model.ReasonRedemption && p.Reason != model.ReasonManualAdjustment {
		return model.LedgerEntry{}, apperr.Validation("invalid_reason", "reason %q cannot debit points", p.Reason)
	}
	return post(ctx, tx, p, -p.Amount)
}

func post(ctx context.Context, tx Tx, p Posting, delta int64) (model.LedgerEntry, error) {
	acct, err := tx.Account(ctx, p.ClientID)
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("load account: %w", err)
	}
	if acct == nil {
		acct = &model.PointsAccount{ClientID: p.ClientID, CreatedAt: p.At}
	}
	before := acct.Balance
	after := before + delta
	if after < 0 {
		return model.LedgerEntry{}, apperr.InsufficientBalance("insufficient_balance",
			"balance %d cannot cover %d points", before, -delta)
	}
	acct.Balance = after
	acct.UpdatedAt = p.At
	if err := tx.SaveAccount(ctx, acct); err != nil {
		return model.LedgerEntry{}, fmt.Errorf("save account: %w", err)
	}
	e := model.LedgerEntry{
		ID:            uuid.NewString(),
		ClientID:      p.ClientID,
		Seq:           acct.Version,
		Delta:         delta,
		Reason:        p.Reason,
		ReservationID: p.ReservationID,
		BalanceBefore: before,
		BalanceAfter:  after,
		Note:          p.Note,
		ActorID:       p.ActorID,
		CreatedAt:     p.At,
	}
	if err := tx.InsertLedgerEntry(ctx, &e); err != nil {
		return model.LedgerEntry{}, fmt.Errorf("append ledger entry: %w", err)
	}
	return e, nil
}
