package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// PointsRepo persists loyalty accounts and the append-only ledger.  The
// points_ledger table has no UPDATE or DELETE path.  accrual_key is set to
// the reservation id for CHECKOUT_ACCRUAL entries and left NULL otherwise,
// so its UNIQUE constraint allows one accrual per reservation.
type PointsRepo struct {
	db *sql.DB
}

// NewPointsRepo returns a new PointsRepo bound to the given database.
func NewPointsRepo(db *sql.DB) *PointsRepo { return &PointsRepo{db: db} }

const ledgerColumns = `id, client_id, seq, delta, reason, reservation_id, balance_before, balance_after,
	note, actor_id, created_at`

// AccountTx returns the account of a client, or nil when none exists.
func (r *PointsRepo) AccountTx(ctx context.Context, tx *sql.Tx, clientID string) (*model.PointsAccount, error) {
	var a model.PointsAccount
	err := tx.QueryRowContext(ctx,
		`SELECT client_id, balance, version, created_at, updated_at FROM points_accounts WHERE client_id = ?`,
		clientID).Scan(&a.ClientID, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// SaveAccountTx inserts a new account when Version is 0, otherwise updates
// the balance guarded by the version.  a.Version holds the new value on
// success.
func (r *PointsRepo) SaveAccountTx(ctx context.Context, tx *sql.Tx, a *model.PointsAccount) error {
	if a.Version == 0 {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO points_accounts (client_id, balance, version, created_at, updated_at) VALUES (?, ?, 1, ?, ?)`,
			a.ClientID, a.Balance, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		a.Version = 1
		return nil
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE points_accounts SET balance = ?, version = version + 1, updated_at = ? WHERE client_id = ? AND version = ?`,
		a.Balance, a.UpdatedAt.UTC(), a.ClientID, a.Version)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("account %s version %d: %w", a.ClientID, a.Version, ErrConflict)
	}
	a.Version++
	return nil
}

// AccrualEntryTx returns the checkout accrual of a reservation, or nil.
func (r *PointsRepo) AccrualEntryTx(ctx context.Context, tx *sql.Tx, reservationID string) (*model.LedgerEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM points_ledger WHERE accrual_key = ?`, reservationID)
	e, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load accrual: %w", err)
	}
	return e, nil
}

// InsertEntryTx appends a ledger entry.  A second CHECKOUT_ACCRUAL for the
// same reservation yields ErrDuplicate.
func (r *PointsRepo) InsertEntryTx(ctx context.Context, tx *sql.Tx, e *model.LedgerEntry) error {
	var accrualKey sql.NullString
	if e.Reason == model.ReasonCheckoutAccrual {
		existing, err := r.AccrualEntryTx(ctx, tx, e.ReservationID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("accrual for reservation %s: %w", e.ReservationID, ErrDuplicate)
		}
		accrualKey = sql.NullString{String: e.ReservationID, Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO points_ledger (`+ledgerColumns+`, accrual_key) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ClientID, e.Seq, e.Delta, string(e.Reason), e.ReservationID, e.BalanceBefore, e.BalanceAfter,
		e.Note, e.ActorID, e.CreatedAt.UTC(), accrualKey)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListEntriesTx returns up to limit entries of a client, newest first.
func (r *PointsRepo) ListEntriesTx(ctx context.Context, tx *sql.Tx, clientID string, limit int) ([]model.LedgerEntry, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM points_ledger WHERE client_id = ? ORDER BY seq DESC LIMIT ?`,
		clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()
	var out []model.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanLedgerEntry(row rowScanner) (*model.LedgerEntry, error) {
	var (
		e      model.LedgerEntry
		reason string
	)
	if err := row.Scan(&e.ID, &e.ClientID, &e.Seq, &e.Delta, &reason, &e.ReservationID,
		&e.BalanceBefore, &e.BalanceAfter, &e.Note, &e.ActorID, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Reason = model.LedgerReason(reason)
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}
