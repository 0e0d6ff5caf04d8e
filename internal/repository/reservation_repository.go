package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// ReservationRepo provides persistence for reservations.  Rows are never
// deleted; cancellation is a status.  All timestamps are stored in UTC and
// money as integer cents.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, code, client_id, room_id, suite_type, policy, rate_cents, nights,
	checkin_expected, checkout_expected, checkin_actual, checkout_actual, status,
	cancel_reason, canceled_at, penalty_cents, refund_cents, penalty_rule, penalty_waived_by,
	version, created_at, updated_at`

// CreateTx inserts a new reservation within the scope of an existing
// transaction.  Version is set to 1.  A duplicate id or code yields
// ErrDuplicate.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE id = ? OR code = ?`, res.ID, res.Code).Scan(&n); err != nil {
		return fmt.Errorf("check reservation key: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("reservation %s/%s: %w", res.ID, res.Code, ErrDuplicate)
	}
	res.Version = 1
	const q = `INSERT INTO reservations (` + reservationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		res.ID, res.Code, res.ClientID, res.RoomID, string(res.SuiteType), string(res.Policy),
		toCents(res.RatePerNight), res.Nights,
		res.CheckinExpected.UTC(), res.CheckoutExpected.UTC(),
		nullTime(res.CheckinActual), nullTime(res.CheckoutActual), string(res.Status),
		res.CancelReason, nullTime(res.CanceledAt),
		toCents(res.PenaltyAmount), toCents(res.RefundAmount), res.PenaltyRule, res.PenaltyWaivedBy,
		res.Version, res.CreatedAt.UTC(), res.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// GetTx loads a reservation by id.  Unknown ids yield an apperr not-found
// error.
func (r *ReservationRepo) GetTx(ctx context.Context, tx *sql.Tx, id string) (*model.Reservation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reservationNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	return res, nil
}

// UpdateTx writes every mutable column, guarded by the version read
// earlier in the same unit of work.  On success res.Version is bumped.
func (r *ReservationRepo) UpdateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `UPDATE reservations SET
		checkin_actual = ?, checkout_actual = ?, status = ?, cancel_reason = ?, canceled_at = ?,
		penalty_cents = ?, refund_cents = ?, penalty_rule = ?, penalty_waived_by = ?,
		version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, q,
		nullTime(res.CheckinActual), nullTime(res.CheckoutActual), string(res.Status),
		res.CancelReason, nullTime(res.CanceledAt),
		toCents(res.PenaltyAmount), toCents(res.RefundAmount), res.PenaltyRule, res.PenaltyWaivedBy,
		res.UpdatedAt.UTC(), res.ID, res.Version,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("reservation %s version %d: %w", res.ID, res.Version, ErrConflict)
	}
	res.Version++
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res                                  model.Reservation
		suite, policy, status                string
		rateCents, penaltyCents, refundCents int64
		checkinActual, checkoutActual        sql.NullTime
		canceledAt                           sql.NullTime
	)
	err := row.Scan(
		&res.ID, &res.Code, &res.ClientID, &res.RoomID, &suite, &policy, &rateCents, &res.Nights,
		&res.CheckinExpected, &res.CheckoutExpected, &checkinActual, &checkoutActual, &status,
		&res.CancelReason, &canceledAt, &penaltyCents, &refundCents, &res.PenaltyRule, &res.PenaltyWaivedBy,
		&res.Version, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.SuiteType = model.SuiteType(suite)
	res.Policy = model.CancellationPolicy(policy)
	res.Status = model.ReservationStatus(status)
	res.RatePerNight = fromCents(rateCents)
	res.PenaltyAmount = fromCents(penaltyCents)
	res.RefundAmount = fromCents(refundCents)
	res.CheckinExpected = res.CheckinExpected.UTC()
	res.CheckoutExpected = res.CheckoutExpected.UTC()
	res.CheckinActual = timePtr(checkinActual)
	res.CheckoutActual = timePtr(checkoutActual)
	res.CanceledAt = timePtr(canceledAt)
	res.CreatedAt = res.CreatedAt.UTC()
	res.UpdatedAt = res.UpdatedAt.UTC()
	return &res, nil
}
