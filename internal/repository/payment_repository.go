package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// PaymentRepo persists payments.  Only masked card data is ever stored.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, reservation_id, amount_cents, method, status, card_mask, card_fingerprint,
	gateway_ref, created_at, updated_at`

// CreateTx inserts a payment.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ReservationID, toCents(p.Amount), string(p.Method), string(p.Status),
		p.CardMask, p.CardFingerprint, p.GatewayRef, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// UpdateTx writes the status and gateway reference of an existing payment.
func (r *PaymentRepo) UpdateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, gateway_ref = ?, updated_at = ? WHERE id = ?`,
		string(p.Status), p.GatewayRef, p.UpdatedAt.UTC(), p.ID)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("payment %s: %w", p.ID, ErrConflict)
	}
	return nil
}

// ListByReservationTx returns the payments of a reservation, oldest first.
func (r *PaymentRepo) ListByReservationTx(ctx context.Context, tx *sql.Tx, reservationID string) ([]model.Payment, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE reservation_id = ? ORDER BY created_at, id`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	var out []model.Payment
	for rows.Next() {
		var (
			p              model.Payment
			cents          int64
			method, status string
		)
		if err := rows.Scan(&p.ID, &p.ReservationID, &cents, &method, &status,
			&p.CardMask, &p.CardFingerprint, &p.GatewayRef, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Amount = fromCents(cents)
		p.Method = model.PaymentMethod(method)
		p.Status = model.PaymentStatus(status)
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
