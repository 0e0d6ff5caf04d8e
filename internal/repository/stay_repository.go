package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// StayRepo persists the single stay row of a reservation.
type StayRepo struct {
	db *sql.DB
}

// NewStayRepo returns a new StayRepo bound to the given database.
func NewStayRepo(db *sql.DB) *StayRepo { return &StayRepo{db: db} }

const stayColumns = `reservation_id, status, checked_in_at, checked_out_at, guests, vehicle_plate,
	deposit_cents, deposit_status, created_at, updated_at`

// GetTx returns the stay of a reservation, or nil when none exists yet.
func (r *StayRepo) GetTx(ctx context.Context, tx *sql.Tx, reservationID string) (*model.Stay, error) {
	var (
		s               model.Stay
		status, deposit string
		in, out         sql.NullTime
		depositCents    int64
	)
	err := tx.QueryRowContext(ctx,
		`SELECT `+stayColumns+` FROM stays WHERE reservation_id = ?`, reservationID,
	).Scan(&s.ReservationID, &status, &in, &out, &s.Guests, &s.VehiclePlate,
		&depositCents, &deposit, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load stay: %w", err)
	}
	s.Status = model.StayStatus(status)
	s.DepositStatus = model.DepositStatus(deposit)
	s.DepositAmount = fromCents(depositCents)
	s.CheckedInAt = timePtr(in)
	s.CheckedOutAt = timePtr(out)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

// SaveTx inserts the stay or overwrites the existing row.
func (r *StayRepo) SaveTx(ctx context.Context, tx *sql.Tx, s *model.Stay) error {
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stays WHERE reservation_id = ?`, s.ReservationID).Scan(&n); err != nil {
		return fmt.Errorf("check stay: %w", err)
	}
	if n == 0 {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO stays (`+stayColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ReservationID, string(s.Status), nullTime(s.CheckedInAt), nullTime(s.CheckedOutAt),
			s.Guests, s.VehiclePlate, toCents(s.DepositAmount), string(s.DepositStatus),
			s.CreatedAt.UTC(), s.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert stay: %w", err)
		}
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE stays SET status = ?, checked_in_at = ?, checked_out_at = ?, guests = ?, vehicle_plate = ?,
			deposit_cents = ?, deposit_status = ?, updated_at = ? WHERE reservation_id = ?`,
		string(s.Status), nullTime(s.CheckedInAt), nullTime(s.CheckedOutAt), s.Guests, s.VehiclePlate,
		toCents(s.DepositAmount), string(s.DepositStatus), s.UpdatedAt.UTC(), s.ReservationID)
	if err != nil {
		return fmt.Errorf("update stay: %w", err)
	}
	return nil
}
