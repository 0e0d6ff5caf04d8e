package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// TransitionRepo persists the append-only status history.
type TransitionRepo struct {
	db *sql.DB
}

// NewTransitionRepo returns a new TransitionRepo bound to the given database.
func NewTransitionRepo(db *sql.DB) *TransitionRepo { return &TransitionRepo{db: db} }

// AppendTx assigns the next sequence number of the reservation and inserts
// the record.
func (r *TransitionRepo) AppendTx(ctx context.Context, tx *sql.Tx, rec *model.TransitionRecord) error {
	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM reservation_transitions WHERE reservation_id = ?`, rec.ReservationID,
	).Scan(&last); err != nil {
		return fmt.Errorf("next transition seq: %w", err)
	}
	rec.Seq = int(last.Int64) + 1
	_, err := tx.ExecContext(ctx,
		`INSERT INTO reservation_transitions
			(id, reservation_id, seq, transition, from_status, to_status, actor_id, actor_role, note, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ReservationID, rec.Seq, string(rec.Transition), string(rec.From), string(rec.To),
		rec.ActorID, string(rec.ActorRole), rec.Note, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// ListByReservationTx returns the history in order.
func (r *TransitionRepo) ListByReservationTx(ctx context.Context, tx *sql.Tx, reservationID string) ([]model.TransitionRecord, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, reservation_id, seq, transition, from_status, to_status, actor_id, actor_role, note, created_at
			FROM reservation_transitions WHERE reservation_id = ? ORDER BY seq`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()
	var out []model.TransitionRecord
	for rows.Next() {
		var (
			rec                model.TransitionRecord
			tr, from, to, role string
		)
		if err := rows.Scan(&rec.ID, &rec.ReservationID, &rec.Seq, &tr, &from, &to,
			&rec.ActorID, &role, &rec.Note, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		rec.Transition = model.Transition(tr)
		rec.From = model.ReservationStatus(from)
		rec.To = model.ReservationStatus(to)
		rec.ActorRole = model.Role(role)
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
