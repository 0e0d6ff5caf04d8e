package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// Store runs read-modify-write units of work.  Everything written inside
// fn commits together or not at all.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the view of the store inside one unit of work.  Lookups of
// optional rows (stay, account, accrual entry) return nil, nil when the
// row does not exist.
type Tx interface {
	Reservation(ctx context.Context, id string) (*model.Reservation, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	// UpdateReservation is guarded by r.Version and bumps it on success.
	UpdateReservation(ctx context.Context, r *model.Reservation) error

	Stay(ctx context.Context, reservationID string) (*model.Stay, error)
	SaveStay(ctx context.Context, s *model.Stay) error

	Payments(ctx context.Context, reservationID string) ([]model.Payment, error)
	InsertPayment(ctx context.Context, p *model.Payment) error
	UpdatePayment(ctx context.Context, p *model.Payment) error

	// AppendTransition assigns rec.Seq.
	AppendTransition(ctx context.Context, rec *model.TransitionRecord) error
	Transitions(ctx context.Context, reservationID string) ([]model.TransitionRecord, error)

	Account(ctx context.Context, clientID string) (*model.PointsAccount, error)
	SaveAccount(ctx context.Context, a *model.PointsAccount) error
	AccrualEntry(ctx context.Context, reservationID string) (*model.LedgerEntry, error)
	InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error
	// LedgerEntries returns the newest entries first.
	LedgerEntries(ctx context.Context, clientID string, limit int) ([]model.LedgerEntry, error)
}

// SQLStore implements Store on database/sql.  The statements stick to the
// subset of SQL shared by MySQL and SQLite.
type SQLStore struct {
	db           *sql.DB
	reservations *ReservationRepo
	stays        *StayRepo
	payments     *PaymentRepo
	transitions  *TransitionRepo
	points       *PointsRepo
}

// NewSQLStore returns a SQLStore bound to db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:           db,
		reservations: NewReservationRepo(db),
		stays:        NewStayRepo(db),
		payments:     NewPaymentRepo(db),
		transitions:  NewTransitionRepo(db),
		points:       NewPointsRepo(db),
	}
}

// DB exposes the underlying handle for health checks.
func (s *SQLStore) DB() *sql.DB { return s.db }

// InTx begins a transaction, runs fn and commits.  Any error from fn or
// from commit rolls everything back.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{store: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// sqlTx forwards the Tx methods to the per-table repositories.
type sqlTx struct {
	store *SQLStore
	tx    *sql.Tx
}

func (t *sqlTx) Reservation(ctx context.Context, id string) (*model.Reservation, error) {
	return t.store.reservations.GetTx(ctx, t.tx, id)
}

func (t *sqlTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return t.store.reservations.CreateTx(ctx, t.tx, r)
}

func (t *sqlTx) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	return t.store.reservations.UpdateTx(ctx, t.tx, r)
}

func (t *sqlTx) Stay(ctx context.Context, reservationID string) (*model.Stay, error) {
	return t.store.stays.GetTx(ctx, t.tx, reservationID)
}

func (t *sqlTx) SaveStay(ctx context.Context, s *model.Stay) error {
	return t.store.stays.SaveTx(ctx, t.tx, s)
}

func (t *sqlTx) Payments(ctx context.Context, reservationID string) ([]model.Payment, error) {
	return t.store.payments.ListByReservationTx(ctx, t.tx, reservationID)
}

func (t *sqlTx) InsertPayment(ctx context.Context, p *model.Payment) error {
	return t.store.payments.CreateTx(ctx, t.tx, p)
}

func (t *sqlTx) UpdatePayment(ctx context.Context, p *model.Payment) error {
	return t.store.payments.UpdateTx(ctx, t.tx, p)
}

func (t *sqlTx) AppendTransition(ctx context.Context, rec *model.TransitionRecord) error {
	return t.store.transitions.AppendTx(ctx, t.tx, rec)
}

func (t *sqlTx) Transitions(ctx context.Context, reservationID string) ([]model.TransitionRecord, error) {
	return t.store.transitions.ListByReservationTx(ctx, t.tx, reservationID)
}

func (t *sqlTx) Account(ctx context.Context, clientID string) (*model.PointsAccount, error) {
	return t.store.points.AccountTx(ctx, t.tx, clientID)
}

func (t *sqlTx) SaveAccount(ctx context.Context, a *model.PointsAccount) error {
	return t.store.points.SaveAccountTx(ctx, t.tx, a)
}

func (t *sqlTx) AccrualEntry(ctx context.Context, reservationID string) (*model.LedgerEntry, error) {
	return t.store.points.AccrualEntryTx(ctx, t.tx, reservationID)
}

func (t *sqlTx) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	return t.store.points.InsertEntryTx(ctx, t.tx, e)
}

func (t *sqlTx) LedgerEntries(ctx context.Context, clientID string, limit int) ([]model.LedgerEntry, error) {
	return t.store.points.ListEntriesTx(ctx, t.tx, clientID, limit)
}

// Money is stored as integer cents.
func toCents(d decimal.Decimal) int64 { return d.Shift(2).Round(0).IntPart() }

func fromCents(c int64) decimal.Decimal { return decimal.New(c, -2) }

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
