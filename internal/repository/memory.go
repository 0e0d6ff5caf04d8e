package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// MemoryStore is an in-process Store for development and tests.  Units of
// work run one at a time against a copy of the state; the copy replaces
// the state only when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	reservations map[string]model.Reservation
	codes        map[string]string
	stays        map[string]model.Stay
	payments     map[string][]model.Payment
	transitions  map[string][]model.TransitionRecord
	accounts     map[string]model.PointsAccount
	ledger       map[string][]model.LedgerEntry
	accruals     map[string]model.LedgerEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		reservations: map[string]model.Reservation{},
		codes:        map[string]string{},
		stays:        map[string]model.Stay{},
		payments:     map[string][]model.Payment{},
		transitions:  map[string][]model.TransitionRecord{},
		accounts:     map[string]model.PointsAccount{},
		ledger:       map[string][]model.LedgerEntry{},
		accruals:     map[string]model.LedgerEntry{},
	}}
}

// InTx runs fn against a private copy of the state and publishes the copy
// on success.
func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(&memTx{s: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (s *memState) clone() *memState {
	c := &memState{
		reservations: make(map[string]model.Reservation, len(s.reservations)),
		codes:        make(map[string]string, len(s.codes)),
		stays:        make(map[string]model.Stay, len(s.stays)),
		payments:     make(map[string][]model.Payment, len(s.payments)),
		transitions:  make(map[string][]model.TransitionRecord, len(s.transitions)),
		accounts:     make(map[string]model.PointsAccount, len(s.accounts)),
		ledger:       make(map[string][]model.LedgerEntry, len(s.ledger)),
		accruals:     make(map[string]model.LedgerEntry, len(s.accruals)),
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.codes {
		c.codes[k] = v
	}
	for k, v := range s.stays {
		c.stays[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = append([]model.Payment(nil), v...)
	}
	for k, v := range s.transitions {
		c.transitions[k] = append([]model.TransitionRecord(nil), v...)
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.ledger {
		c.ledger[k] = append([]model.LedgerEntry(nil), v...)
	}
	for k, v := range s.accruals {
		c.accruals[k] = v
	}
	return c
}

type memTx struct {
	s *memState
}

func (t *memTx) Reservation(_ context.Context, id string) (*model.Reservation, error) {
	r, ok := t.s.reservations[id]
	if !ok {
		return nil, reservationNotFound(id)
	}
	return &r, nil
}

func (t *memTx) InsertReservation(_ context.Context, r *model.Reservation) error {
	if _, ok := t.s.reservations[r.ID]; ok {
		return fmt.Errorf("reservation %s: %w", r.ID, ErrDuplicate)
	}
	if _, ok := t.s.codes[r.Code]; ok {
		return fmt.Errorf("reservation code %s: %w", r.Code, ErrDuplicate)
	}
	r.Version = 1
	t.s.reservations[r.ID] = *r
	t.s.codes[r.Code] = r.ID
	return nil
}

func (t *memTx) UpdateReservation(_ context.Context, r *model.Reservation) error {
	cur, ok := t.s.reservations[r.ID]
	if !ok {
		return reservationNotFound(r.ID)
	}
	if cur.Version != r.Version {
		return fmt.Errorf("reservation %s version %d: %w", r.ID, r.Version, ErrConflict)
	}
	r.Version++
	t.s.reservations[r.ID] = *r
	return nil
}

func (t *memTx) Stay(_ context.Context, reservationID string) (*model.Stay, error) {
	s, ok := t.s.stays[reservationID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (t *memTx) SaveStay(_ context.Context, s *model.Stay) error {
	t.s.stays[s.ReservationID] = *s
	return nil
}

func (t *memTx) Payments(_ context.Context, reservationID string) ([]model.Payment, error) {
	return append([]model.Payment(nil), t.s.payments[reservationID]...), nil
}

func (t *memTx) InsertPayment(_ context.Context, p *model.Payment) error {
	t.s.payments[p.ReservationID] = append(t.s.payments[p.ReservationID], *p)
	return nil
}

func (t *memTx) UpdatePayment(_ context.Context, p *model.Payment) error {
	list := t.s.payments[p.ReservationID]
	for i := range list {
		if list[i].ID == p.ID {
			list[i].Status = p.Status
			list[i].GatewayRef = p.GatewayRef
			list[i].UpdatedAt = p.UpdatedAt
			return nil
		}
	}
	return fmt.Errorf("payment %s: %w", p.ID, ErrConflict)
}

func (t *memTx) AppendTransition(_ context.Context, rec *model.TransitionRecord) error {
	rec.Seq = len(t.s.transitions[rec.ReservationID]) + 1
	t.s.transitions[rec.ReservationID] = append(t.s.transitions[rec.ReservationID], *rec)
	return nil
}

func (t *memTx) Transitions(_ context.Context, reservationID string) ([]model.TransitionRecord, error) {
	return append([]model.TransitionRecord(nil), t.s.transitions[reservationID]...), nil
}

func (t *memTx) Account(_ context.Context, clientID string) (*model.PointsAccount, error) {
	a, ok := t.s.accounts[clientID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (t *memTx) SaveAccount(_ context.Context, a *model.PointsAccount) error {
	cur, exists := t.s.accounts[a.ClientID]
	switch {
	case a.Version == 0 && exists:
		return fmt.Errorf("account %s: %w", a.ClientID, ErrDuplicate)
	case a.Version != 0 && (!exists || cur.Version != a.Version):
		return fmt.Errorf("account %s version %d: %w", a.ClientID, a.Version, ErrConflict)
	}
	a.Version++
	t.s.accounts[a.ClientID] = *a
	return nil
}

func (t *memTx) AccrualEntry(_ context.Context, reservationID string) (*model.LedgerEntry, error) {
	e, ok := t.s.accruals[reservationID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (t *memTx) InsertLedgerEntry(_ context.Context, e *model.LedgerEntry) error {
	if e.Reason == model.ReasonCheckoutAccrual {
		if _, ok := t.s.accruals[e.ReservationID]; ok {
			return fmt.Errorf("accrual for reservation %s: %w", e.ReservationID, ErrDuplicate)
		}
		t.s.accruals[e.ReservationID] = *e
	}
	t.s.ledger[e.ClientID] = append(t.s.ledger[e.ClientID], *e)
	return nil
}

func (t *memTx) LedgerEntries(_ context.Context, clientID string, limit int) ([]model.LedgerEntry, error) {
	all := append([]model.LedgerEntry(nil), t.s.ledger[clientID]...)
	sort.Slice(all, func(i, j int) bool { return all[i].Seq > all[j].Seq })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
