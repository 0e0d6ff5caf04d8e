// Package lifecycle is the reservation state machine.
//
// Every write runs under the reservation's distributed lock and inside one
// store transaction: the guard is evaluated against the current records,
// side effects (stay, payments, penalty, points) are applied, the
// consistency layer validates and derives the final state, and everything
// is persisted together with a transition record.  Events are published
// only after the transaction committed.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
	"github.com/iliyamo/hotel-reservation-engine/internal/consistency"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
	"github.com/iliyamo/hotel-reservation-engine/internal/queue"
	"github.com/iliyamo/hotel-reservation-engine/internal/repository"
)

// Locker serializes work on a resource key.
type Locker interface {
	WithLock(ctx context.Context, key string, timeout time.Duration, fn func(ctx context.Context) error) error
}

// Publisher receives lifecycle events after commit.
type Publisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// RoleCheck reports whether actor holds role.
type RoleCheck func(actor model.Actor, role model.Role) bool

// Engine applies lifecycle operations.  It is safe for concurrent use.
type Engine struct {
	store       repository.Store
	locker      Locker
	clock       func() time.Time
	publisher   Publisher
	log         logrus.FieldLogger
	hasRole     RoleCheck
	lockTimeout time.Duration
	cardKey     []byte
	tracer      trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option { return func(e *Engine) { e.clock = clock } }

// WithPublisher sets where lifecycle events go.  Without one, events are
// dropped.
func WithPublisher(p Publisher) Option { return func(e *Engine) { e.publisher = p } }

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option { return func(e *Engine) { e.log = l } }

// WithRoleCheck replaces model.HasRole.
func WithRoleCheck(fn RoleCheck) Option { return func(e *Engine) { e.hasRole = fn } }

// WithLockTimeout bounds how long an operation waits for a lock.
func WithLockTimeout(d time.Duration) Option { return func(e *Engine) { e.lockTimeout = d } }

// WithCardKey sets the key of the card fingerprint.
func WithCardKey(key []byte) Option { return func(e *Engine) { e.cardKey = key } }

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// NewEngine returns an Engine persisting to store and serializing through
// locker.
func NewEngine(store repository.Store, locker Locker, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		locker:      locker,
		clock:       time.Now,
		log:         logrus.StandardLogger(),
		hasRole:     model.HasRole,
		lockTimeout: 10 * time.Second,
		tracer:      otel.Tracer("github.com/iliyamo/hotel-reservation-engine/internal/lifecycle"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) now() time.Time { return e.clock().UTC() }

func reservationKey(id string) string { return "reservation:" + id }

func pointsKey(clientID string) string { return "points:" + clientID }

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// fail records err on the span and logs it.  Consistency violations are
// logged at error level for operator attention.
func (e *Engine) fail(span trace.Span, fields logrus.Fields, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	entry := e.log.WithFields(fields).WithError(err)
	switch {
	case errors.Is(err, apperr.ErrConsistency):
		entry.Error("lifecycle: consistency violation")
	case errors.Is(err, apperr.ErrLockTimeout):
		entry.Warn("lifecycle: lock timeout")
	default:
		var ae *apperr.Error
		if errors.As(err, &ae) {
			entry.Debug("lifecycle: rejected")
		} else {
			entry.Error("lifecycle: operation failed")
		}
	}
	return err
}

func (e *Engine) publish(ctx context.Context, events []queue.ReservationEvent) {
	if e.publisher == nil {
		return
	}
	for _, ev := range events {
		if err := e.publisher.Publish(ctx, ev); err != nil {
			e.log.WithFields(logrus.Fields{
				"reservation_id": ev.ReservationID,
				"event":          ev.Type,
			}).WithError(err).Warn("lifecycle: event not published")
		}
	}
}

// clientOf reads the owner of a reservation in its own short unit of work.
// The owner never changes, so the value stays valid for the caller's lock.
func (e *Engine) clientOf(ctx context.Context, id string) (string, error) {
	var clientID string
	err := e.store.InTx(ctx, func(tx repository.Tx) error {
		res, err := tx.Reservation(ctx, id)
		if err != nil {
			return err
		}
		clientID = res.ClientID
		return nil
	})
	return clientID, err
}

// state is the working copy of one reservation inside a unit of work.
type state struct {
	res      *model.Reservation
	stay     *model.Stay
	payments []model.Payment
	dirty    map[string]bool
	// points credited by a CHECK_OUT in this unit of work
	earned int64
}

func loadState(ctx context.Context, tx repository.Tx, id string) (*state, error) {
	res, err := tx.Reservation(ctx, id)
	if err != nil {
		return nil, err
	}
	stay, err := tx.Stay(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := tx.Payments(ctx, id)
	if err != nil {
		return nil, err
	}
	return &state{res: res, stay: stay, payments: payments, dirty: map[string]bool{}}, nil
}

func (st *state) setPaymentStatus(i int, to model.PaymentStatus, now time.Time) error {
	p := &st.payments[i]
	if err := consistency.CheckPaymentChange(p.Status, to); err != nil {
		return err
	}
	if p.Status == to {
		return nil
	}
	p.Status = to
	p.UpdatedAt = now
	st.dirty[p.ID] = true
	return nil
}

// persist writes the reservation, the stay and every changed payment.
func (st *state) persist(ctx context.Context, tx repository.Tx) error {
	if err := tx.UpdateReservation(ctx, st.res); err != nil {
		return err
	}
	if st.stay != nil {
		if err := tx.SaveStay(ctx, st.stay); err != nil {
			return err
		}
	}
	for i := range st.payments {
		if !st.dirty[st.payments[i].ID] {
			continue
		}
		if err := tx.UpdatePayment(ctx, &st.payments[i]); err != nil {
			return err
		}
	}
	st.dirty = map[string]bool{}
	return nil
}

func transitionEvent(st *state, rec *model.TransitionRecord) queue.ReservationEvent {
	ev := queue.ReservationEvent{
		Type:          queue.EventReservationTransitioned,
		ReservationID: st.res.ID,
		Code:          st.res.Code,
		ClientID:      st.res.ClientID,
		Transition:    string(rec.Transition),
		From:          string(rec.From),
		To:            string(rec.To),
		Seq:           rec.Seq,
		ActorID:       rec.ActorID,
		ActorRole:     string(rec.ActorRole),
		OccurredAt:    rec.CreatedAt.Format(time.RFC3339),
	}
	switch rec.Transition {
	case model.TransitionCancel, model.TransitionNoShow:
		ev.PenaltyAmount = st.res.PenaltyAmount.StringFixed(2)
		ev.RefundAmount = st.res.RefundAmount.StringFixed(2)
	case model.TransitionCheckOut:
		ev.PointsEarned = st.earned
	}
	return ev
}
