package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
	"github.com/iliyamo/hotel-reservation-engine/internal/queue"
	"github.com/iliyamo/hotel-reservation-engine/internal/repository"
)

// NewReservation is the input of CreateReservation.
type NewReservation struct {
	ClientID         string                   `json:"client_id"`
	RoomID           string                   `json:"room_id"`
	SuiteType        model.SuiteType          `json:"suite_type"`
	Policy           model.CancellationPolicy `json:"policy"`
	RatePerNight     decimal.Decimal          `json:"rate_per_night"`
	CheckinExpected  time.Time                `json:"checkin"`
	CheckoutExpected time.Time                `json:"checkout"`
}

// Nights counts the calendar nights between check-in and check-out dates
// in UTC.
func Nights(checkin, checkout time.Time) int {
	in := dateOf(checkin)
	out := dateOf(checkout)
	return int(out.Sub(in).Hours() / 24)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (n NewReservation) validate() error {
	switch {
	case strings.TrimSpace(n.ClientID) == "":
		return apperr.Validation("missing_client", "client_id is required")
	case strings.TrimSpace(n.RoomID) == "":
		return apperr.Validation("missing_room", "room_id is required")
	case !n.SuiteType.Valid():
		return apperr.Validation("invalid_suite_type", "unknown suite type %q", n.SuiteType)
	case n.Policy != "" && !n.Policy.Valid():
		return apperr.Validation("invalid_policy", "unknown cancellation policy %q", n.Policy)
	case !n.RatePerNight.IsPositive():
		return apperr.Validation("invalid_rate", "rate_per_night must be positive")
	case n.CheckinExpected.IsZero() || n.CheckoutExpected.IsZero():
		return apperr.Validation("missing_dates", "checkin and checkout are required")
	case !n.CheckoutExpected.After(n.CheckinExpected):
		return apperr.Validation("invalid_dates", "checkout must be after checkin")
	case Nights(n.CheckinExpected, n.CheckoutExpected) < 1:
		return apperr.Validation("invalid_dates", "a reservation covers at least one night")
	}
	return nil
}

// newCode returns a human readable code such as HTL-3F9A0C21.
func newCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "HTL-" + strings.ToUpper(raw[:8])
}

// CreateReservation books a room in PENDING_PAYMENT and makes sure the
// client has a points account.
func (e *Engine) CreateReservation(ctx context.Context, in NewReservation, actor model.Actor) (*model.Reservation, error) {
	ctx, span := e.startSpan(ctx, "lifecycle.create_reservation", attribute.String("client.id", in.ClientID))
	defer span.End()
	fields := logrus.Fields{"client_id": in.ClientID, "actor": actor.ID, "role": actor.Role}

	if err := checkActor(actor); err != nil {
		return nil, e.fail(span, fields, err)
	}
	if err := in.validate(); err != nil {
		return nil, e.fail(span, fields, err)
	}
	if !(actor.Role == model.RoleClient && actor.ID == in.ClientID) && !e.isDesk(actor) && !e.isSystem(actor) {
		return nil, e.fail(span, fields, apperr.Forbidden("booking_forbidden", "cannot book for another client"))
	}
	policy := in.Policy
	if policy == "" {
		policy = model.PolicyModerate
	}

	now := e.now()
	res := model.Reservation{
		ID:               uuid.NewString(),
		ClientID:         in.ClientID,
		RoomID:           in.RoomID,
		SuiteType:        in.SuiteType,
		Policy:           policy,
		RatePerNight:     in.RatePerNight.Round(2),
		Nights:           Nights(in.CheckinExpected, in.CheckoutExpected),
		CheckinExpected:  in.CheckinExpected.UTC(),
		CheckoutExpected: in.CheckoutExpected.UTC(),
		Status:           model.StatusPendingPayment,
		PenaltyAmount:    decimal.Zero,
		RefundAmount:     decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := e.locker.WithLock(ctx, pointsKey(in.ClientID), e.lockTimeout, func(ctx context.Context) error {
		var err error
		// a random code may collide; a few fresh draws settle it
		for attempt := 0; attempt < 3; attempt++ {
			res.Code = newCode()
			err = e.store.InTx(ctx, func(tx repository.Tx) error {
				if err := tx.InsertReservation(ctx, &res); err != nil {
					return err
				}
				acct, err := tx.Account(ctx, in.ClientID)
				if err != nil {
					return err
				}
				if acct == nil {
					return tx.SaveAccount(ctx, &model.PointsAccount{ClientID: in.ClientID, CreatedAt: now, UpdatedAt: now})
				}
				return nil
			})
			if !errors.Is(err, repository.ErrDuplicate) {
				return err
			}
		}
		return err
	})
	if err != nil {
		return nil, e.fail(span, fields, err)
	}

	fields["reservation_id"] = res.ID
	e.log.WithFields(fields).WithField("code", res.Code).Info("lifecycle: reservation created")
	e.publish(ctx, []queue.ReservationEvent{{
		Type:          queue.EventReservationCreated,
		ReservationID: res.ID,
		Code:          res.Code,
		ClientID:      res.ClientID,
		To:            string(res.Status),
		ActorID:       actor.ID,
		ActorRole:     string(actor.Role),
		OccurredAt:    now.Format(time.RFC3339),
	}})
	return &res, nil
}
