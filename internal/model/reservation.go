package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reservation records a guest's booking of a room from intent to stay
// through completion.  It is created in PENDING_PAYMENT and mutated only
// through lifecycle transitions; cancellation is a status, never a delete.
//
// Fields:
//
//	ID               – primary key (uuid).
//	Code             – unique human-readable code (HTL-XXXXXXXX).
//	ClientID         – guest who owns the booking.
//	RoomID           – booked room.
//	SuiteType        – room category, drives points accrual.
//	Policy           – cancellation policy used for penalties.
//	RatePerNight     – nightly rate.
//	Nights           – number of booked nights.
//	CheckinExpected  – planned arrival.
//	CheckoutExpected – planned departure.
//	CheckinActual    – realized arrival (set on CHECK_IN).
//	CheckoutActual   – realized departure (set on CHECK_OUT).
//	Status           – lifecycle status.
//	CancelReason     – free text given on CANCEL/NO_SHOW.
//	CanceledAt       – when CANCEL/NO_SHOW was applied.
//	PenaltyAmount    – retained amount computed on CANCEL/NO_SHOW.
//	RefundAmount     – refund obligation owed to the guest.
//	PenaltyRule      – tier label that produced the penalty.
//	PenaltyWaivedBy  – actor that forced a zero penalty, if any.
//	Version          – optimistic concurrency counter.
type Reservation struct {
	ID               string             `json:"id"`
	Code             string             `json:"code"`
	ClientID         string             `json:"client_id"`
	RoomID           string             `json:"room_id"`
	SuiteType        SuiteType          `json:"suite_type"`
	Policy           CancellationPolicy `json:"policy"`
	RatePerNight     decimal.Decimal    `json:"rate_per_night"`
	Nights           int                `json:"nights"`
	CheckinExpected  time.Time          `json:"checkin_expected"`
	CheckoutExpected time.Time          `json:"checkout_expected"`
	CheckinActual    *time.Time         `json:"checkin_actual,omitempty"`
	CheckoutActual   *time.Time         `json:"checkout_actual,omitempty"`
	Status           ReservationStatus  `json:"status"`
	CancelReason     string             `json:"cancel_reason,omitempty"`
	CanceledAt       *time.Time         `json:"canceled_at,omitempty"`
	PenaltyAmount    decimal.Decimal    `json:"penalty_amount"`
	RefundAmount     decimal.Decimal    `json:"refund_amount"`
	PenaltyRule      string             `json:"penalty_rule,omitempty"`
	PenaltyWaivedBy  string             `json:"penalty_waived_by,omitempty"`
	Version          int64              `json:"version"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// BookingAmount is the full price of the stay.
func (r *Reservation) BookingAmount() decimal.Decimal {
	return r.RatePerNight.Mul(decimal.NewFromInt(int64(r.Nights))).Round(2)
}

// TransitionRecord is one entry of a reservation's append-only status
// history.  Seq starts at 1 and increases by one per applied step.
type TransitionRecord struct {
	ID            string            `json:"id"`
	ReservationID string            `json:"reservation_id"`
	Seq           int               `json:"seq"`
	Transition    Transition        `json:"transition"`
	From          ReservationStatus `json:"from"`
	To            ReservationStatus `json:"to"`
	ActorID       string            `json:"actor_id"`
	ActorRole     Role              `json:"actor_role"`
	Note          string            `json:"note,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
