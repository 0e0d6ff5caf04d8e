// Package queue defines message payloads exchanged over the message broker.
package queue

// LifecycleQueueName is the durable queue carrying reservation lifecycle
// events.
const LifecycleQueueName = "reservation.lifecycle"

// Event types.
const (
	EventReservationCreated      = "reservation.created"
	EventReservationTransitioned = "reservation.transitioned"
)

// ReservationEvent is published after a reservation was created or moved
// to a new status.  It contains enough information for downstream
// consumers to log, notify, or trigger analytics without querying the
// primary database.  Amounts are decimal strings.
type ReservationEvent struct {
	Type          string `json:"type"`
	ReservationID string `json:"reservation_id"`
	Code          string `json:"code"`
	ClientID      string `json:"client_id"`
	Transition    string `json:"transition,omitempty"`
	From          string `json:"from,omitempty"`
	To            string `json:"to"`
	Seq           int    `json:"seq,omitempty"`
	ActorID       string `json:"actor_id"`
	ActorRole     string `json:"actor_role"`
	PenaltyAmount string `json:"penalty_amount,omitempty"`
	RefundAmount  string `json:"refund_amount,omitempty"`
	PointsEarned  int64  `json:"points_earned,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}
