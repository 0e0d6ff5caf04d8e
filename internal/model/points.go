package model

import "time"

// PointsAccount holds a client's loyalty balance.  Balance is only ever
// changed by applying a LedgerEntry; Version guards concurrent writers.
type PointsAccount struct {
	ClientID  string    `json:"client_id"`
	Balance   int64     `json:"balance"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerEntry is an immutable record of a balance change.  Seq orders the
// entries of one account and equals the account version after applying
// the entry.
type LedgerEntry struct {
	ID            string       `json:"id"`
	ClientID      string       `json:"client_id"`
	Seq           int64        `json:"seq"`
	Delta         int64        `json:"delta"`
	Reason        LedgerReason `json:"reason"`
	ReservationID string       `json:"reservation_id,omitempty"`
	BalanceBefore int64        `json:"balance_before"`
	BalanceAfter  int64        `json:"balance_after"`
	Note          string       `json:"note,omitempty"`
	ActorID       string       `json:"actor_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}
