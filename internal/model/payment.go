package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one payment attempt against a reservation.  Card data is
// reduced to a mask and a keyed fingerprint before a Payment is built;
// raw PAN and CVV never reach this type.
type Payment struct {
	ID              string          `json:"id"`
	ReservationID   string          `json:"reservation_id"`
	Amount          decimal.Decimal `json:"amount"`
	Method          PaymentMethod   `json:"method"`
	Status          PaymentStatus   `json:"status"`
	CardMask        string          `json:"card_mask,omitempty"`
	CardFingerprint string          `json:"card_fingerprint,omitempty"`
	GatewayRef      string          `json:"gateway_ref,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
