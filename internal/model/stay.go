package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stay is the operational record of a guest's physical presence.  There is
// at most one per reservation; it is created lazily on check-in and is
// never ahead of the reservation status.
//
// Fields:
//
//	ReservationID – owning reservation (1:1).
//	Status        – NOT_STARTED, CHECKED_IN or CHECKED_OUT.
//	CheckedInAt   – realized check-in time.
//	CheckedOutAt  – realized check-out time.
//	Guests        – number of guests registered at the desk.
//	VehiclePlate  – optional parking plate.
//	DepositAmount – security deposit taken at check-in.
//	DepositStatus – NONE, HELD or RELEASED.
type Stay struct {
	ReservationID string          `json:"reservation_id"`
	Status        StayStatus      `json:"status"`
	CheckedInAt   *time.Time      `json:"checked_in_at,omitempty"`
	CheckedOutAt  *time.Time      `json:"checked_out_at,omitempty"`
	Guests        int             `json:"guests"`
	VehiclePlate  string          `json:"vehicle_plate,omitempty"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	DepositStatus DepositStatus   `json:"deposit_status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
