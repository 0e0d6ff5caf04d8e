package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestHasRole(t *testing.T) {
	cases := []struct {
		have Role
		want Role
		ok   bool
	}{
		{RoleAdmin, RoleManager, true},
		{RoleAdmin, RoleReceptionist, true},
		{RoleManager, RoleReceptionist, true},
		{RoleManager, RoleAdmin, false},
		{RoleReceptionist, RoleManager, false},
		{RoleClient, RoleReceptionist, false},
		{RoleClient, RoleClient, true},
		{RoleSystem, RoleSystem, true},
		{RoleSystem, RoleReceptionist, false},
		{RoleAdmin, RoleClient, false},
		{RoleAdmin, RoleSystem, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, HasRole(Actor{ID: "x", Role: tc.have}, tc.want), "%s has %s", tc.have, tc.want)
	}
}

func TestEnumsAreClosed(t *testing.T) {
	assert.True(t, RoleReceptionist.Valid())
	assert.False(t, Role("JANITOR").Valid())
	assert.False(t, Role("client").Valid())

	for _, s := range ReservationStatuses() {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, ReservationStatus("ARCHIVED").Valid())
	for _, tr := range Transitions() {
		assert.True(t, tr.Valid(), tr)
	}
	assert.False(t, Transition("REOPEN").Valid())

	assert.False(t, PaymentStatus("").Valid())
	assert.False(t, PaymentMethod("CHEQUE").Valid())
	assert.False(t, GatewayResult("MAYBE").Valid())
	assert.False(t, SuiteType("PENTHOUSE").Valid())
	assert.False(t, CancellationPolicy("LOOSE").Valid())
	assert.False(t, LedgerReason("GIFT").Valid())
	assert.False(t, StayStatus("LEFT").Valid())
}

func TestStatusClasses(t *testing.T) {
	terminal := map[ReservationStatus]bool{StatusCheckedOut: true, StatusCanceled: true, StatusNoShow: true}
	for _, s := range ReservationStatuses() {
		assert.Equal(t, terminal[s], s.Terminal(), s)
	}
	assert.True(t, StatusUnderReview.PreArrival())
	assert.False(t, StatusCheckedIn.PreArrival())
	assert.False(t, StatusCanceled.PreArrival())

	assert.Less(t, StayNotStarted.Rank(), StayCheckedIn.Rank())
	assert.Less(t, StayCheckedIn.Rank(), StayCheckedOut.Rank())
}

func TestBookingAmount(t *testing.T) {
	r := Reservation{RatePerNight: decimal.RequireFromString("99.99"), Nights: 3}
	assert.Equal(t, "299.97", r.BookingAmount().StringFixed(2))
}
