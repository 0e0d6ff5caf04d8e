package consistency_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
	"github.com/iliyamo/hotel-reservation-engine/internal/consistency"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

var now = time.Date(2026, time.May, 4, 15, 0, 0, 0, time.UTC)

func reservation(status model.ReservationStatus) model.Reservation {
	return model.Reservation{ID: "res-1", Status: status}
}

func payment(status model.PaymentStatus) model.Payment {
	return model.Payment{ID: "pay-" + string(status), ReservationID: "res-1", Status: status}
}

func TestValidateAndDerive_CheckInCreatesStay(t *testing.T) {
	res := reservation(model.StatusCheckedIn)

	got, stay, err := consistency.ValidateAndDerive(res, nil, []model.Payment{payment(model.PaymentConfirmed)}, now)
	require.NoError(t, err)
	require.NotNil(t, stay)

	assert.Equal(t, model.StayCheckedIn, stay.Status)
	assert.Equal(t, "res-1", stay.ReservationID)
	assert.Equal(t, now, *stay.CheckedInAt)
	require.NotNil(t, got.CheckinActual)
	assert.Equal(t, now, *got.CheckinActual)
}

func TestValidateAndDerive_CheckOutAdvancesStayAndReleasesDeposit(t *testing.T) {
	in := now.Add(-48 * time.Hour)
	res := reservation(model.StatusCheckedOut)
	res.CheckinActual = &in
	stay := &model.Stay{ReservationID: "res-1", Status: model.StayCheckedIn, CheckedInAt: &in, DepositStatus: model.DepositHeld}

	_, derived, err := consistency.ValidateAndDerive(res, stay, []model.Payment{payment(model.PaymentConfirmed)}, now)
	require.NoError(t, err)

	assert.Equal(t, model.StayCheckedOut, derived.Status)
	assert.Equal(t, model.DepositReleased, derived.DepositStatus)
	assert.Equal(t, model.StayCheckedIn, stay.Status, "input stay must not be modified")
}

func TestValidateAndDerive_StayAheadIsViolation(t *testing.T) {
	res := reservation(model.StatusPendingPayment)
	stay := &model.Stay{ReservationID: "res-1", Status: model.StayCheckedOut}

	_, _, err := consistency.ValidateAndDerive(res, stay, nil, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConsistency))
}

func TestValidateAndDerive_CheckOutWithoutCheckIn(t *testing.T) {
	_, _, err := consistency.ValidateAndDerive(reservation(model.StatusCheckedOut), nil,
		[]model.Payment{payment(model.PaymentConfirmed)}, now)
	assert.ErrorIs(t, err, apperr.ErrConsistency)
}

func TestValidateAndDerive_PaymentRules(t *testing.T) {
	cases := []struct {
		name     string
		status   model.ReservationStatus
		payments []model.Payment
		ok       bool
	}{
		{"pending payment without payments", model.StatusPendingPayment, nil, true},
		{"pending payment after a denial", model.StatusPendingPayment, []model.Payment{payment(model.PaymentDenied)}, true},
		{"pending payment holding a confirmed one", model.StatusPendingPayment, []model.Payment{payment(model.PaymentConfirmed)}, false},
		{"awaiting proof with pending", model.StatusAwaitingProof, []model.Payment{payment(model.PaymentPending)}, true},
		{"under review without payment", model.StatusUnderReview, nil, false},
		{"confirmed without confirmed payment", model.StatusConfirmed, []model.Payment{payment(model.PaymentPending)}, false},
		{"confirmed with confirmed payment", model.StatusConfirmed, []model.Payment{payment(model.PaymentConfirmed)}, true},
		{"canceled with pending", model.StatusCanceled, []model.Payment{payment(model.PaymentPending)}, false},
		{"canceled with refunded", model.StatusCanceled, []model.Payment{payment(model.PaymentRefunded)}, true},
		{"no show with confirmed", model.StatusNoShow, []model.Payment{payment(model.PaymentConfirmed)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := consistency.ValidateAndDerive(reservation(tc.status), nil, tc.payments, now)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperr.ErrConsistency)
			}
		})
	}
}

func TestCheckPaymentChange(t *testing.T) {
	assert.NoError(t, consistency.CheckPaymentChange(model.PaymentPending, model.PaymentConfirmed))
	assert.NoError(t, consistency.CheckPaymentChange(model.PaymentPending, model.PaymentCanceled))
	assert.NoError(t, consistency.CheckPaymentChange(model.PaymentConfirmed, model.PaymentRefunded))
	assert.NoError(t, consistency.CheckPaymentChange(model.PaymentConfirmed, model.PaymentConfirmed))

	for _, to := range []model.PaymentStatus{model.PaymentPending, model.PaymentDenied, model.PaymentCanceled} {
		err := consistency.CheckPaymentChange(model.PaymentConfirmed, to)
		assert.ErrorIs(t, err, apperr.ErrBusinessRule, "CONFIRMED -> %s", to)
	}
	assert.ErrorIs(t, consistency.CheckPaymentChange(model.PaymentRefunded, model.PaymentConfirmed), apperr.ErrBusinessRule)
	assert.ErrorIs(t, consistency.CheckPaymentChange(model.PaymentPending, "SETTLED"), apperr.ErrValidation)
}

func TestAudit_CleanCheckedOutReservation(t *testing.T) {
	in, out := now.Add(-72*time.Hour), now
	res := reservation(model.StatusCheckedOut)
	res.CheckinActual, res.CheckoutActual = &in, &out

	rep := consistency.Audit(consistency.Snapshot{
		Reservation: res,
		Stay:        &model.Stay{Status: model.StayCheckedOut, DepositStatus: model.DepositReleased},
		Payments:    []model.Payment{payment(model.PaymentConfirmed)},
		Accrual:     &model.LedgerEntry{Reason: model.ReasonCheckoutAccrual},
	})

	assert.False(t, rep.Drift)
	assert.Empty(t, rep.Details)
}

func TestAudit_ReportsDriftWithoutFailing(t *testing.T) {
	rep := consistency.Audit(consistency.Snapshot{
		Reservation: reservation(model.StatusCheckedIn),
		Stay:        &model.Stay{Status: model.StayCheckedOut},
	})

	assert.True(t, rep.Drift)
	assert.GreaterOrEqual(t, len(rep.Details), 3)
}

func TestAudit_CanceledNeedsPenaltyTrail(t *testing.T) {
	rep := consistency.Audit(consistency.Snapshot{Reservation: reservation(model.StatusCanceled)})

	assert.True(t, rep.Drift)
	assert.Len(t, rep.Details, 2)
}
