package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation-engine/internal/lifecycle"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

func TestAdjustPoints_BalanceMatchesLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.book(t, model.SuiteRoyal, model.PolicyModerate, 6, 24*time.Hour)
	h.payApproved(t, res)
	h.apply(t, res.ID, model.TransitionCheckIn, desk, lifecycle.TransitionContext{})
	h.apply(t, res.ID, model.TransitionCheckOut, desk, lifecycle.TransitionContext{})

	_, err := h.engine.AdjustPoints(ctx, guest.ID, lifecycle.PointsAdjustment{Delta: 5, Reason: model.ReasonReferral}, manager)
	require.NoError(t, err)
	_, err = h.engine.AdjustPoints(ctx, guest.ID, lifecycle.PointsAdjustment{Delta: -3, Reason: model.ReasonManualAdjustment, Note: "correction"}, manager)
	require.NoError(t, err)
	redeemed, err := h.engine.AdjustPoints(ctx, guest.ID, lifecycle.PointsAdjustment{Delta: -12, Reason: model.ReasonRedemption}, guest)
	require.NoError(t, err)
	assert.Equal(t, int64(5), redeemed.BalanceAfter)

	acct, err := h.engine.PointsBalance(ctx, guest.ID, guest)
	require.NoError(t, err)
	entries, err := h.engine.PointsLedger(ctx, guest.ID, 0, guest)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	var sum int64
	for i, e := range entries {
		sum += e.Delta
		assert.Equal(t, e.BalanceBefore+e.Delta, e.BalanceAfter)
		if i > 0 {
			assert.Greater(t, entries[i-1].Seq, e.Seq, "newest first")
		}
	}
	assert.Equal(t, acct.Balance, sum)
	assert.Equal(t, int64(5), acct.Balance)
}

func TestAdjustPoints_Rejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.book(t, model.SuiteLuxo, model.PolicyFlexible, 2, 48*time.Hour)

	cases := []struct {
		name   string
		client string
		adj    lifecycle.PointsAdjustment
		actor  model.Actor
		code   string
	}{
		{"overdraw", guest.ID, lifecycle.PointsAdjustment{Delta: -1, Reason: model.ReasonRedemption}, guest, "insufficient_balance"},
		{"client grants own points", guest.ID, lifecycle.PointsAdjustment{Delta: 100, Reason: model.ReasonManualAdjustment}, guest, "adjustment_forbidden"},
		{"redeem for another guest", guest.ID, lifecycle.PointsAdjustment{Delta: -1, Reason: model.ReasonRedemption}, stranger, "adjustment_forbidden"},
		{"accrual by hand", guest.ID, lifecycle.PointsAdjustment{Delta: 10, Reason: model.ReasonCheckoutAccrual}, manager, "invalid_reason"},
		{"positive redemption", guest.ID, lifecycle.PointsAdjustment{Delta: 10, Reason: model.ReasonRedemption}, guest, "invalid_amount"},
		{"zero delta", guest.ID, lifecycle.PointsAdjustment{Reason: model.ReasonManualAdjustment}, manager, "invalid_amount"},
		{"no account", "ghost", lifecycle.PointsAdjustment{Delta: 1, Reason: model.ReasonReferral}, manager, "account_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.engine.AdjustPoints(ctx, tc.client, tc.adj, tc.actor)
			assertCode(t, err, tc.code)
		})
	}

	acct, err := h.engine.PointsBalance(ctx, guest.ID, guest)
	require.NoError(t, err)
	assert.Zero(t, acct.Balance)
}

func TestPointsQueries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.book(t, model.SuiteLuxo, model.PolicyFlexible, 2, 48*time.Hour)

	_, err := h.engine.PointsBalance(ctx, "ghost", desk)
	assertCode(t, err, "account_not_found")

	_, err = h.engine.PointsBalance(ctx, guest.ID, stranger)
	assertCode(t, err, "points_forbidden")

	_, err = h.engine.PointsLedger(ctx, guest.ID, -1, guest)
	assertCode(t, err, "invalid_limit")

	for i := 0; i < 3; i++ {
		_, err := h.engine.AdjustPoints(ctx, guest.ID, lifecycle.PointsAdjustment{Delta: 1, Reason: model.ReasonReferral}, manager)
		require.NoError(t, err)
	}
	entries, err := h.engine.PointsLedger(ctx, guest.ID, 2, desk)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(3), entries[0].BalanceAfter)

	empty := newHarness(t)
	empty.book(t, model.SuiteLuxo, model.PolicyFlexible, 2, 48*time.Hour)
	none, err := empty.engine.PointsLedger(ctx, guest.ID, 0, guest)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
