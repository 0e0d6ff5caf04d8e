package loyalty_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation-engine/internal/apperr"
	"github.com/iliyamo/hotel-reservation-engine/internal/loyalty"
	"github.com/iliyamo/hotel-reservation-engine/internal/model"
	"github.com/iliyamo/hotel-reservation-engine/internal/repository"
)

var at = time.Date(2026, time.April, 2, 11, 0, 0, 0, time.UTC)

func TestComputePoints(t *testing.T) {
	cases := []struct {
		suite  model.SuiteType
		nights int
		want   int64
	}{
		{model.SuiteLuxo, 2, 3},
		{model.SuiteLuxo, 5, 6},
		{model.SuiteMaster, 4, 8},
		{model.SuiteDouble, 3, 4},
		{model.SuiteRoyal, 4, 10},
		{model.SuiteRoyal, 1, 0},
		{model.SuiteRoyal, 0, 0},
		{model.SuiteType("CAVE"), 6, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, loyalty.ComputePoints(tc.suite, tc.nights), "%s %d nights", tc.suite, tc.nights)
	}
}

func inTx(t *testing.T, store *repository.MemoryStore, fn func(tx repository.Tx) error) error {
	t.Helper()
	return store.InTx(context.Background(), fn)
}

func TestCredit_AccrualIsWrittenOnce(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	p := loyalty.Posting{ClientID: "c1", Amount: 8, Reason: model.ReasonCheckoutAccrual, ReservationID: "r1", At: at}

	var first, second model.LedgerEntry
	require.NoError(t, inTx(t, store, func(tx repository.Tx) error {
		var created bool
		var err error
		first, created, err = loyalty.Credit(ctx, tx, p)
		assert.True(t, created)
		return err
	}))
	require.NoError(t, inTx(t, store, func(tx repository.Tx) error {
		var created bool
		var err error
		second, created, err = loyalty.Credit(ctx, tx, p)
		assert.False(t, created)
		return err
	}))
	assert.Equal(t, first.ID, second.ID)

	require.NoError(t, inTx(t, store, func(tx repository.Tx) error {
		acct, err := tx.Account(ctx, "c1")
		require.NoError(t, err)
		require.NotNil(t, acct)
		assert.Equal(t, int64(8), acct.Balance)
		return nil
	}))
}

func TestDebit_InsufficientBalance(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, inTx(t, store, func(tx repository.Tx) error {
		_, _, err := loyalty.Credit(ctx, tx, loyalty.Posting{ClientID: "c1", Amount: 5, Reason: model.ReasonReferral, At: at})
		return err
	}))
	err := inTx(t, store, func(tx repository.Tx) error {
		_, err := loyalty.Debit(ctx, tx, loyalty.Posting{ClientID: "c1", Amount: 6, Reason: model.ReasonRedemption, At: at})
		return err
	})
	assert.True(t, errors.Is(err, apperr.ErrInsufficientBalance))

	var e model.LedgerEntry
	require.NoError(t, inTx(t, store, func(tx repository.Tx) error {
		var err error
		e, err = loyalty.Debit(ctx, tx, loyalty.Posting{ClientID: "c1", Amount: 5, Reason: model.ReasonRedemption, At: at})
		return err
	}))
	assert.Equal(t, int64(-5), e.Delta)
	assert.Equal(t, int64(5), e.BalanceBefore)
	assert.Equal(t, int64(0), e.BalanceAfter)
	assert.Equal(t, int64(2), e.Seq)
}

func TestPostingRejects(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	cases := map[string]func(tx repository.Tx) error{
		"negative credit": func(tx repository.Tx) error {
			_, _, err := loyalty.Credit(ctx, tx, loyalty.Posting{ClientID: "c1", Amount: -1, Reason: model.ReasonReferral})
			return err
		},
		"credit as redemption": func(tx repository.Tx) error {
			_, _, err := loyalty.Credit(ctx, tx, loyalty.Posting{ClientID: "c1", Amount: 1, Reason: model.ReasonRedemption})
			return err
		},
		"accrual without reservation": func(tx repository.Tx) error {
			_, _, err := loyalty.Credit(ctx, tx, loyalty.Posting{ClientID: "c1", Amount: 1, Reason: model.ReasonCheckoutAccrual})
			return err
		},
		"zero debit": func(tx repository.Tx) error {
			_, err := loyalty.Debit(ctx, tx, loyalty.Posting{ClientID: "c1", Reason: model.ReasonRedemption})
			return err
		},
		"debit as referral": func(tx repository.Tx) error {
			_, err := loyalty.Debit(ctx, tx, loyalty.Posting{ClientID: "c1", Amount: 1, Reason: model.ReasonReferral})
			return err
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.Is(inTx(t, store, fn), apperr.ErrValidation))
		})
	}
}
