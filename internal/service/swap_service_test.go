package service_test

import (
	"context"
	"testing"

	"cryptowallet/internal/model"
	"cryptowallet/internal/service"
	"cryptowallet/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	account := testutil.CreateAccount(t, e.db, testutil.Seed{USDT: "100"})

	testutil.UpdateSettings(t, e.db, func(s *model.PlatformSettings) {
		s.RateUSDTToUSDC = decimal.RequireFromString("0.5")
	})

	result, err := e.swaps.Swap(ctx, &service.SwapRequest{
		AccountID: account.ID,
		FromToken: model.TokenUSDT,
		ToToken:   model.TokenUSDC,
		Amount:    decimal.NewFromInt(40),
	})
	require.NoError(t, err)

	testutil.AssertDecimal(t, "20", result.Received)
	testutil.AssertDecimal(t, "0.5", result.Rate)
	testutil.AssertDecimal(t, "60", result.Balances[model.TokenUSDT])
	testutil.AssertDecimal(t, "20", result.Balances[model.TokenUSDC])
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, result.Hash)

	testutil.AssertDecimal(t, "60", testutil.Balance(t, e.db, account.ID, model.TokenUSDT))
	testutil.AssertDecimal(t, "20", testutil.Balance(t, e.db, account.ID, model.TokenUSDC))

	entries := testutil.Entries(t, e.db, account.ID)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, model.TransactionKindSwap, entry.Kind)
	assert.Equal(t, model.TokenUSDT, entry.Token)
	assert.Equal(t, model.TransactionStatusCompleted, entry.Status)
	testutil.AssertDecimal(t, "-40", entry.Amount)
	testutil.AssertDecimal(t, "0", entry.Fee)

	meta := entry.Meta.Data().Swap
	require.NotNil(t, meta)
	assert.Equal(t, model.TokenUSDC, meta.ToToken)
	testutil.AssertDecimal(t, "20", meta.ToAmount)
	testutil.AssertDecimal(t, "0.5", meta.Rate)

	assert.Len(t, e.events(t, model.EventSwapCompleted), 1)
}

func TestSwapRejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	account := testutil.CreateAccount(t, e.db, testutil.Seed{USDT: "100"})
	restricted := testutil.CreateAccount(t, e.db, testutil.Seed{USDT: "100", Status: model.AccountStatusRestricted})

	cases := []struct {
		name string
		req  service.SwapRequest
		want error
	}{
		{"insufficient", service.SwapRequest{AccountID: account.ID, FromToken: "usdt", ToToken: "usdc", Amount: decimal.NewFromInt(101)}, service.ErrInsufficientBalance},
		{"same token", service.SwapRequest{AccountID: account.ID, FromToken: "usdt", ToToken: "usdt", Amount: decimal.NewFromInt(1)}, service.ErrInvalidToken},
		{"unknown token", service.SwapRequest{AccountID: account.ID, FromToken: "btc", ToToken: "usdt", Amount: decimal.NewFromInt(1)}, service.ErrInvalidToken},
		{"zero amount", service.SwapRequest{AccountID: account.ID, FromToken: "usdt", ToToken: "usdc", Amount: decimal.Zero}, service.ErrInvalidAmount},
		{"negative amount", service.SwapRequest{AccountID: account.ID, FromToken: "usdt", ToToken: "usdc", Amount: decimal.NewFromInt(-5)}, service.ErrInvalidAmount},
		{"restricted", service.SwapRequest{AccountID: restricted.ID, FromToken: "usdt", ToToken: "usdc", Amount: decimal.NewFromInt(1)}, service.ErrForbidden},
		{"missing account", service.SwapRequest{AccountID: 999999, FromToken: "usdt", ToToken: "usdc", Amount: decimal.NewFromInt(1)}, service.ErrNotFound},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := c.req
			_, err := e.swaps.Swap(ctx, &req)
			assert.ErrorIs(t, err, c.want)
		})
	}

	// 失败的操作不留流水、不动余额
	testutil.AssertDecimal(t, "100", testutil.Balance(t, e.db, account.ID, model.TokenUSDT))
	testutil.AssertDecimal(t, "0", testutil.Balance(t, e.db, account.ID, model.TokenUSDC))
	assert.Empty(t, testutil.Entries(t, e.db, account.ID))
	assert.Empty(t, testutil.Entries(t, e.db, restricted.ID))
	assert.Empty(t, e.events(t, model.EventSwapCompleted))
}

func TestSwapRestrictedIsRestrictedError(t *testing.T) {
	e := newEnv(t)
	for _, status := range []string{model.AccountStatusRestricted, model.AccountStatusBanned, model.AccountStatusSuspended} {
		account := testutil.CreateAccount(t, e.db, testutil.Seed{USDT: "10", Status: status})
		_, err := e.swaps.Swap(context.Background(), &service.SwapRequest{
			AccountID: account.ID, FromToken: "usdt", ToToken: "usdc", Amount: decimal.NewFromInt(1),
		})
		assert.ErrorIs(t, err, service.ErrRestricted, status)
	}
}
