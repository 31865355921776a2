package service_test

import (
	"context"
	"sync"
	"testing"

	"cryptowallet/internal/model"
	"cryptowallet/internal/service"
	"cryptowallet/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) deposit(t *testing.T, accountID int64, token, amount string) *model.Transaction {
	t.Helper()

	entry, err := e.deposits.RecordDeposit(context.Background(), &service.RecordDepositRequest{
		AccountID: accountID,
		Token:     token,
		Amount:    decimal.RequireFromString(amount),
		Reference: "0xchain",
	})
	require.NoError(t, err)
	return entry
}

func (e *env) settle(t *testing.T, entry *model.Transaction) *service.SettleResult {
	t.Helper()

	result, err := e.deposits.SettleDeposit(context.Background(), entry)
	require.NoError(t, err)
	return result
}

func TestRecordDeposit(t *testing.T) {
	e := newEnv(t)
	account := testutil.CreateAccount(t, e.db, testutil.Seed{})

	entry := e.deposit(t, account.ID, model.TokenUSDT, "100")

	assert.Equal(t, model.TransactionKindDeposit, entry.Kind)
	assert.Equal(t, model.TransactionStatusPending, entry.Status)
	assert.Equal(t, "0xchain", entry.Meta.Data().Deposit.Reference)
	// 确认前不入账
	testutil.AssertDecimal(t, "0", testutil.Balance(t, e.db, account.ID, model.TokenUSDT))
	assert.Len(t, e.events(t, model.EventDepositRecorded), 1)
}

func TestRecordDepositAccountStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	restricted := testutil.CreateAccount(t, e.db, testutil.Seed{Status: model.AccountStatusRestricted})
	e.deposit(t, restricted.ID, model.TokenUSDC, "10")

	for _, status := range []string{model.AccountStatusBanned, model.AccountStatusSuspended} {
		account := testutil.CreateAccount(t, e.db, testutil.Seed{Status: status})
		_, err := e.deposits.RecordDeposit(ctx, &service.RecordDepositRequest{
			AccountID: account.ID, Token: "usdt", Amount: decimal.NewFromInt(10),
		})
		assert.ErrorIs(t, err, service.ErrForbidden, status)
	}

	_, err := e.deposits.RecordDeposit(ctx, &service.RecordDepositRequest{
		AccountID: restricted.ID, Token: "usdt", Amount: decimal.Zero,
	})
	assert.ErrorIs(t, err, service.ErrInvalidAmount)
}

func TestSettleFirstDepositBonus(t *testing.T) {
	e := newEnv(t)
	account := testutil.CreateAccount(t, e.db, testutil.Seed{})

	first := e.settle(t, e.deposit(t, account.ID, model.TokenUSDT, "100"))
	testutil.AssertDecimal(t, "30", first.BonusAmount)
	testutil.AssertDecimal(t, "130", first.TotalCredited)
	testutil.AssertDecimal(t, "130", testutil.Balance(t, e.db, account.ID, model.TokenUSDT))
	assert.NotNil(t, testutil.Account(t, e.db, account.ID).FirstBonusAt)

	entry := e.entry(t, first.DepositID)
	assert.Equal(t, model.TransactionStatusCompleted, entry.Status)
	testutil.AssertDecimal(t, "100", entry.Amount, "journal keeps the deposited amount")
	require.NotNil(t, entry.Meta.Data().Deposit.BonusAmount)
	testutil.AssertDecimal(t, "30", *entry.Meta.Data().Deposit.BonusAmount)
	testutil.AssertDecimal(t, "130", *entry.Meta.Data().Deposit.TotalCredited)

	second := e.settle(t, e.deposit(t, account.ID, model.TokenUSDT, "100"))
	testutil.AssertDecimal(t, "0", second.BonusAmount)
	testutil.AssertDecimal(t, "230", testutil.Balance(t, e.db, account.ID, model.TokenUSDT))

	assert.Len(t, e.events(t, model.EventDepositSettled), 2)
}

func TestSettleSmallFirstDepositForfeitsBonus(t *testing.T) {
	e := newEnv(t)
	account := testutil.CreateAccount(t, e.db, testutil.Seed{})

	small := e.settle(t, e.deposit(t, account.ID, model.TokenUSDC, "40"))
	testutil.AssertDecimal(t, "0", small.BonusAmount)

	// 第一笔已完成，后面的大额充值不再算首充
	large := e.settle(t, e.deposit(t, account.ID, model.TokenUSDC, "100"))
	testutil.AssertDecimal(t, "0", large.BonusAmount)
	testutil.AssertDecimal(t, "140", testutil.Balance(t, e.db, account.ID, model.TokenUSDC))
	assert.Nil(t, testutil.Account(t, e.db, account.ID).FirstBonusAt)
}

func TestSettleDepositTwice(t *testing.T) {
	e := newEnv(t)
	account := testutil.CreateAccount(t, e.db, testutil.Seed{})
	entry := e.deposit(t, account.ID, model.TokenUSDT, "100")
	e.settle(t, entry)

	_, err := e.deposits.SettleDeposit(context.Background(), entry)
	assert.ErrorIs(t, err, service.ErrAlreadyProcessed)
	testutil.AssertDecimal(t, "130", testutil.Balance(t, e.db, account.ID, model.TokenUSDT))
}

func TestSettleDepositRejectsOtherKinds(t *testing.T) {
	e := newEnv(t)
	account := testutil.CreateAccount(t, e.db, testutil.Seed{USDT: "100"})
	w := e.withdraw(t, account.ID, "10")

	_, err := e.deposits.SettleDeposit(context.Background(), e.entryByWithdrawal(t, w.ID))
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = e.deposits.SettleDeposit(context.Background(), nil)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestSettleDepositPaysReferral(t *testing.T) {
	e := newEnv(t)
	referrer := testutil.CreateAccount(t, e.db, testutil.Seed{})
	referee := testutil.CreateAccount(t, e.db, testutil.Seed{ReferredBy: &referrer.ID})

	// usdc 充值，奖励仍以 usdt 发放
	result := e.settle(t, e.deposit(t, referee.ID, model.TokenUSDC, "60"))
	require.NotNil(t, result.ReferrerID)
	assert.Equal(t, referrer.ID, *result.ReferrerID)
	testutil.AssertDecimal(t, "2", result.ReferralReward)

	testutil.AssertDecimal(t, "2", testutil.Balance(t, e.db, referrer.ID, model.TokenUSDT))
	testutil.AssertDecimal(t, "0", testutil.Balance(t, e.db, referrer.ID, model.TokenUSDC))
	testutil.AssertDecimal(t, "78", testutil.Balance(t, e.db, referee.ID, model.TokenUSDC))
	testutil.AssertDecimal(t, "2", testutil.Account(t, e.db, referrer.ID).ReferralEarnings)

	entries := testutil.Entries(t, e.db, referrer.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, model.TransactionKindReferral, entries[0].Kind)
	assert.Equal(t, model.TokenUSDT, entries[0].Token)
	meta := entries[0].Meta.Data().Referral
	require.NotNil(t, meta)
	assert.Equal(t, referee.ID, meta.RefereeID)
	assert.Equal(t, model.TokenUSDC, meta.DepositToken)

	// 之后每笔达标充值都发放
	e.settle(t, e.deposit(t, referee.ID, model.TokenUSDT, "64"))
	e.settle(t, e.deposit(t, referee.ID, model.TokenUSDT, "10"))
	testutil.AssertDecimal(t, "4", testutil.Balance(t, e.db, referrer.ID, model.TokenUSDT))
	assert.Len(t, e.events(t, model.EventReferralPaid), 2)

	summary, err := e.accounts.Referrals(context.Background(), referrer.ID)
	require.NoError(t, err)
	testutil.AssertDecimal(t, "4", summary.TotalEarnings)
	require.Len(t, summary.Referred, 1)
	testutil.AssertDecimal(t, "4", summary.Referred[0].Earnings)
}

func TestConcurrentSettleCreditsOnce(t *testing.T) {
	e := newEnv(t)
	account := testutil.CreateAccount(t, e.db, testutil.Seed{})
	entry := e.deposit(t, account.ID, model.TokenUSDT, "100")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		settled int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.deposits.SettleDeposit(context.Background(), entry)
			if err == nil {
				mu.Lock()
				settled++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, service.ErrAlreadyProcessed)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, settled)
	testutil.AssertDecimal(t, "130", testutil.Balance(t, e.db, account.ID, model.TokenUSDT))
}

func TestAdminCredit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, e.db)
	account := testutil.CreateAccount(t, e.db, testutil.Seed{Status: model.AccountStatusRestricted})

	entry, err := e.credits.AdminCredit(ctx, &service.AdminCreditRequest{
		AdminID: admin.ID, AccountID: account.ID, Token: "usdc", Amount: decimal.RequireFromString("12.5"),
		Kind: model.TransactionKindBonus, Note: " 活动补偿 ",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusCompleted, entry.Status)
	assert.Equal(t, model.TransactionKindBonus, entry.Kind)
	assert.Equal(t, admin.ID, entry.Meta.Data().Credit.AdminID)
	assert.Equal(t, "活动补偿", entry.Meta.Data().Credit.Note)
	testutil.AssertDecimal(t, "12.5", testutil.Balance(t, e.db, account.ID, model.TokenUSDC))

	// 手工入账不触发首充奖励
	assert.Nil(t, testutil.Account(t, e.db, account.ID).FirstBonusAt)
	assert.Len(t, e.events(t, model.EventCreditCompleted), 1)

	cases := []struct {
		name string
		req  service.AdminCreditRequest
		want error
	}{
		{"bad kind", service.AdminCreditRequest{AdminID: admin.ID, AccountID: account.ID, Token: "usdt", Amount: decimal.NewFromInt(1), Kind: "swap"}, service.ErrInvalidInput},
		{"not admin", service.AdminCreditRequest{AdminID: account.ID, AccountID: account.ID, Token: "usdt", Amount: decimal.NewFromInt(1), Kind: "deposit"}, service.ErrForbidden},
		{"missing account", service.AdminCreditRequest{AdminID: admin.ID, AccountID: 424242, Token: "usdt", Amount: decimal.NewFromInt(1), Kind: "deposit"}, service.ErrNotFound},
		{"zero", service.AdminCreditRequest{AdminID: admin.ID, AccountID: account.ID, Token: "usdt", Amount: decimal.Zero, Kind: "deposit"}, service.ErrInvalidAmount},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := c.req
			_, err := e.credits.AdminCredit(ctx, &req)
			assert.ErrorIs(t, err, c.want)
		})
	}
	testutil.AssertDecimal(t, "0", testutil.Balance(t, e.db, account.ID, model.TokenUSDT))
}
