package job_test

import (
	"context"
	"errors"
	"testing"

	"cryptowallet/internal/job"
	"cryptowallet/internal/model"
	"cryptowallet/internal/service"
	"cryptowallet/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) IsConfirmed(ctx context.Context, deposit *model.Transaction) (bool, error) {
	args := m.Called(ctx, deposit)
	return args.Bool(0), args.Error(1)
}

func byAmount(amount string) interface{} {
	return mock.MatchedBy(func(d *model.Transaction) bool {
		return d.Amount.Equal(decimal.RequireFromString(amount))
	})
}

func TestDepositSweeper(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testutil.Config()
	ctx := context.Background()
	deposits := service.NewDepositService(db, testutil.NewLocker(t), cfg)
	account := testutil.CreateAccount(t, db, testutil.Seed{})

	for _, amount := range []string{"100", "20", "8"} {
		_, err := deposits.RecordDeposit(ctx, &service.RecordDepositRequest{
			AccountID: account.ID, Token: model.TokenUSDT, Amount: decimal.RequireFromString(amount),
		})
		require.NoError(t, err)
	}

	confirmer := new(MockConfirmer)
	confirmer.On("IsConfirmed", mock.Anything, byAmount("100")).Return(true, nil).Once()
	confirmer.On("IsConfirmed", mock.Anything, byAmount("20")).Return(false, nil).Once()
	confirmer.On("IsConfirmed", mock.Anything, byAmount("8")).Return(false, errors.New("indexer down")).Once()

	sweeper := job.NewDepositSweeper(db, deposits, confirmer, cfg)
	stats := sweeper.SweepOnce(ctx)

	assert.Equal(t, job.SweepStats{Scanned: 3, Settled: 1, Unconfirmed: 1, Failed: 1}, stats)
	testutil.AssertDecimal(t, "130", testutil.Balance(t, db, account.ID, model.TokenUSDT))
	confirmer.AssertExpectations(t)

	// 下一轮只剩两笔，确认后不再发首充奖励
	confirmer.On("IsConfirmed", mock.Anything, mock.Anything).Return(true, nil).Twice()
	stats = sweeper.SweepOnce(ctx)

	assert.Equal(t, job.SweepStats{Scanned: 2, Settled: 2}, stats)
	testutil.AssertDecimal(t, "158", testutil.Balance(t, db, account.ID, model.TokenUSDT))
	confirmer.AssertExpectations(t)

	assert.Equal(t, job.SweepStats{}, sweeper.SweepOnce(ctx))
}

func TestDepositSweeperStartStop(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testutil.Config()
	deposits := service.NewDepositService(db, testutil.NewLocker(t), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := job.NewDepositSweeper(db, deposits, new(MockConfirmer), cfg)
	require.NoError(t, sweeper.Start(ctx))
	sweeper.Stop()

	cfg.Business.DepositSweepSpec = "not a cron spec"
	bad := job.NewDepositSweeper(db, deposits, new(MockConfirmer), cfg)
	assert.Error(t, bad.Start(ctx))
}

func TestDepositSweeperReachesPastUnconfirmedBacklog(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testutil.Config()
	cfg.Business.SweepBatchSize = 2
	ctx := context.Background()
	deposits := service.NewDepositService(db, testutil.NewLocker(t), cfg)
	account := testutil.CreateAccount(t, db, testutil.Seed{})

	for _, amount := range []string{"1", "2", "77"} {
		_, err := deposits.RecordDeposit(ctx, &service.RecordDepositRequest{
			AccountID: account.ID, Token: model.TokenUSDT, Amount: decimal.RequireFromString(amount),
		})
		require.NoError(t, err)
	}

	confirmer := new(MockConfirmer)
	sweeper := job.NewDepositSweeper(db, deposits, confirmer, cfg)

	// 前两笔一直不确认，第三笔也必须每轮都被查到
	confirmer.On("IsConfirmed", mock.Anything, mock.Anything).Return(false, nil).Times(6)
	for i := 0; i < 2; i++ {
		assert.Equal(t, job.SweepStats{Scanned: 3, Unconfirmed: 3}, sweeper.SweepOnce(ctx))
	}
	confirmer.AssertNumberOfCalls(t, "IsConfirmed", 6)
	confirmer.AssertExpectations(t)

	confirmer.On("IsConfirmed", mock.Anything, byAmount("77")).Return(true, nil).Once()
	confirmer.On("IsConfirmed", mock.Anything, mock.Anything).Return(false, nil).Twice()
	assert.Equal(t, job.SweepStats{Scanned: 3, Settled: 1, Unconfirmed: 2}, sweeper.SweepOnce(ctx))

	// 77 >= 50 拿到 30% 首充奖励
	testutil.AssertDecimal(t, "100.1", testutil.Balance(t, db, account.ID, model.TokenUSDT))
}
