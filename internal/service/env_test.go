package service_test

import (
	"context"
	"testing"

	"cryptowallet/internal/config"
	"cryptowallet/internal/model"
	"cryptowallet/internal/repository"
	"cryptowallet/internal/service"
	"cryptowallet/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type env struct {
	db  *gorm.DB
	cfg *config.Config

	accounts  *service.AccountService
	swaps     *service.SwapService
	transfers *service.TransferService
	withdraws *service.WithdrawalService
	deposits  *service.DepositService
	credits   *service.CreditService
	journal   *service.JournalService
	settings  *service.SettingsService
	addresses *service.AddressService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := testutil.NewDB(t)
	cfg := testutil.Config()
	locker := testutil.NewLocker(t)

	return &env{
		db:        db,
		cfg:       cfg,
		accounts:  service.NewAccountService(db, locker, cfg),
		swaps:     service.NewSwapService(db, locker, cfg),
		transfers: service.NewTransferService(db, locker, cfg),
		withdraws: service.NewWithdrawalService(db, locker, cfg),
		deposits:  service.NewDepositService(db, locker, cfg),
		credits:   service.NewCreditService(db, locker, cfg),
		journal:   service.NewJournalService(db, cfg),
		settings:  service.NewSettingsService(db, locker, cfg),
		addresses: service.NewAddressService(db, locker, cfg),
	}
}

func (e *env) events(t *testing.T, eventType string) []*model.OutboxMessage {
	t.Helper()

	list, err := repository.NewOutboxRepository(e.db).ListByEventType(context.Background(), eventType)
	require.NoError(t, err)
	return list
}

func (e *env) withdrawal(t *testing.T, id int64) *model.WithdrawalRequest {
	t.Helper()

	w, err := repository.NewWithdrawalRepository(e.db).GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return w
}

func (e *env) entryByWithdrawal(t *testing.T, id int64) *model.Transaction {
	t.Helper()

	entry, err := repository.NewTransactionRepository(e.db).GetByWithdrawalID(context.Background(), nil, id)
	require.NoError(t, err)
	return entry
}

func (e *env) entry(t *testing.T, id int64) *model.Transaction {
	t.Helper()

	entry, err := repository.NewTransactionRepository(e.db).GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return entry
}
