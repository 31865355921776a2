// Package testutil 测试公共夹具：内存 sqlite、miniredis 账户锁、默认配置和账户种子数据
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"cryptowallet/internal/config"
	"cryptowallet/internal/infrastructure/database"
	"cryptowallet/internal/infrastructure/lock"
	"cryptowallet/internal/model"
	"cryptowallet/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const Password = "password123"

var seq atomic.Int64

// NewDB 每次调用都是一份独立的内存库
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(&config.DatabaseConfig{Driver: "sqlite", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// NewLocker 重试间隔很短，并发用例不会等太久
func NewLocker(t testing.TB) lock.Locker {
	t.Helper()

	_, client := NewRedis(t)
	return lock.NewRedisLocker(client, 10*time.Second, 5*time.Millisecond, 1000)
}

func Config() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, Mode: "test"},
		MQ: config.MQConfig{
			Driver: "kafka",
			Topic:  config.MQTopicConfig{LedgerEvent: "wallet.ledger.events"},
		},
		JWT: config.JWTConfig{Secret: "test-secret", TTLHours: 1},
		Business: config.BusinessConfig{
			MinWithdrawal:        "10",
			LockTTLSeconds:       10,
			LockRetryIntervalMs:  5,
			LockMaxRetries:       1000,
			DepositSweepSpec:     "@every 1m",
			SweepBatchSize:       100,
			OutboxIntervalMs:     100,
			MaxRetryCount:        3,
			TransactionListLimit: 100,
		},
		Oracle: config.OracleConfig{Mode: "random", ConfirmProbability: 1},
	}
}

// Seed 账户种子数据，余额为空的币种按 0 处理
type Seed struct {
	Email      string
	Role       string
	Status     string
	ReferredBy *int64
	USDT       string
	USDC       string
}

func CreateAccount(t testing.TB, db *gorm.DB, seed Seed) *model.Account {
	t.Helper()
	ctx := context.Background()

	n := seq.Add(1)
	if seed.Email == "" {
		seed.Email = fmt.Sprintf("user%d@example.com", n)
	}
	if seed.Role == "" {
		seed.Role = model.RoleUser
	}
	if seed.Status == "" {
		seed.Status = model.AccountStatusActive
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)

	account := &model.Account{
		Email:            seed.Email,
		Name:             fmt.Sprintf("user-%d", n),
		PasswordHash:     string(hash),
		Role:             seed.Role,
		Status:           seed.Status,
		ReferralCode:     fmt.Sprintf("SEED%04d", n),
		ReferredBy:       seed.ReferredBy,
		ReferralEarnings: decimal.Zero,
	}

	accountRepo := repository.NewAccountRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	require.NoError(t, accountRepo.Create(ctx, nil, account))
	require.NoError(t, balanceRepo.CreateZeroRows(ctx, nil, account.ID))

	for token, amount := range map[string]string{model.TokenUSDT: seed.USDT, model.TokenUSDC: seed.USDC} {
		if amount == "" {
			continue
		}
		require.NoError(t, balanceRepo.Increase(ctx, nil, account.ID, token, decimal.RequireFromString(amount)))
	}
	return account
}

func CreateAdmin(t testing.TB, db *gorm.DB) *model.Account {
	t.Helper()
	return CreateAccount(t, db, Seed{Role: model.RoleAdmin})
}

func Balance(t testing.TB, db *gorm.DB, accountID int64, token string) decimal.Decimal {
	t.Helper()

	row, err := repository.NewBalanceRepository(db).Get(context.Background(), nil, accountID, token)
	require.NoError(t, err)
	return row.Amount
}

func Account(t testing.TB, db *gorm.DB, id int64) *model.Account {
	t.Helper()

	account, err := repository.NewAccountRepository(db).GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return account
}

// Entries 账户的全部流水，最新的在前
func Entries(t testing.TB, db *gorm.DB, accountID int64) []*model.Transaction {
	t.Helper()

	list, err := repository.NewTransactionRepository(db).ListByAccount(context.Background(), accountID, 1000)
	require.NoError(t, err)
	return list
}

// UpdateSettings 直接改库里的平台配置
func UpdateSettings(t testing.TB, db *gorm.DB, mutate func(s *model.PlatformSettings)) *model.PlatformSettings {
	t.Helper()

	repo := repository.NewSettingsRepository(db)
	settings, err := repo.Get(context.Background())
	require.NoError(t, err)
	mutate(settings)
	require.NoError(t, repo.Save(context.Background(), settings))
	return settings
}

// AssertDecimal 按数值比较，不比较精度
func AssertDecimal(t testing.TB, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) bool {
	t.Helper()

	want := decimal.RequireFromString(expected)
	if want.Equal(actual) {
		return true
	}
	return assert.Fail(t, fmt.Sprintf("decimal not equal: expected %s, actual %s", want, actual), msgAndArgs...)
}
