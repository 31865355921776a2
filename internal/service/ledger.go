package service

import (
	"context"
	"encoding/json"
	"fmt"

	"cryptowallet/internal/config"
	"cryptowallet/internal/infrastructure/lock"
	"cryptowallet/internal/model"
	"cryptowallet/internal/repository"
	"cryptowallet/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// amountPlaces 手续费、兑换结果保留的小数位，四舍五入
const amountPlaces = 8

var hundred = decimal.NewFromInt(100)

// ledger 各账本服务共用的依赖和步骤
type ledger struct {
	db              *gorm.DB
	cfg             *config.Config
	locker          lock.Locker
	accountRepo     *repository.AccountRepository
	balanceRepo     *repository.BalanceRepository
	transactionRepo *repository.TransactionRepository
	withdrawalRepo  *repository.WithdrawalRepository
	settingsRepo    *repository.SettingsRepository
	outboxRepo      *repository.OutboxRepository
}

func newLedger(db *gorm.DB, locker lock.Locker, cfg *config.Config) ledger {
	return ledger{
		db:              db,
		cfg:             cfg,
		locker:          locker,
		accountRepo:     repository.NewAccountRepository(db),
		balanceRepo:     repository.NewBalanceRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		withdrawalRepo:  repository.NewWithdrawalRepository(db),
		settingsRepo:    repository.NewSettingsRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

func (l *ledger) acquire(ctx context.Context, key string) (func(), error) {
	release, err := l.locker.Acquire(ctx, key)
	if err != nil {
		return nil, translateStoreError("获取锁", err)
	}
	return release, nil
}

// snapshot 读取一次平台配置，整个操作都用这一份
func (l *ledger) snapshot(ctx context.Context) (*model.PlatformSettings, error) {
	settings, err := l.settingsRepo.Get(ctx)
	if err != nil {
		return nil, internalError("读取平台配置", err)
	}
	return settings, nil
}

func (l *ledger) loadAccount(ctx context.Context, id int64) (*model.Account, error) {
	account, err := l.accountRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, translateStoreError("查询账户", err)
	}
	return account, nil
}

// loadTrader 兑换、转账、提现的发起人必须是 active 账户
func (l *ledger) loadTrader(ctx context.Context, id int64) (*model.Account, error) {
	account, err := l.loadAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if !account.CanTrade() {
		return nil, fmt.Errorf("%w: status=%s", ErrRestricted, account.Status)
	}
	return account, nil
}

// requireAdmin 角色以数据库为准，不信任 token 里的声明
func (l *ledger) requireAdmin(ctx context.Context, adminID int64) (*model.Account, error) {
	admin, err := l.accountRepo.GetByID(ctx, nil, adminID)
	if err != nil {
		return nil, fmt.Errorf("%w: 管理员账户不存在", ErrUnauthorized)
	}
	if !admin.IsAdmin() || admin.Status != model.AccountStatusActive {
		return nil, fmt.Errorf("%w: 需要管理员权限", ErrForbidden)
	}
	return admin, nil
}

// publish 在当前事务里写一条 outbox 消息
func (l *ledger) publish(ctx context.Context, tx *gorm.DB, eventType string, payload map[string]interface{}) error {
	eventNo := idgen.GenerateEventNo()
	payload["event_no"] = eventNo
	payload["event_type"] = eventType

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	msg := &model.OutboxMessage{
		MessageKey: eventNo,
		Topic:      l.cfg.MQ.Topic.LedgerEvent,
		EventType:  eventType,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := l.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}

func (l *ledger) balances(ctx context.Context, tx *gorm.DB, accountID int64) (model.Balances, error) {
	rows, err := l.balanceRepo.ListByAccount(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	return model.NewBalances(rows), nil
}

// requirePositive 金额必须大于 0，且小数位不超过 amountPlaces
func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: 金额必须大于0", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Truncate(amountPlaces)) {
		return fmt.Errorf("%w: 金额最多 %d 位小数", ErrInvalidAmount, amountPlaces)
	}
	return nil
}

func requireToken(token string) error {
	if !model.IsValidToken(token) {
		return fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	return nil
}

// percentOf amount × percent / 100，保留 8 位小数
func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred).Round(amountPlaces)
}

func int64Ptr(v int64) *int64 {
	return &v
}
