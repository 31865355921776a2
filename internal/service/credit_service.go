package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cryptowallet/internal/config"
	"cryptowallet/internal/infrastructure/lock"
	"cryptowallet/internal/logger"
	"cryptowallet/internal/metrics"
	"cryptowallet/internal/model"
	"cryptowallet/pkg/idgen"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CreditService struct {
	ledger
}

func NewCreditService(db *gorm.DB, locker lock.Locker, cfg *config.Config) *CreditService {
	return &CreditService{ledger: newLedger(db, locker, cfg)}
}

type AdminCreditRequest struct {
	AdminID   int64
	AccountID int64
	Token     string
	Amount    decimal.Decimal
	Kind      string // deposit / bonus
	Note      string
}

// AdminCredit 管理员手工入账，不收费，不扣任何一方
func (s *CreditService) AdminCredit(ctx context.Context, req *AdminCreditRequest) (result *model.Transaction, err error) {
	defer metrics.Observe("admin_credit", time.Now(), &err)

	if err := requireToken(req.Token); err != nil {
		return nil, err
	}
	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}
	if req.Kind != model.TransactionKindDeposit && req.Kind != model.TransactionKindBonus {
		return nil, invalidInput("kind 只能是 deposit 或 bonus")
	}

	admin, err := s.requireAdmin(ctx, req.AdminID)
	if err != nil {
		return nil, err
	}
	account, err := s.loadAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	entry := &model.Transaction{
		AccountID: account.ID,
		Kind:      req.Kind,
		Token:     req.Token,
		Amount:    req.Amount,
		Fee:       decimal.Zero,
		Status:    model.TransactionStatusCompleted,
		Hash:      idgen.SettlementHash(),
		Meta: datatypes.NewJSONType(model.TransactionMeta{
			Credit: &model.CreditMeta{AdminID: admin.ID, Note: strings.TrimSpace(req.Note)},
		}),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.balanceRepo.Increase(ctx, tx, account.ID, req.Token, req.Amount); err != nil {
			return fmt.Errorf("入账失败: %w", err)
		}
		if err := s.transactionRepo.Create(ctx, tx, entry); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}
		return s.publish(ctx, tx, model.EventCreditCompleted, map[string]interface{}{
			"account_id": account.ID,
			"admin_id":   admin.ID,
			"kind":       req.Kind,
			"token":      req.Token,
			"amount":     req.Amount,
			"hash":       entry.Hash,
		})
	})
	if err != nil {
		return nil, translateStoreError("手工入账", err)
	}

	logger.Log.Info("手工入账成功",
		zap.Int64("account_id", account.ID),
		zap.Int64("admin_id", admin.ID),
		zap.String("kind", req.Kind),
		zap.String("token", req.Token),
		zap.String("amount", req.Amount.String()),
		zap.String("hash", entry.Hash))

	return entry, nil
}
