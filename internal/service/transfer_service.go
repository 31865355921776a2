package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cryptowallet/internal/config"
	"cryptowallet/internal/infrastructure/lock"
	"cryptowallet/internal/logger"
	"cryptowallet/internal/metrics"
	"cryptowallet/internal/model"
	"cryptowallet/internal/repository"
	"cryptowallet/pkg/idgen"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TransferService struct {
	ledger
}

func NewTransferService(db *gorm.DB, locker lock.Locker, cfg *config.Config) *TransferService {
	return &TransferService{ledger: newLedger(db, locker, cfg)}
}

type TransferRequest struct {
	AccountID int64
	Recipient string // 邮箱或账户ID
	Token     string
	Amount    decimal.Decimal
}

type TransferResult struct {
	Hash        string          `json:"hash"`
	Amount      decimal.Decimal `json:"amount"`
	Fee         decimal.Decimal `json:"fee"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	RecipientID int64           `json:"recipient_id"`
}

// Recipient 转账前校验收款人，只返回展示用信息
type Recipient struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *TransferService) LookupRecipient(ctx context.Context, ref string) (*Recipient, error) {
	account, err := s.resolveRecipient(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &Recipient{ID: account.ID, Email: account.Email, Name: account.Name}, nil
}

// resolveRecipient 含 @ 按邮箱查找，否则按账户ID查找
func (s *TransferService) resolveRecipient(ctx context.Context, ref string) (*model.Account, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, invalidInput("收款人不能为空")
	}

	var (
		account *model.Account
		err     error
	)
	if strings.Contains(ref, "@") {
		account, err = s.accountRepo.GetByEmail(ctx, nil, normalizeEmail(ref))
	} else {
		id, parseErr := strconv.ParseInt(ref, 10, 64)
		if parseErr != nil {
			return nil, invalidInput("收款人ID格式错误")
		}
		account, err = s.accountRepo.GetByID(ctx, nil, id)
	}
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, internalError("查询收款账户", err)
	}
	return account, nil
}

// Transfer 站内转账：付款方扣 amount+fee，收款方到账 amount，手续费归平台
func (s *TransferService) Transfer(ctx context.Context, req *TransferRequest) (result *TransferResult, err error) {
	defer metrics.Observe("transfer", time.Now(), &err)

	if err := requireToken(req.Token); err != nil {
		return nil, err
	}
	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}

	sender, err := s.loadTrader(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.resolveRecipient(ctx, req.Recipient)
	if err != nil {
		return nil, err
	}
	if recipient.ID == sender.ID {
		return nil, ErrSelfTransfer
	}

	settings, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	fee := percentOf(req.Amount, settings.TransferFeePercent)
	totalDebit := req.Amount.Add(fee)

	// 收款方只加不减，只锁付款方
	release, err := s.acquire(ctx, lock.AccountKey(sender.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	hash := idgen.SettlementHash()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.balanceRepo.Deduct(ctx, tx, sender.ID, req.Token, totalDebit); err != nil {
			return err
		}
		if err := s.balanceRepo.Increase(ctx, tx, recipient.ID, req.Token, req.Amount); err != nil {
			return err
		}

		sent := &model.Transaction{
			AccountID:      sender.ID,
			Kind:           model.TransactionKindTransfer,
			Token:          req.Token,
			Amount:         totalDebit.Neg(),
			Fee:            fee,
			Status:         model.TransactionStatusCompleted,
			Hash:           hash,
			CounterpartyID: int64Ptr(recipient.ID),
			Counterparty:   recipient.Email,
			Meta: datatypes.NewJSONType(model.TransactionMeta{
				Transfer: &model.TransferMeta{
					Direction: model.DirectionSent,
					PeerID:    recipient.ID,
					PeerEmail: recipient.Email,
					Amount:    req.Amount,
				},
			}),
		}
		received := &model.Transaction{
			AccountID:      recipient.ID,
			Kind:           model.TransactionKindTransfer,
			Token:          req.Token,
			Amount:         req.Amount,
			Fee:            decimal.Zero,
			Status:         model.TransactionStatusCompleted,
			Hash:           hash,
			CounterpartyID: int64Ptr(sender.ID),
			Counterparty:   sender.Email,
			Meta: datatypes.NewJSONType(model.TransactionMeta{
				Transfer: &model.TransferMeta{
					Direction: model.DirectionReceived,
					PeerID:    sender.ID,
					PeerEmail: sender.Email,
					Amount:    req.Amount,
				},
			}),
		}
		for _, entry := range []*model.Transaction{sent, received} {
			if err := s.transactionRepo.Create(ctx, tx, entry); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}
		}

		return s.publish(ctx, tx, model.EventTransferCompleted, map[string]interface{}{
			"hash":         hash,
			"sender_id":    sender.ID,
			"recipient_id": recipient.ID,
			"token":        req.Token,
			"amount":       req.Amount,
			"fee":          fee,
		})
	})
	if err != nil {
		return nil, translateStoreError("转账", err)
	}

	logger.Log.Info("转账成功",
		zap.Int64("sender_id", sender.ID),
		zap.Int64("recipient_id", recipient.ID),
		zap.String("token", req.Token),
		zap.String("amount", req.Amount.String()),
		zap.String("fee", fee.String()),
		zap.String("hash", hash))

	return &TransferResult{
		Hash:        hash,
		Amount:      req.Amount,
		Fee:         fee,
		TotalDebit:  totalDebit,
		RecipientID: recipient.ID,
	}, nil
}
