package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cryptowallet/internal/config"
	"cryptowallet/internal/model"
	"cryptowallet/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// JournalService 流水查询，只读
type JournalService struct {
	cfg             *config.Config
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewJournalService(db *gorm.DB, cfg *config.Config) *JournalService {
	return &JournalService{
		cfg:             cfg,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// ListTransactions 最新的在前，limit 限制在 [1, transaction_list_limit]
func (s *JournalService) ListTransactions(ctx context.Context, accountID int64, limit int) ([]*model.Transaction, error) {
	maxLimit := s.cfg.Business.TransactionListLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	list, err := s.transactionRepo.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, internalError("查询流水", err)
	}
	return list, nil
}

type ExplorerEntry struct {
	Hash      string          `json:"hash"`
	Type      string          `json:"type"`
	Token     string          `json:"token"`
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	Status    string          `json:"status"`
	Sender    string          `json:"sender"`
	Receiver  string          `json:"receiver"`
	CreatedAt time.Time       `json:"created_at"`
}

// Explorer 按结算标识查询流水摘要
func (s *JournalService) Explorer(ctx context.Context, hash string) (*ExplorerEntry, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, invalidInput("hash 不能为空")
	}

	entries, err := s.transactionRepo.ListByHash(ctx, hash)
	if err != nil {
		return nil, internalError("查询流水", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: 未找到该交易", ErrNotFound)
	}

	first := entries[0]
	owner, err := s.accountRepo.GetByID(ctx, nil, first.AccountID)
	if err != nil {
		return nil, translateStoreError("查询账户", err)
	}

	out := &ExplorerEntry{
		Hash:      first.Hash,
		Type:      first.Kind,
		Token:     first.Token,
		Amount:    first.Amount.Abs(),
		Fee:       first.Fee,
		Status:    first.Status,
		CreatedAt: first.CreatedAt,
	}

	switch first.Kind {
	case model.TransactionKindTransfer:
		out.Sender = owner.Email
		out.Receiver = first.Counterparty
		if meta := first.Meta.Data().Transfer; meta != nil {
			out.Amount = meta.Amount
			if meta.Direction == model.DirectionReceived {
				out.Sender, out.Receiver = first.Counterparty, owner.Email
			}
		}
	case model.TransactionKindWithdrawal:
		out.Sender = owner.Email
		out.Receiver = first.Counterparty
	case model.TransactionKindSwap:
		out.Sender = owner.Email
		out.Receiver = owner.Email
	default:
		out.Sender = "platform"
		out.Receiver = owner.Email
	}
	return out, nil
}
