package service

import (
	"context"
	"fmt"
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

type SwapService struct {
	ledger
}

func NewSwapService(db *gorm.DB, locker lock.Locker, cfg *config.Config) *SwapService {
	return &SwapService{ledger: newLedger(db, locker, cfg)}
}

type SwapRequest struct {
	AccountID int64
	FromToken string
	ToToken   string
	Amount    decimal.Decimal
}

type SwapResult struct {
	Hash     string          `json:"hash"`
	Received decimal.Decimal `json:"received"`
	Rate     decimal.Decimal `json:"rate"`
	Balances model.Balances  `json:"balances"`
}

// Swap 按平台汇率兑换，不收手续费
func (s *SwapService) Swap(ctx context.Context, req *SwapRequest) (result *SwapResult, err error) {
	defer metrics.Observe("swap", time.Now(), &err)

	if err := requireToken(req.FromToken); err != nil {
		return nil, err
	}
	if err := requireToken(req.ToToken); err != nil {
		return nil, err
	}
	if req.FromToken == req.ToToken {
		return nil, fmt.Errorf("%w: 兑换币种不能相同", ErrInvalidToken)
	}
	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}

	settings, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	rate, err := settings.SwapRate(req.FromToken, req.ToToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	received := req.Amount.Mul(rate).Round(amountPlaces)

	if _, err := s.loadTrader(ctx, req.AccountID); err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, lock.AccountKey(req.AccountID))
	if err != nil {
		return nil, err
	}
	defer release()

	hash := idgen.SettlementHash()
	var balances model.Balances

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.balanceRepo.Deduct(ctx, tx, req.AccountID, req.FromToken, req.Amount); err != nil {
			return err
		}
		if err := s.balanceRepo.Increase(ctx, tx, req.AccountID, req.ToToken, received); err != nil {
			return err
		}

		entry := &model.Transaction{
			AccountID: req.AccountID,
			Kind:      model.TransactionKindSwap,
			Token:     req.FromToken,
			Amount:    req.Amount.Neg(),
			Fee:       decimal.Zero,
			Status:    model.TransactionStatusCompleted,
			Hash:      hash,
			Meta: datatypes.NewJSONType(model.TransactionMeta{
				Swap: &model.SwapMeta{
					FromToken:  req.FromToken,
					ToToken:    req.ToToken,
					FromAmount: req.Amount,
					ToAmount:   received,
					Rate:       rate,
				},
			}),
		}
		if err := s.transactionRepo.Create(ctx, tx, entry); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		if err := s.publish(ctx, tx, model.EventSwapCompleted, map[string]interface{}{
			"account_id":  req.AccountID,
			"hash":        hash,
			"from_token":  req.FromToken,
			"to_token":    req.ToToken,
			"from_amount": req.Amount,
			"to_amount":   received,
			"rate":        rate,
		}); err != nil {
			return err
		}

		var err error
		balances, err = s.balances(ctx, tx, req.AccountID)
		return err
	})
	if err != nil {
		return nil, translateStoreError("兑换", err)
	}

	logger.Log.Info("兑换成功",
		zap.Int64("account_id", req.AccountID),
		zap.String("from", req.FromToken),
		zap.String("to", req.ToToken),
		zap.String("amount", req.Amount.String()),
		zap.String("received", received.String()),
		zap.String("hash", hash))

	return &SwapResult{
		Hash:     hash,
		Received: received,
		Rate:     rate,
		Balances: balances,
	}, nil
}
