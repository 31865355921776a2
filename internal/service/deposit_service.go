package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
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

type DepositService struct {
	ledger
	addressRepo *repository.AddressRepository
}

func NewDepositService(db *gorm.DB, locker lock.Locker, cfg *config.Config) *DepositService {
	return &DepositService{
		ledger:      newLedger(db, locker, cfg),
		addressRepo: repository.NewAddressRepository(db),
	}
}

type RecordDepositRequest struct {
	AccountID int64
	Token     string
	Amount    decimal.Decimal
	Reference string // 链上交易哈希等外部凭证
}

// RecordDeposit 登记一笔待确认充值，由确认任务异步结算
//
// restricted 账户允许充值，banned / suspended 不允许
func (s *DepositService) RecordDeposit(ctx context.Context, req *RecordDepositRequest) (result *model.Transaction, err error) {
	defer metrics.Observe("deposit_record", time.Now(), &err)

	if err := requireToken(req.Token); err != nil {
		return nil, err
	}
	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}

	account, err := s.loadAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !account.CanLogin() {
		return nil, fmt.Errorf("%w: status=%s", ErrForbidden, account.Status)
	}

	entry := &model.Transaction{
		AccountID: account.ID,
		Kind:      model.TransactionKindDeposit,
		Token:     req.Token,
		Amount:    req.Amount,
		Fee:       decimal.Zero,
		Status:    model.TransactionStatusPending,
		Hash:      idgen.SettlementHash(),
		Meta: datatypes.NewJSONType(model.TransactionMeta{
			Deposit: &model.DepositMeta{Reference: strings.TrimSpace(req.Reference)},
		}),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.transactionRepo.Create(ctx, tx, entry); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}
		return s.publish(ctx, tx, model.EventDepositRecorded, map[string]interface{}{
			"deposit_id": entry.ID,
			"account_id": account.ID,
			"token":      req.Token,
			"amount":     req.Amount,
			"reference":  req.Reference,
		})
	})
	if err != nil {
		return nil, translateStoreError("登记充值", err)
	}

	logger.Log.Info("充值已登记",
		zap.Int64("deposit_id", entry.ID),
		zap.Int64("account_id", account.ID),
		zap.String("token", req.Token),
		zap.String("amount", req.Amount.String()))

	return entry, nil
}

type SettleResult struct {
	DepositID      int64           `json:"deposit_id"`
	AccountID      int64           `json:"account_id"`
	Token          string          `json:"token"`
	Amount         decimal.Decimal `json:"amount"`
	BonusAmount    decimal.Decimal `json:"bonus_amount"`
	TotalCredited  decimal.Decimal `json:"total_credited"`
	ReferrerID     *int64          `json:"referrer_id,omitempty"`
	ReferralReward decimal.Decimal `json:"referral_reward"`
}

// SettleDeposit 结算一笔已确认的充值
//
// 状态翻转、首充奖励、入账、邀请奖励在同一个事务里完成；
// 首充奖励同时受"此前无已完成充值"和 first_bonus_at 条件更新两道保护
func (s *DepositService) SettleDeposit(ctx context.Context, deposit *model.Transaction) (result *SettleResult, err error) {
	defer metrics.Observe("deposit_settle", time.Now(), &err)

	if deposit == nil || deposit.ID == 0 {
		return nil, invalidInput("充值记录不能为空")
	}

	settings, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, lock.DepositKey(deposit.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		entry, err := s.transactionRepo.GetByID(ctx, tx, deposit.ID)
		if err != nil {
			return err
		}
		if entry.Kind != model.TransactionKindDeposit {
			return invalidInput("不是充值记录")
		}
		if err := s.transactionRepo.UpdateStatus(ctx, tx, entry.ID, model.TransactionStatusPending, model.TransactionStatusCompleted, nil); err != nil {
			if errors.Is(err, repository.ErrTransactionStatusInvalid) {
				return fmt.Errorf("%w: 充值当前状态为 %s", ErrAlreadyProcessed, entry.Status)
			}
			return err
		}

		account, err := s.accountRepo.GetByID(ctx, tx, entry.AccountID)
		if err != nil {
			return err
		}
		prior, err := s.transactionRepo.CountCompletedDeposits(ctx, tx, account.ID, entry.ID)
		if err != nil {
			return err
		}

		decision := EvaluateDepositRewards(account, entry.Amount, settings, prior)
		bonus := decision.BonusAmount
		if decision.HasBonus() {
			err := s.accountRepo.MarkFirstBonus(ctx, tx, account.ID, time.Now())
			switch {
			case errors.Is(err, repository.ErrBonusAlreadySet):
				bonus = decimal.Zero
			case err != nil:
				return err
			}
		}
		total := entry.Amount.Add(bonus)

		if err := s.balanceRepo.Increase(ctx, tx, account.ID, entry.Token, total); err != nil {
			return fmt.Errorf("充值入账失败: %w", err)
		}

		meta := entry.Meta.Data()
		if meta.Deposit == nil {
			meta.Deposit = &model.DepositMeta{}
		}
		meta.Deposit.BonusAmount = &bonus
		meta.Deposit.TotalCredited = &total
		if err := s.transactionRepo.UpdateMeta(ctx, tx, entry.ID, meta); err != nil {
			return fmt.Errorf("更新充值元数据失败: %w", err)
		}

		result = &SettleResult{
			DepositID:      entry.ID,
			AccountID:      account.ID,
			Token:          entry.Token,
			Amount:         entry.Amount,
			BonusAmount:    bonus,
			TotalCredited:  total,
			ReferralReward: decimal.Zero,
		}

		if decision.HasReferral() {
			if err := s.payReferral(ctx, tx, account, entry, decision); err != nil {
				return err
			}
			result.ReferrerID = decision.ReferrerID
			result.ReferralReward = decision.ReferralReward
		}

		return s.publish(ctx, tx, model.EventDepositSettled, map[string]interface{}{
			"deposit_id":     entry.ID,
			"account_id":     account.ID,
			"token":          entry.Token,
			"amount":         entry.Amount,
			"bonus_amount":   bonus,
			"total_credited": total,
		})
	})
	if err != nil {
		return nil, translateStoreError("结算充值", err)
	}

	logger.Log.Info("充值已结算",
		zap.Int64("deposit_id", result.DepositID),
		zap.Int64("account_id", result.AccountID),
		zap.String("token", result.Token),
		zap.String("amount", result.Amount.String()),
		zap.String("bonus", result.BonusAmount.String()),
		zap.String("referral_reward", result.ReferralReward.String()))

	return result, nil
}

func (s *DepositService) payReferral(ctx context.Context, tx *gorm.DB, referee *model.Account, deposit *model.Transaction, decision RewardDecision) error {
	referrerID := *decision.ReferrerID
	reward := decision.ReferralReward

	if err := s.balanceRepo.Increase(ctx, tx, referrerID, ReferralToken, reward); err != nil {
		return fmt.Errorf("发放邀请奖励失败: %w", err)
	}
	if err := s.accountRepo.AddReferralEarnings(ctx, tx, referrerID, reward); err != nil {
		return fmt.Errorf("更新邀请收益失败: %w", err)
	}

	entry := &model.Transaction{
		AccountID:      referrerID,
		Kind:           model.TransactionKindReferral,
		Token:          ReferralToken,
		Amount:         reward,
		Fee:            decimal.Zero,
		Status:         model.TransactionStatusCompleted,
		Hash:           idgen.SettlementHash(),
		CounterpartyID: int64Ptr(referee.ID),
		Counterparty:   referee.Email,
		Meta: datatypes.NewJSONType(model.TransactionMeta{
			Referral: &model.ReferralMeta{
				RefereeID:     referee.ID,
				RefereeEmail:  referee.Email,
				DepositID:     deposit.ID,
				DepositAmount: deposit.Amount,
				DepositToken:  deposit.Token,
			},
		}),
	}
	if err := s.transactionRepo.Create(ctx, tx, entry); err != nil {
		return fmt.Errorf("记录邀请奖励流水失败: %w", err)
	}

	return s.publish(ctx, tx, model.EventReferralPaid, map[string]interface{}{
		"referrer_id": referrerID,
		"referee_id":  referee.ID,
		"deposit_id":  deposit.ID,
		"token":       ReferralToken,
		"amount":      reward,
	})
}

// IssueDepositAddress 从地址池随机取一个可用地址，token 为空时不限币种
func (s *DepositService) IssueDepositAddress(ctx context.Context, token string) (*model.DepositAddress, error) {
	if token != "" {
		if err := requireToken(token); err != nil {
			return nil, err
		}
	}

	addrs, err := s.addressRepo.ListActive(ctx, token)
	if err != nil {
		return nil, internalError("查询充值地址", err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: 暂无可用充值地址", ErrNotFound)
	}
	return addrs[rand.Intn(len(addrs))], nil
}
