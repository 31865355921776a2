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

type WithdrawalService struct {
	ledger
}

func NewWithdrawalService(db *gorm.DB, locker lock.Locker, cfg *config.Config) *WithdrawalService {
	return &WithdrawalService{ledger: newLedger(db, locker, cfg)}
}

type WithdrawRequest struct {
	AccountID int64
	Token     string
	Amount    decimal.Decimal
	ToAddress string
}

// RequestWithdrawal 提现申请：立即扣除全额，等待管理员审核
//
// 手续费按申请时的费率计算并写入申请单，之后修改费率不影响已提交的申请
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, req *WithdrawRequest) (result *model.WithdrawalRequest, err error) {
	defer metrics.Observe("withdraw_request", time.Now(), &err)

	if err := requireToken(req.Token); err != nil {
		return nil, err
	}
	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}
	minimum := s.cfg.Business.MinWithdrawalAmount()
	if req.Amount.LessThan(minimum) {
		return nil, fmt.Errorf("%w: 最小提现金额为 %s", ErrBelowMinimum, minimum.String())
	}
	toAddress := strings.TrimSpace(req.ToAddress)
	if toAddress == "" {
		return nil, invalidInput("提现地址不能为空")
	}

	if _, err := s.loadTrader(ctx, req.AccountID); err != nil {
		return nil, err
	}

	settings, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	fee := percentOf(req.Amount, settings.WithdrawalFeePercent)
	net := req.Amount.Sub(fee)

	release, err := s.acquire(ctx, lock.AccountKey(req.AccountID))
	if err != nil {
		return nil, err
	}
	defer release()

	withdrawal := &model.WithdrawalRequest{
		AccountID: req.AccountID,
		Token:     req.Token,
		Amount:    req.Amount,
		Fee:       fee,
		NetAmount: net,
		ToAddress: toAddress,
		Status:    model.WithdrawalStatusPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.balanceRepo.Deduct(ctx, tx, req.AccountID, req.Token, req.Amount); err != nil {
			return err
		}
		if err := s.withdrawalRepo.Create(ctx, tx, withdrawal); err != nil {
			return fmt.Errorf("创建提现申请失败: %w", err)
		}

		entry := &model.Transaction{
			AccountID:    req.AccountID,
			Kind:         model.TransactionKindWithdrawal,
			Token:        req.Token,
			Amount:       req.Amount.Neg(),
			Fee:          fee,
			Status:       model.TransactionStatusPending,
			Hash:         idgen.SettlementHash(),
			Counterparty: toAddress,
			WithdrawalID: int64Ptr(withdrawal.ID),
			Meta: datatypes.NewJSONType(model.TransactionMeta{
				Withdrawal: &model.WithdrawalMeta{
					RequestID: withdrawal.ID,
					ToAddress: toAddress,
					NetAmount: net,
				},
			}),
		}
		if err := s.transactionRepo.Create(ctx, tx, entry); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		return s.publish(ctx, tx, model.EventWithdrawalRequest, map[string]interface{}{
			"request_id": withdrawal.ID,
			"account_id": req.AccountID,
			"token":      req.Token,
			"amount":     req.Amount,
			"fee":        fee,
			"net_amount": net,
			"to_address": toAddress,
		})
	})
	if err != nil {
		return nil, translateStoreError("提现申请", err)
	}

	logger.Log.Info("提现申请已提交",
		zap.Int64("request_id", withdrawal.ID),
		zap.Int64("account_id", req.AccountID),
		zap.String("token", req.Token),
		zap.String("amount", req.Amount.String()),
		zap.String("fee", fee.String()))

	return withdrawal, nil
}

type ResolveWithdrawalRequest struct {
	AdminID      int64
	RequestID    int64
	Action       string // approve / reject
	SettlementID string // 为空时自动生成
	Note         string
}

// ResolveWithdrawal 审核提现：通过时写入结算标识，驳回时全额退回
//
// 只有 pending 状态的申请能被处理，重复处理返回 ErrAlreadyProcessed
func (s *WithdrawalService) ResolveWithdrawal(ctx context.Context, req *ResolveWithdrawalRequest) (result *model.WithdrawalRequest, err error) {
	defer metrics.Observe("withdraw_resolve", time.Now(), &err)

	var target string
	switch req.Action {
	case model.WithdrawActionApprove:
		target = model.WithdrawalStatusApproved
	case model.WithdrawActionReject:
		target = model.WithdrawalStatusRejected
	default:
		return nil, invalidInput("action 只能是 approve 或 reject")
	}

	if _, err := s.requireAdmin(ctx, req.AdminID); err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, lock.WithdrawalKey(req.RequestID))
	if err != nil {
		return nil, err
	}
	defer release()

	var withdrawal *model.WithdrawalRequest

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		withdrawal, err = s.withdrawalRepo.GetByID(ctx, tx, req.RequestID)
		if err != nil {
			return err
		}
		if withdrawal.Status != model.WithdrawalStatusPending {
			return fmt.Errorf("%w: 提现申请当前状态为 %s", ErrAlreadyProcessed, withdrawal.Status)
		}

		entry, err := s.transactionRepo.GetByWithdrawalID(ctx, tx, withdrawal.ID)
		if err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{
			"admin_note":  req.Note,
			"resolved_by": req.AdminID,
			"resolved_at": now,
		}
		meta := entry.Meta.Data()
		if meta.Withdrawal != nil {
			meta.Withdrawal.AdminNote = req.Note
		}
		entryUpdates := map[string]interface{}{}

		eventType := model.EventWithdrawalRejected
		entryStatus := model.TransactionStatusRejected
		if target == model.WithdrawalStatusApproved {
			hash := strings.TrimSpace(req.SettlementID)
			if hash == "" {
				hash = idgen.SettlementHash()
			}
			updates["hash"] = hash
			entryUpdates["hash"] = hash
			eventType = model.EventWithdrawalApproved
			entryStatus = model.TransactionStatusCompleted
		}
		entryUpdates["meta"] = datatypes.NewJSONType(meta)

		if err := s.withdrawalRepo.UpdateStatus(ctx, tx, withdrawal.ID, model.WithdrawalStatusPending, target, updates); err != nil {
			return err
		}
		if err := s.transactionRepo.UpdateStatusByWithdrawal(ctx, tx, withdrawal.ID, model.TransactionStatusPending, entryStatus, entryUpdates); err != nil {
			return err
		}

		if target == model.WithdrawalStatusRejected {
			if err := s.balanceRepo.Increase(ctx, tx, withdrawal.AccountID, withdrawal.Token, withdrawal.Amount); err != nil {
				return fmt.Errorf("退回余额失败: %w", err)
			}
		}

		withdrawal, err = s.withdrawalRepo.GetByID(ctx, tx, withdrawal.ID)
		if err != nil {
			return err
		}

		return s.publish(ctx, tx, eventType, map[string]interface{}{
			"request_id": withdrawal.ID,
			"account_id": withdrawal.AccountID,
			"admin_id":   req.AdminID,
			"token":      withdrawal.Token,
			"amount":     withdrawal.Amount,
			"net_amount": withdrawal.NetAmount,
			"hash":       withdrawal.Hash,
			"note":       req.Note,
		})
	})
	if err != nil {
		return nil, translateStoreError("审核提现", err)
	}

	logger.Log.Info("提现申请已处理",
		zap.Int64("request_id", withdrawal.ID),
		zap.Int64("admin_id", req.AdminID),
		zap.String("status", withdrawal.Status),
		zap.String("hash", withdrawal.Hash))

	return withdrawal, nil
}

type WithdrawalPage struct {
	List     []*model.WithdrawalRequest `json:"list"`
	Total    int64                      `json:"total"`
	Page     int                        `json:"page"`
	PageSize int                        `json:"page_size"`
}

// ListWithdrawals 管理后台提现列表，最新的在前
func (s *WithdrawalService) ListWithdrawals(ctx context.Context, adminID int64, status string, page, pageSize int) (*WithdrawalPage, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize)

	list, total, err := s.withdrawalRepo.List(ctx, status, page, pageSize)
	if err != nil {
		return nil, internalError("查询提现列表", err)
	}
	return &WithdrawalPage{List: list, Total: total, Page: page, PageSize: pageSize}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
