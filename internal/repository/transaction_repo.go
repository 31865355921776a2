package repository

import (
	"context"
	"errors"

	"cryptowallet/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound      = errors.New("流水不存在")
	ErrTransactionStatusInvalid = errors.New("流水状态不合法")
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Transaction, error) {
	if tx == nil {
		tx = r.db
	}
	var trans model.Transaction
	err := tx.WithContext(ctx).Where("id = ?", id).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// GetByWithdrawalID 提现申请关联的那条流水
func (r *TransactionRepository) GetByWithdrawalID(ctx context.Context, tx *gorm.DB, withdrawalID int64) (*model.Transaction, error) {
	if tx == nil {
		tx = r.db
	}
	var trans model.Transaction
	err := tx.WithContext(ctx).Where("withdrawal_id = ?", withdrawalID).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// UpdateMeta 只改元数据，金额和币种不可修改
func (r *TransactionRepository) UpdateMeta(ctx context.Context, tx *gorm.DB, id int64, meta model.TransactionMeta) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ?", id).
		Update("meta", datatypes.NewJSONType(meta)).Error
}

// ListByHash 转账的两条流水共用一个 hash，按 id 升序返回（付款方在前）
func (r *TransactionRepository) ListByHash(ctx context.Context, hash string) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("hash = ?", hash).
		Order("id ASC").
		Find(&transactions).Error
	return transactions, err
}

// ListByAccount 最新的在前
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}

func (r *TransactionRepository) ListByAccountAndKind(ctx context.Context, accountID int64, kind string) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND kind = ?", accountID, kind).
		Order("id DESC").
		Find(&transactions).Error
	return transactions, err
}

// UpdateStatus 条件更新状态，updates 里可以额外带 hash / meta / fee
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string, updates map[string]interface{}) error {
	return r.updateStatusWhere(ctx, tx, "id = ?", id, fromStatus, toStatus, updates)
}

// UpdateStatusByWithdrawal 更新提现申请关联的那条流水
func (r *TransactionRepository) UpdateStatusByWithdrawal(ctx context.Context, tx *gorm.DB, withdrawalID int64, fromStatus, toStatus string, updates map[string]interface{}) error {
	return r.updateStatusWhere(ctx, tx, "withdrawal_id = ?", withdrawalID, fromStatus, toStatus, updates)
}

func (r *TransactionRepository) updateStatusWhere(ctx context.Context, tx *gorm.DB, cond string, arg interface{}, fromStatus, toStatus string, updates map[string]interface{}) error {
	if !model.CanTransactionTransitionTo(fromStatus, toStatus) {
		return ErrTransactionStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	values := map[string]interface{}{"status": toStatus}
	for k, v := range updates {
		values[k] = v
	}

	result := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where(cond+" AND status = ?", arg, fromStatus).
		Updates(values)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrTransactionStatusInvalid
	}

	return nil
}

// CountCompletedDeposits 统计账户已完成的充值笔数，excludeID 为当前正在结算的那笔
func (r *TransactionRepository) CountCompletedDeposits(ctx context.Context, tx *gorm.DB, accountID, excludeID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("account_id = ? AND kind = ? AND status = ? AND id <> ?",
			accountID, model.TransactionKindDeposit, model.TransactionStatusCompleted, excludeID).
		Count(&count).Error
	return count, err
}

// ListPendingDeposits id 大于 afterID 的待确认充值，按 id 升序，用于游标翻页
func (r *TransactionRepository) ListPendingDeposits(ctx context.Context, afterID int64, limit int) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("kind = ? AND status = ? AND id > ?", model.TransactionKindDeposit, model.TransactionStatusPending, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}
