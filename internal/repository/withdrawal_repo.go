package repository

import (
	"context"
	"errors"

	"cryptowallet/internal/model"

	"gorm.io/gorm"
)

var (
	ErrWithdrawalNotFound      = errors.New("提现申请不存在")
	ErrWithdrawalStatusInvalid = errors.New("提现申请状态不合法")
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, tx *gorm.DB, req *model.WithdrawalRequest) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(req).Error
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.WithdrawalRequest, error) {
	if tx == nil {
		tx = r.db
	}
	var req model.WithdrawalRequest
	err := tx.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &req, nil
}

// UpdateStatus 只有当前状态等于 fromStatus 时才会更新，保证一笔申请只被处理一次
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string, updates map[string]interface{}) error {
	if !model.CanWithdrawalTransitionTo(fromStatus, toStatus) {
		return ErrWithdrawalStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	values := map[string]interface{}{"status": toStatus}
	for k, v := range updates {
		values[k] = v
	}

	result := tx.WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(values)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrWithdrawalStatusInvalid
	}

	return nil
}

// List status 为空时返回全部
func (r *WithdrawalRepository) List(ctx context.Context, status string, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	var requests []*model.WithdrawalRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WithdrawalRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&requests).Error

	return requests, total, err
}
