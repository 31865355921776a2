package repository

import (
	"context"
	"errors"
	"time"

	"cryptowallet/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound = errors.New("账户不存在")
	ErrBonusAlreadySet = errors.New("首充奖励已发放")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *AccountRepository) Create(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	return r.conn(tx).WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Account, error) {
	return r.first(ctx, tx, "id = ?", id)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*model.Account, error) {
	return r.first(ctx, tx, "email = ?", email)
}

func (r *AccountRepository) GetByReferralCode(ctx context.Context, tx *gorm.DB, code string) (*model.Account, error) {
	return r.first(ctx, tx, "referral_code = ?", code)
}

func (r *AccountRepository) first(ctx context.Context, tx *gorm.DB, query string, args ...interface{}) (*model.Account, error) {
	var account model.Account
	err := r.conn(tx).WithContext(ctx).Where(query, args...).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) EmailExists(ctx context.Context, tx *gorm.DB, email string, excludeID int64) (bool, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("email = ? AND id <> ?", email, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *AccountRepository) IncrementReferralCount(ctx context.Context, tx *gorm.DB, id int64) error {
	return r.update(ctx, tx, id, map[string]interface{}{
		"referral_count": gorm.Expr("referral_count + 1"),
	})
}

// AddReferralEarnings 锁行后在内存里累加，和余额一样不依赖数据库的小数运算
func (r *AccountRepository) AddReferralEarnings(ctx context.Context, tx *gorm.DB, id int64, amount decimal.Decimal) error {
	var account model.Account
	err := r.conn(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "referral_earnings").
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	return r.update(ctx, tx, id, map[string]interface{}{
		"referral_earnings": account.ReferralEarnings.Add(amount),
	})
}

// MarkFirstBonus 条件更新 first_bonus_at，只有第一次调用会成功
func (r *AccountRepository) MarkFirstBonus(ctx context.Context, tx *gorm.DB, id int64, at time.Time) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND first_bonus_at IS NULL", id).
		Update("first_bonus_at", at)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBonusAlreadySet
	}
	return nil
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, status, reason string) error {
	return r.update(ctx, tx, id, map[string]interface{}{
		"status":        status,
		"status_reason": reason,
	})
}

func (r *AccountRepository) UpdateProfile(ctx context.Context, tx *gorm.DB, id int64, name, email string) error {
	return r.update(ctx, tx, id, map[string]interface{}{
		"name":  name,
		"email": email,
	})
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, tx *gorm.DB, id int64, passwordHash string) error {
	return r.update(ctx, tx, id, map[string]interface{}{
		"password_hash": passwordHash,
	})
}

func (r *AccountRepository) update(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) List(ctx context.Context, page, pageSize int) ([]*model.Account, int64, error) {
	var accounts []*model.Account
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Account{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&accounts).Error

	return accounts, total, err
}

// ListReferred 被 referrerID 邀请的账户
func (r *AccountRepository) ListReferred(ctx context.Context, referrerID int64) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("referred_by = ?", referrerID).
		Order("created_at DESC").
		Find(&accounts).Error
	return accounts, err
}
