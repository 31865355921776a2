package repository

import (
	"context"
	"errors"

	"cryptowallet/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBalanceNotEnough = errors.New("余额不足")
	ErrBalanceNotFound  = errors.New("余额记录不存在")
	ErrBalanceConflict  = errors.New("余额已被并发修改")
)

type BalanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// CreateZeroRows 为新账户初始化全部币种的零余额
func (r *BalanceRepository) CreateZeroRows(ctx context.Context, tx *gorm.DB, accountID int64) error {
	if tx == nil {
		tx = r.db
	}
	rows := make([]*model.Balance, 0, len(model.Tokens))
	for _, token := range model.Tokens {
		rows = append(rows, &model.Balance{AccountID: accountID, Token: token, Amount: decimal.Zero})
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *BalanceRepository) ListByAccount(ctx context.Context, tx *gorm.DB, accountID int64) ([]*model.Balance, error) {
	if tx == nil {
		tx = r.db
	}
	var rows []*model.Balance
	err := tx.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("token ASC").
		Find(&rows).Error
	return rows, err
}

func (r *BalanceRepository) Get(ctx context.Context, tx *gorm.DB, accountID int64, token string) (*model.Balance, error) {
	if tx == nil {
		tx = r.db
	}
	var row model.Balance
	err := tx.WithContext(ctx).
		Where("account_id = ? AND token = ?", accountID, token).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	return &row, nil
}

// Deduct 扣减余额，余额不足返回 ErrBalanceNotEnough
//
// 先锁行读出余额，用 decimal 比较和相减，再按 version 条件写回；
// 金额不交给数据库做数值运算，sqlite 下也是精确值
func (r *BalanceRepository) Deduct(ctx context.Context, tx *gorm.DB, accountID int64, token string, amount decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	row, err := r.lockRow(ctx, tx, accountID, token)
	if err != nil {
		return err
	}
	if row.Amount.LessThan(amount) {
		return ErrBalanceNotEnough
	}
	return r.save(ctx, tx, row, row.Amount.Sub(amount))
}

// Increase 入账，余额行缺失时补建后再加
func (r *BalanceRepository) Increase(ctx context.Context, tx *gorm.DB, accountID int64, token string, amount decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	row, err := r.lockRow(ctx, tx, accountID, token)
	if errors.Is(err, ErrBalanceNotFound) {
		zero := &model.Balance{AccountID: accountID, Token: token, Amount: decimal.Zero}
		if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(zero).Error; err != nil {
			return err
		}
		row, err = r.lockRow(ctx, tx, accountID, token)
	}
	if err != nil {
		return err
	}
	return r.save(ctx, tx, row, row.Amount.Add(amount))
}

// lockRow SELECT ... FOR UPDATE；sqlite 没有行锁，靠单连接串行
func (r *BalanceRepository) lockRow(ctx context.Context, tx *gorm.DB, accountID int64, token string) (*model.Balance, error) {
	var row model.Balance
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ? AND token = ?", accountID, token).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *BalanceRepository) save(ctx context.Context, tx *gorm.DB, row *model.Balance, amount decimal.Decimal) error {
	result := tx.WithContext(ctx).
		Model(&model.Balance{}).
		Where("id = ? AND version = ?", row.ID, row.Version).
		Updates(map[string]interface{}{
			"amount":  amount,
			"version": row.Version + 1,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBalanceConflict
	}
	return nil
}
