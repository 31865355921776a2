package repository

import (
	"context"
	"errors"

	"cryptowallet/internal/model"

	"gorm.io/gorm"
)

var (
	ErrAddressNotFound = errors.New("充值地址不存在")
)

type AddressRepository struct {
	db *gorm.DB
}

func NewAddressRepository(db *gorm.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func (r *AddressRepository) Create(ctx context.Context, addr *model.DepositAddress) error {
	return r.db.WithContext(ctx).Create(addr).Error
}

func (r *AddressRepository) GetByID(ctx context.Context, id int64) (*model.DepositAddress, error) {
	var addr model.DepositAddress
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&addr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAddressNotFound
		}
		return nil, err
	}
	return &addr, nil
}

func (r *AddressRepository) AddressExists(ctx context.Context, address string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.DepositAddress{}).
		Where("address = ? AND id <> ?", address, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *AddressRepository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.DepositAddress{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAddressNotFound
	}
	return nil
}

func (r *AddressRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.DepositAddress{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAddressNotFound
	}
	return nil
}

func (r *AddressRepository) List(ctx context.Context) ([]*model.DepositAddress, error) {
	var addrs []*model.DepositAddress
	err := r.db.WithContext(ctx).Order("id DESC").Find(&addrs).Error
	return addrs, err
}

// ListActive token 为空时不按币种过滤
func (r *AddressRepository) ListActive(ctx context.Context, token string) ([]*model.DepositAddress, error) {
	var addrs []*model.DepositAddress
	query := r.db.WithContext(ctx).Where("is_active = ?", true)
	if token != "" {
		query = query.Where("token = ?", token)
	}
	err := query.Order("id ASC").Find(&addrs).Error
	return addrs, err
}
