package service

import (
	"context"
	"strings"

	"cryptowallet/internal/config"
	"cryptowallet/internal/infrastructure/lock"
	"cryptowallet/internal/model"
	"cryptowallet/internal/repository"

	"gorm.io/gorm"
)

// AddressService 充值地址池管理，仅管理员可用
type AddressService struct {
	ledger
	addressRepo *repository.AddressRepository
}

func NewAddressService(db *gorm.DB, locker lock.Locker, cfg *config.Config) *AddressService {
	return &AddressService{
		ledger:      newLedger(db, locker, cfg),
		addressRepo: repository.NewAddressRepository(db),
	}
}

type AddressInput struct {
	Token   string
	Network string
	Address string
}

func (in *AddressInput) normalize() error {
	in.Token = strings.ToLower(strings.TrimSpace(in.Token))
	in.Network = strings.TrimSpace(in.Network)
	in.Address = strings.TrimSpace(in.Address)
	if err := requireToken(in.Token); err != nil {
		return err
	}
	if in.Network == "" {
		return invalidInput("网络不能为空")
	}
	if in.Address == "" {
		return invalidInput("地址不能为空")
	}
	return nil
}

func (s *AddressService) AddAddress(ctx context.Context, adminID int64, in AddressInput) (*model.DepositAddress, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, in.Address, 0); err != nil {
		return nil, err
	}

	addr := &model.DepositAddress{
		Token:    in.Token,
		Network:  in.Network,
		Address:  in.Address,
		IsActive: true,
	}
	if err := s.addressRepo.Create(ctx, addr); err != nil {
		return nil, internalError("添加充值地址", err)
	}
	return addr, nil
}

func (s *AddressService) UpdateAddress(ctx context.Context, adminID, id int64, in AddressInput) (*model.DepositAddress, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, in.Address, id); err != nil {
		return nil, err
	}

	err := s.addressRepo.Update(ctx, id, map[string]interface{}{
		"token":   in.Token,
		"network": in.Network,
		"address": in.Address,
	})
	if err != nil {
		return nil, translateStoreError("修改充值地址", err)
	}
	return s.getAddress(ctx, id)
}

// ToggleAddress 启用/停用切换
func (s *AddressService) ToggleAddress(ctx context.Context, adminID, id int64) (*model.DepositAddress, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	addr, err := s.getAddress(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.addressRepo.Update(ctx, id, map[string]interface{}{"is_active": !addr.IsActive}); err != nil {
		return nil, translateStoreError("切换充值地址状态", err)
	}
	addr.IsActive = !addr.IsActive
	return addr, nil
}

func (s *AddressService) DeleteAddress(ctx context.Context, adminID, id int64) error {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	return translateStoreError("删除充值地址", s.addressRepo.Delete(ctx, id))
}

func (s *AddressService) ListAddresses(ctx context.Context, adminID int64) ([]*model.DepositAddress, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	addrs, err := s.addressRepo.List(ctx)
	if err != nil {
		return nil, internalError("查询充值地址", err)
	}
	return addrs, nil
}

func (s *AddressService) getAddress(ctx context.Context, id int64) (*model.DepositAddress, error) {
	addr, err := s.addressRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError("查询充值地址", err)
	}
	return addr, nil
}

func (s *AddressService) ensureUnique(ctx context.Context, address string, excludeID int64) error {
	exists, err := s.addressRepo.AddressExists(ctx, address, excludeID)
	if err != nil {
		return internalError("校验充值地址", err)
	}
	if exists {
		return invalidInput("地址已存在")
	}
	return nil
}
