package service

import (
	"context"
	"fmt"

	"cryptowallet/internal/config"
	"cryptowallet/internal/infrastructure/lock"
	"cryptowallet/internal/logger"
	"cryptowallet/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SettingsService struct {
	ledger
}

func NewSettingsService(db *gorm.DB, locker lock.Locker, cfg *config.Config) *SettingsService {
	return &SettingsService{ledger: newLedger(db, locker, cfg)}
}

// GetSettings 首次读取时写入默认配置
func (s *SettingsService) GetSettings(ctx context.Context) (*model.PlatformSettings, error) {
	return s.snapshot(ctx)
}

// UpdateSettings 整体覆盖平台配置，只影响之后开始的操作
func (s *SettingsService) UpdateSettings(ctx context.Context, adminID int64, settings *model.PlatformSettings) (*model.PlatformSettings, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.settingsRepo.Save(ctx, settings); err != nil {
		return nil, internalError("保存平台配置", err)
	}

	logger.Log.Info("平台配置已更新",
		zap.Int64("admin_id", adminID),
		zap.String("withdrawal_fee_percent", settings.WithdrawalFeePercent.String()),
		zap.String("transfer_fee_percent", settings.TransferFeePercent.String()))

	return s.snapshot(ctx)
}
