package repository

import (
	"context"
	"errors"

	"cryptowallet/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get 读取平台配置，不存在时写入默认值
func (r *SettingsRepository) Get(ctx context.Context) (*model.PlatformSettings, error) {
	var settings model.PlatformSettings
	err := r.db.WithContext(ctx).Where("id = ?", model.SettingsID).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	defaults := model.DefaultSettings()
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(defaults).Error
	if err != nil {
		return nil, err
	}

	// 并发首次读取时以先写入的为准
	err = r.db.WithContext(ctx).Where("id = ?", model.SettingsID).First(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Save 整体覆盖
func (r *SettingsRepository) Save(ctx context.Context, settings *model.PlatformSettings) error {
	settings.ID = model.SettingsID
	return r.db.WithContext(ctx).Save(settings).Error
}
