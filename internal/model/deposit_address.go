package model

import (
	"time"
)

// DepositAddress 充值地址池，所有用户共用
type DepositAddress struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Token     string    `gorm:"type:varchar(16);index;not null" json:"token"`
	Network   string    `gorm:"type:varchar(32);not null" json:"network"`
	Address   string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"address"`
	IsActive  bool      `gorm:"index;not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DepositAddress) TableName() string {
	return "deposit_address"
}
