package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	AccountStatusActive     = "active"
	AccountStatusBanned     = "banned"
	AccountStatusSuspended  = "suspended"
	AccountStatusRestricted = "restricted"
)

func IsValidAccountStatus(status string) bool {
	switch status {
	case AccountStatusActive, AccountStatusBanned, AccountStatusSuspended, AccountStatusRestricted:
		return true
	}
	return false
}

// Account 用户账户表
// 余额不在本表，按币种存放在 wallet_balance
type Account struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Email            string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Name             string          `gorm:"type:varchar(64);not null" json:"name"`
	PasswordHash     string          `gorm:"type:varchar(128);not null" json:"-"`
	Role             string          `gorm:"type:varchar(16);not null;default:user" json:"role"`
	Status           string          `gorm:"type:varchar(16);index;not null;default:active" json:"status"`
	StatusReason     string          `gorm:"type:varchar(256)" json:"status_reason,omitempty"`
	ReferralCode     string          `gorm:"type:varchar(16);uniqueIndex;not null" json:"referral_code"`
	ReferredBy       *int64          `gorm:"index" json:"referred_by,omitempty"`
	ReferralCount    int64           `gorm:"not null;default:0" json:"referral_count"`
	ReferralEarnings decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"referral_earnings"`
	FirstBonusAt     *time.Time      `json:"first_bonus_at,omitempty"` // 首充奖励发放时间，只写一次
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "wallet_account"
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanTrade 兑换、转账、提现只对 active 账户开放
func (a *Account) CanTrade() bool {
	return a.Status == AccountStatusActive
}

// CanLogin restricted 账户仍可登录、充值
func (a *Account) CanLogin() bool {
	return a.Status == AccountStatusActive || a.Status == AccountStatusRestricted
}
