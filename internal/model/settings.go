package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SettingsID 平台配置为单行表
const SettingsID int64 = 1

// PlatformSettings 平台配置：兑换汇率、手续费、奖励参数
// 每次账本操作开始时读取一份快照，操作期间不再重新读取
type PlatformSettings struct {
	ID                    int64           `gorm:"primaryKey" json:"-"`
	RateUSDTToUSDC        decimal.Decimal `gorm:"column:rate_usdt_to_usdc;type:decimal(36,18);not null" json:"rate_usdt_to_usdc"`
	RateUSDCToUSDT        decimal.Decimal `gorm:"column:rate_usdc_to_usdt;type:decimal(36,18);not null" json:"rate_usdc_to_usdt"`
	WithdrawalFeePercent  decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"withdrawal_fee_percent"`
	TransferFeePercent    decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"transfer_fee_percent"`
	FirstDepositPercent   decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"first_deposit_percent"`
	FirstDepositMinAmount decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"first_deposit_min_amount"`
	ReferralReward        decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"referral_reward"`
	ReferralMinDeposit    decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"referral_min_deposit"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PlatformSettings) TableName() string {
	return "platform_settings"
}

func DefaultSettings() *PlatformSettings {
	return &PlatformSettings{
		ID:                    SettingsID,
		RateUSDTToUSDC:        decimal.NewFromInt(1),
		RateUSDCToUSDT:        decimal.NewFromInt(1),
		WithdrawalFeePercent:  decimal.NewFromInt(2),
		TransferFeePercent:    decimal.RequireFromString("0.5"),
		FirstDepositPercent:   decimal.NewFromInt(30),
		FirstDepositMinAmount: decimal.NewFromInt(50),
		ReferralReward:        decimal.NewFromInt(2),
		ReferralMinDeposit:    decimal.NewFromInt(60),
	}
}

var ErrUnknownPair = errors.New("不支持的兑换币对")

// SwapRate 返回 from -> to 的兑换汇率
func (s *PlatformSettings) SwapRate(from, to string) (decimal.Decimal, error) {
	switch {
	case from == TokenUSDT && to == TokenUSDC:
		return s.RateUSDTToUSDC, nil
	case from == TokenUSDC && to == TokenUSDT:
		return s.RateUSDCToUSDT, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s->%s", ErrUnknownPair, from, to)
}

var hundred = decimal.NewFromInt(100)

// Validate 汇率必须为正，百分比在 [0,100]，金额类参数不能为负
func (s *PlatformSettings) Validate() error {
	if !s.RateUSDTToUSDC.IsPositive() || !s.RateUSDCToUSDT.IsPositive() {
		return errors.New("兑换汇率必须大于0")
	}
	percents := map[string]decimal.Decimal{
		"withdrawal_fee_percent": s.WithdrawalFeePercent,
		"transfer_fee_percent":   s.TransferFeePercent,
		"first_deposit_percent":  s.FirstDepositPercent,
	}
	for name, p := range percents {
		if p.IsNegative() || p.GreaterThan(hundred) {
			return fmt.Errorf("%s 必须在 0-100 之间", name)
		}
	}
	amounts := map[string]decimal.Decimal{
		"first_deposit_min_amount": s.FirstDepositMinAmount,
		"referral_reward":          s.ReferralReward,
		"referral_min_deposit":     s.ReferralMinDeposit,
	}
	for name, a := range amounts {
		if a.IsNegative() {
			return fmt.Errorf("%s 不能为负数", name)
		}
	}
	return nil
}
