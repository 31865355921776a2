package service

import (
	"cryptowallet/internal/model"

	"github.com/shopspring/decimal"
)

// ReferralToken 邀请奖励固定以 usdt 发放，与被邀请人充值的币种无关
const ReferralToken = model.TokenUSDT

// RewardDecision 充值结算时应发放的奖励，由调用方在同一事务内执行
type RewardDecision struct {
	BonusAmount    decimal.Decimal
	ReferralReward decimal.Decimal
	ReferrerID     *int64
}

func (d RewardDecision) HasBonus() bool {
	return d.BonusAmount.IsPositive()
}

func (d RewardDecision) HasReferral() bool {
	return d.ReferrerID != nil && d.ReferralReward.IsPositive()
}

// EvaluateDepositRewards 计算一笔充值的首充奖励和邀请奖励，不读写任何存储
//
// 首充奖励：此前没有已完成的充值、从未发过首充奖励、金额不低于门槛
// 邀请奖励：账户有邀请人、金额不低于门槛，每笔满足条件的充值都发放
func EvaluateDepositRewards(account *model.Account, amount decimal.Decimal, settings *model.PlatformSettings, priorCompletedDeposits int64) RewardDecision {
	decision := RewardDecision{
		BonusAmount:    decimal.Zero,
		ReferralReward: decimal.Zero,
	}

	if priorCompletedDeposits == 0 &&
		account.FirstBonusAt == nil &&
		amount.GreaterThanOrEqual(settings.FirstDepositMinAmount) {
		decision.BonusAmount = percentOf(amount, settings.FirstDepositPercent)
	}

	if account.ReferredBy != nil &&
		amount.GreaterThanOrEqual(settings.ReferralMinDeposit) &&
		settings.ReferralReward.IsPositive() {
		referrer := *account.ReferredBy
		decision.ReferrerID = &referrer
		decision.ReferralReward = settings.ReferralReward
	}

	return decision
}
