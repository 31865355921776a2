package service

import (
	"testing"
	"time"

	"cryptowallet/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateDepositRewards(t *testing.T) {
	referrer := int64(42)
	stamped := time.Now()

	cases := []struct {
		name         string
		account      model.Account
		amount       string
		prior        int64
		wantBonus    string
		wantReferral string
		wantReferrer bool
	}{
		{"first deposit at minimum", model.Account{}, "50", 0, "15", "0", false},
		{"first deposit below minimum", model.Account{}, "49.99", 0, "0", "0", false},
		{"second deposit", model.Account{}, "100", 1, "0", "0", false},
		{"bonus already stamped", model.Account{FirstBonusAt: &stamped}, "100", 0, "0", "0", false},
		{"referred below referral floor", model.Account{ReferredBy: &referrer}, "59", 0, "17.7", "0", false},
		{"referred at referral floor", model.Account{ReferredBy: &referrer}, "60", 0, "18", "2", true},
		{"referred repeat deposit", model.Account{ReferredBy: &referrer}, "200", 3, "0", "2", true},
		{"rounding to 8 places", model.Account{}, "50.123456789", 0, "15.03703704", "0", false},
	}

	settings := model.DefaultSettings()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			account := c.account
			d := EvaluateDepositRewards(&account, decimal.RequireFromString(c.amount), settings, c.prior)

			assert.True(t, d.BonusAmount.Equal(decimal.RequireFromString(c.wantBonus)), "bonus %s", d.BonusAmount)
			assert.True(t, d.ReferralReward.Equal(decimal.RequireFromString(c.wantReferral)), "referral %s", d.ReferralReward)
			assert.Equal(t, c.wantReferrer, d.HasReferral())
			if c.wantReferrer {
				assert.Equal(t, referrer, *d.ReferrerID)
			}
		})
	}
}

func TestEvaluateDepositRewardsZeroReward(t *testing.T) {
	referrer := int64(7)
	settings := model.DefaultSettings()
	settings.ReferralReward = decimal.Zero

	d := EvaluateDepositRewards(&model.Account{ReferredBy: &referrer}, decimal.NewFromInt(100), settings, 1)
	assert.False(t, d.HasReferral())
	assert.False(t, d.HasBonus())
}

func TestPercentOfRoundsHalfUp(t *testing.T) {
	// 0.5% * 0.000000011 = 0.000000000055 -> 0
	assert.True(t, percentOf(decimal.RequireFromString("0.000000011"), decimal.RequireFromString("0.5")).IsZero())
	// 2% * 0.00000025 = 0.000000005 -> 0.00000001
	assert.True(t, percentOf(decimal.RequireFromString("0.00000025"), decimal.NewFromInt(2)).
		Equal(decimal.RequireFromString("0.00000001")))
	assert.True(t, percentOf(decimal.NewFromInt(100), decimal.RequireFromString("0.5")).
		Equal(decimal.RequireFromString("0.5")))
}
