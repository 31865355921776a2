package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TokenUSDT = "usdt"
	TokenUSDC = "usdc"
)

// Tokens 支持的全部币种
var Tokens = []string{TokenUSDT, TokenUSDC}

func IsValidToken(token string) bool {
	for _, t := range Tokens {
		if t == token {
			return true
		}
	}
	return false
}

// Balance 账户余额表，每个账户每个币种一行
type Balance struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	AccountID int64           `gorm:"uniqueIndex:uk_account_token;not null" json:"account_id"`
	Token     string          `gorm:"type:varchar(16);uniqueIndex:uk_account_token;not null" json:"token"`
	Amount    decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"amount"`
	Version   int             `gorm:"not null;default:0" json:"-"` // 每次变动 +1
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Balance) TableName() string {
	return "wallet_balance"
}

// Balances token -> 余额，缺失的币种补零
type Balances map[string]decimal.Decimal

func NewBalances(rows []*Balance) Balances {
	out := make(Balances, len(Tokens))
	for _, t := range Tokens {
		out[t] = decimal.Zero
	}
	for _, row := range rows {
		out[row.Token] = row.Amount
	}
	return out
}
