package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusApproved  = "approved"
	WithdrawalStatusRejected  = "rejected"
	WithdrawalStatusCompleted = "completed"
)

// approved / rejected 为终态
var ValidWithdrawalTransitions = map[string][]string{
	WithdrawalStatusPending: {WithdrawalStatusApproved, WithdrawalStatusRejected},
}

func CanWithdrawalTransitionTo(current, target string) bool {
	return containsStatus(ValidWithdrawalTransitions[current], target)
}

const (
	WithdrawActionApprove = "approve"
	WithdrawActionReject  = "reject"
)

// WithdrawalRequest 提现申请表
// 申请时余额已扣除，驳回时按 Amount 全额退回
type WithdrawalRequest struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID  int64           `gorm:"index;not null" json:"account_id"`
	Token      string          `gorm:"type:varchar(16);not null" json:"token"`
	Amount     decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"amount"`
	Fee        decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"fee"`
	NetAmount  decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"net_amount"`
	ToAddress  string          `gorm:"type:varchar(128);not null" json:"to_address"`
	Status     string          `gorm:"type:varchar(16);index;not null" json:"status"`
	Hash       string          `gorm:"type:varchar(80)" json:"hash,omitempty"`
	AdminNote  string          `gorm:"type:varchar(256)" json:"admin_note,omitempty"`
	ResolvedBy *int64          `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_request"
}
