package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	TransactionKindDeposit    = "deposit"
	TransactionKindWithdrawal = "withdrawal"
	TransactionKindTransfer   = "transfer"
	TransactionKindSwap       = "swap"
	TransactionKindReferral   = "referral"
	TransactionKindBonus      = "bonus"
)

const (
	TransactionStatusPending    = "pending"
	TransactionStatusProcessing = "processing"
	TransactionStatusCompleted  = "completed"
	TransactionStatusRejected   = "rejected"
)

var validTransactionTransitions = map[string][]string{
	TransactionStatusPending:    {TransactionStatusProcessing, TransactionStatusCompleted, TransactionStatusRejected},
	TransactionStatusProcessing: {TransactionStatusCompleted, TransactionStatusRejected},
}

func CanTransactionTransitionTo(current, target string) bool {
	return containsStatus(validTransactionTransitions[current], target)
}

const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// Transaction 账本流水表
//
// 1. 金额和币种创建后不可修改，正数入账，负数出账
// 2. 状态只能按 pending -> completed / rejected 迁移一次
// 3. 转账的两条流水共用同一个 Hash
type Transaction struct {
	ID             int64                               `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID      int64                               `gorm:"index:idx_account_created;not null" json:"account_id"`
	Kind           string                              `gorm:"type:varchar(16);index;not null" json:"type"`
	Token          string                              `gorm:"type:varchar(16);not null" json:"token"`
	Amount         decimal.Decimal                     `gorm:"type:decimal(36,18);not null" json:"amount"`
	Fee            decimal.Decimal                     `gorm:"type:decimal(36,18);not null;default:0" json:"fee"`
	Status         string                              `gorm:"type:varchar(16);index;not null" json:"status"`
	Hash           string                              `gorm:"type:varchar(80);index;not null" json:"hash"`
	CounterpartyID *int64                              `json:"counterparty_id,omitempty"`
	Counterparty   string                              `gorm:"type:varchar(128)" json:"counterparty,omitempty"` // 对方邮箱或外部地址
	WithdrawalID   *int64                              `gorm:"index" json:"withdrawal_id,omitempty"`
	Meta           datatypes.JSONType[TransactionMeta] `json:"meta"`
	CreatedAt      time.Time                           `gorm:"autoCreateTime;index:idx_account_created" json:"created_at"`
	UpdatedAt      time.Time                           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "wallet_transaction"
}

// TransactionMeta 按操作类型区分的元数据，同一条流水只会填充其中一项
type TransactionMeta struct {
	Swap       *SwapMeta       `json:"swap,omitempty"`
	Transfer   *TransferMeta   `json:"transfer,omitempty"`
	Withdrawal *WithdrawalMeta `json:"withdrawal,omitempty"`
	Deposit    *DepositMeta    `json:"deposit,omitempty"`
	Referral   *ReferralMeta   `json:"referral,omitempty"`
	Credit     *CreditMeta     `json:"credit,omitempty"`
}

type SwapMeta struct {
	FromToken  string          `json:"from_token"`
	ToToken    string          `json:"to_token"`
	FromAmount decimal.Decimal `json:"from_amount"`
	ToAmount   decimal.Decimal `json:"to_amount"`
	Rate       decimal.Decimal `json:"rate"`
}

type TransferMeta struct {
	Direction string          `json:"direction"`
	PeerID    int64           `json:"peer_id"`
	PeerEmail string          `json:"peer_email"`
	Amount    decimal.Decimal `json:"amount"` // 对方实际到账金额
}

type WithdrawalMeta struct {
	RequestID int64           `json:"request_id"`
	ToAddress string          `json:"to_address"`
	NetAmount decimal.Decimal `json:"net_amount"`
	AdminNote string          `json:"admin_note,omitempty"`
}

type DepositMeta struct {
	Reference     string           `json:"reference,omitempty"`
	BonusAmount   *decimal.Decimal `json:"bonus_amount,omitempty"`
	TotalCredited *decimal.Decimal `json:"total_credited,omitempty"`
}

type ReferralMeta struct {
	RefereeID     int64           `json:"referee_id"`
	RefereeEmail  string          `json:"referee_email"`
	DepositID     int64           `json:"deposit_id"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	DepositToken  string          `json:"deposit_token"`
}

// CreditMeta 管理员手工入账
type CreditMeta struct {
	AdminID int64  `json:"admin_id"`
	Note    string `json:"note,omitempty"`
}

func containsStatus(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
