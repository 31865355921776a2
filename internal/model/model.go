package model

// All 需要自动迁移的全部表
func All() []interface{} {
	return []interface{}{
		&Account{},
		&Balance{},
		&Transaction{},
		&WithdrawalRequest{},
		&DepositAddress{},
		&PlatformSettings{},
		&OutboxMessage{},
	}
}
