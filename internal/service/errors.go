package service

import (
	"errors"
	"fmt"

	"cryptowallet/internal/infrastructure/lock"
	"cryptowallet/internal/repository"
)

// 错误分类，调用方用 errors.Is 判断
var (
	ErrInvalidInput        = errors.New("参数错误")
	ErrUnauthorized        = errors.New("未登录或登录已失效")
	ErrForbidden           = errors.New("无权执行该操作")
	ErrNotFound            = errors.New("记录不存在")
	ErrInsufficientBalance = errors.New("余额不足")
	ErrInvalidAmount       = errors.New("金额不合法")
	ErrAlreadyProcessed    = errors.New("已处理，不能重复操作")
	ErrConflict            = errors.New("系统繁忙，请稍后重试")
	ErrInternal            = errors.New("服务器内部错误")
)

// 具体错误，各自包装一个分类
var (
	ErrInvalidToken      = fmt.Errorf("%w: 币种不合法", ErrInvalidInput)
	ErrSelfTransfer      = fmt.Errorf("%w: 不能转账给自己", ErrInvalidInput)
	ErrRecipientNotFound = fmt.Errorf("%w: 收款账户不存在", ErrNotFound)
	ErrBelowMinimum      = fmt.Errorf("%w: 低于最小提现金额", ErrInvalidAmount)
	ErrRestricted        = fmt.Errorf("%w: 账户已被限制", ErrForbidden)
	ErrEmailTaken        = fmt.Errorf("%w: 邮箱已被注册", ErrInvalidInput)
)

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

func internalError(action string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, action, err)
}

// translateStoreError 把仓储层错误归入上面的分类，已经分好类的错误原样返回
func translateStoreError(action string, err error) error {
	switch {
	case err == nil:
		return nil
	case isCategorized(err):
		return err
	case errors.Is(err, repository.ErrBalanceNotEnough):
		return ErrInsufficientBalance
	case errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrBalanceNotFound),
		errors.Is(err, repository.ErrTransactionNotFound),
		errors.Is(err, repository.ErrWithdrawalNotFound),
		errors.Is(err, repository.ErrAddressNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repository.ErrWithdrawalStatusInvalid),
		errors.Is(err, repository.ErrTransactionStatusInvalid),
		errors.Is(err, repository.ErrBonusAlreadySet):
		return fmt.Errorf("%w: %v", ErrAlreadyProcessed, err)
	case errors.Is(err, lock.ErrLockFailed),
		errors.Is(err, repository.ErrBalanceConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return internalError(action, err)
}

var categories = []error{
	ErrInvalidInput,
	ErrUnauthorized,
	ErrForbidden,
	ErrNotFound,
	ErrInsufficientBalance,
	ErrInvalidAmount,
	ErrAlreadyProcessed,
	ErrConflict,
	ErrInternal,
}

func isCategorized(err error) bool {
	for _, c := range categories {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}
