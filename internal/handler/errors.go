package handler

import (
	"errors"

	"cryptowallet/internal/logger"
	"cryptowallet/internal/service"
	"cryptowallet/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 具体错误优先于分类匹配
var errorCodes = []struct {
	err  error
	code int
}{
	{service.ErrInvalidToken, response.CodeInvalidToken},
	{service.ErrSelfTransfer, response.CodeSelfTransfer},
	{service.ErrRecipientNotFound, response.CodeRecipientNotFound},
	{service.ErrBelowMinimum, response.CodeBelowMinimum},
	{service.ErrRestricted, response.CodeRestricted},
	{service.ErrInsufficientBalance, response.CodeInsufficientBalance},
	{service.ErrInvalidAmount, response.CodeInvalidAmount},
	{service.ErrAlreadyProcessed, response.CodeAlreadyProcessed},
	{service.ErrInvalidInput, response.CodeParamError},
	{service.ErrUnauthorized, response.CodeUnauthorized},
	{service.ErrForbidden, response.CodeForbidden},
	{service.ErrNotFound, response.CodeNotFound},
	{service.ErrConflict, response.CodeConflict},
}

// ErrorCode 服务层错误对应的响应码，未分类的按 500 处理
func ErrorCode(err error) int {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return response.CodeServerError
}

func respondError(c *gin.Context, err error) {
	code := ErrorCode(err)
	if code == response.CodeServerError {
		logger.Log.Error("请求处理失败",
			zap.String("path", c.FullPath()),
			zap.Int64("account_id", currentAccountID(c)),
			zap.Error(err))
		response.ServerError(c, "服务器内部错误")
		return
	}
	response.Error(c, code, err.Error())
}
