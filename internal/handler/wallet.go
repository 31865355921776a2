package handler

import (
	"strconv"
	"strings"

	"cryptowallet/internal/service"
	"cryptowallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ============================================================
// 钱包操作，账户 ID 一律取自登录态
// ============================================================

// SwapRequest 金额既可以是字符串也可以是数字
type SwapRequest struct {
	FromToken string          `json:"from_token" binding:"required"`
	ToToken   string          `json:"to_token" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// Swap 兑换
// POST /api/v1/wallet/swap
func (h *Handler) Swap(c *gin.Context) {
	var req SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.swapService.Swap(c.Request.Context(), &service.SwapRequest{
		AccountID: currentAccountID(c),
		FromToken: strings.ToLower(req.FromToken),
		ToToken:   strings.ToLower(req.ToToken),
		Amount:    req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

type TransferRequest struct {
	Recipient string          `json:"recipient" binding:"required"` // 邮箱或账户ID
	Token     string          `json:"token" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// Transfer 站内转账
// POST /api/v1/wallet/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.transferService.Transfer(c.Request.Context(), &service.TransferRequest{
		AccountID: currentAccountID(c),
		Recipient: req.Recipient,
		Token:     strings.ToLower(req.Token),
		Amount:    req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

// LookupRecipient 转账前确认收款人
// GET /api/v1/wallet/transfer/recipient?ref=xxx
func (h *Handler) LookupRecipient(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		response.ParamError(c, "ref 参数不能为空")
		return
	}

	recipient, err := h.transferService.LookupRecipient(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, recipient)
}

type WithdrawRequest struct {
	Token     string          `json:"token" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	ToAddress string          `json:"to_address" binding:"required"`
}

// Withdraw 提交提现申请
// POST /api/v1/wallet/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	withdrawal, err := h.withdrawService.RequestWithdrawal(c.Request.Context(), &service.WithdrawRequest{
		AccountID: currentAccountID(c),
		Token:     strings.ToLower(req.Token),
		Amount:    req.Amount,
		ToAddress: req.ToAddress,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"request_id": withdrawal.ID,
		"status":     withdrawal.Status,
		"amount":     withdrawal.Amount,
		"fee":        withdrawal.Fee,
		"net_amount": withdrawal.NetAmount,
	})
}

type DepositRequest struct {
	Token     string          `json:"token" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

// Deposit 登记充值，确认后由后台任务入账
// POST /api/v1/wallet/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	entry, err := h.depositService.RecordDeposit(c.Request.Context(), &service.RecordDepositRequest{
		AccountID: currentAccountID(c),
		Token:     strings.ToLower(req.Token),
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, entry)
}

// DepositAddress 分配充值地址
// GET /api/v1/wallet/deposit/address?token=usdt
func (h *Handler) DepositAddress(c *gin.Context) {
	addr, err := h.depositService.IssueDepositAddress(c.Request.Context(), strings.ToLower(c.Query("token")))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, addr)
}

// ListTransactions 流水列表，最新的在前
// GET /api/v1/wallet/transactions?limit=50
func (h *Handler) ListTransactions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		response.ParamError(c, "limit 参数错误")
		return
	}

	list, err := h.journalService.ListTransactions(c.Request.Context(), currentAccountID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, list)
}
