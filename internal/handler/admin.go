package handler

import (
	"strconv"
	"strings"

	"cryptowallet/internal/model"
	"cryptowallet/internal/service"
	"cryptowallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ============================================================
// 管理后台
// ============================================================

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

// ListAccounts GET /api/v1/admin/accounts?page=1&page_size=20
func (h *Handler) ListAccounts(c *gin.Context) {
	page, pageSize := pageParams(c)
	result, err := h.accountService.ListAccounts(c.Request.Context(), currentAccountID(c), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// SetAccountStatus POST /api/v1/admin/accounts/:id/status
func (h *Handler) SetAccountStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.accountService.SetStatus(c.Request.Context(), currentAccountID(c), id, req.Status, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id, "status": req.Status})
}

type EditAccountRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
}

// EditAccount PUT /api/v1/admin/accounts/:id
func (h *Handler) EditAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req EditAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	account, err := h.accountService.EditProfile(c.Request.Context(), currentAccountID(c), id, req.Name, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, account)
}

// ListWithdrawals GET /api/v1/admin/withdrawals?status=pending
func (h *Handler) ListWithdrawals(c *gin.Context) {
	page, pageSize := pageParams(c)
	result, err := h.withdrawService.ListWithdrawals(c.Request.Context(), currentAccountID(c), c.Query("status"), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

type ResolveWithdrawalRequest struct {
	Action       string `json:"action" binding:"required,oneof=approve reject"`
	SettlementID string `json:"settlement_id"`
	Note         string `json:"note"`
}

// ResolveWithdrawal 审核提现
// POST /api/v1/admin/withdrawals/:id/resolve
func (h *Handler) ResolveWithdrawal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ResolveWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	withdrawal, err := h.withdrawService.ResolveWithdrawal(c.Request.Context(), &service.ResolveWithdrawalRequest{
		AdminID:      currentAccountID(c),
		RequestID:    id,
		Action:       req.Action,
		SettlementID: req.SettlementID,
		Note:         req.Note,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, withdrawal)
}

type CreditRequest struct {
	AccountID int64           `json:"account_id" binding:"required"`
	Token     string          `json:"token" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      string          `json:"kind" binding:"required"`
	Note      string          `json:"note"`
}

// Credit 手工入账
// POST /api/v1/admin/credit
func (h *Handler) Credit(c *gin.Context) {
	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	entry, err := h.creditService.AdminCredit(c.Request.Context(), &service.AdminCreditRequest{
		AdminID:   currentAccountID(c),
		AccountID: req.AccountID,
		Token:     strings.ToLower(req.Token),
		Amount:    req.Amount,
		Kind:      req.Kind,
		Note:      req.Note,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, entry)
}

// UpdateSettings 整体覆盖平台配置
// PUT /api/v1/admin/settings
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req model.PlatformSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	settings, err := h.settingsService.UpdateSettings(c.Request.Context(), currentAccountID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, settings)
}

type AddressRequest struct {
	Token   string `json:"token" binding:"required"`
	Network string `json:"network" binding:"required"`
	Address string `json:"address" binding:"required"`
}

func (r AddressRequest) input() service.AddressInput {
	return service.AddressInput{Token: r.Token, Network: r.Network, Address: r.Address}
}

// ListAddresses GET /api/v1/admin/addresses
func (h *Handler) ListAddresses(c *gin.Context) {
	addrs, err := h.addressService.ListAddresses(c.Request.Context(), currentAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, addrs)
}

// AddAddress POST /api/v1/admin/addresses
func (h *Handler) AddAddress(c *gin.Context) {
	var req AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	addr, err := h.addressService.AddAddress(c.Request.Context(), currentAccountID(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, addr)
}

// UpdateAddress PUT /api/v1/admin/addresses/:id
func (h *Handler) UpdateAddress(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	addr, err := h.addressService.UpdateAddress(c.Request.Context(), currentAccountID(c), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, addr)
}

// ToggleAddress POST /api/v1/admin/addresses/:id/toggle
func (h *Handler) ToggleAddress(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	addr, err := h.addressService.ToggleAddress(c.Request.Context(), currentAccountID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, addr)
}

// DeleteAddress DELETE /api/v1/admin/addresses/:id
func (h *Handler) DeleteAddress(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.addressService.DeleteAddress(c.Request.Context(), currentAccountID(c), id); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}
