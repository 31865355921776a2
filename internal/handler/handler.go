package handler

import (
	"strconv"

	"cryptowallet/internal/config"
	"cryptowallet/internal/infrastructure/lock"
	"cryptowallet/internal/service"
	"cryptowallet/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	tokens          *TokenManager
	accountService  *service.AccountService
	swapService     *service.SwapService
	transferService *service.TransferService
	withdrawService *service.WithdrawalService
	depositService  *service.DepositService
	creditService   *service.CreditService
	journalService  *service.JournalService
	settingsService *service.SettingsService
	addressService  *service.AddressService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, locker lock.Locker, cfg *config.Config) *Handler {
	return &Handler{
		tokens:          NewTokenManager(&cfg.JWT),
		accountService:  service.NewAccountService(db, locker, cfg),
		swapService:     service.NewSwapService(db, locker, cfg),
		transferService: service.NewTransferService(db, locker, cfg),
		withdrawService: service.NewWithdrawalService(db, locker, cfg),
		depositService:  service.NewDepositService(db, locker, cfg),
		creditService:   service.NewCreditService(db, locker, cfg),
		journalService:  service.NewJournalService(db, cfg),
		settingsService: service.NewSettingsService(db, locker, cfg),
		addressService:  service.NewAddressService(db, locker, cfg),
	}
}

func bindError(c *gin.Context, err error) {
	response.ParamError(c, "参数错误: "+err.Error())
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "id 参数错误")
		return 0, false
	}
	return id, true
}

// ============================================================
// 登录注册
// ============================================================

type RegisterRequest struct {
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	Name         string `json:"name" binding:"required"`
	ReferralCode string `json:"referral_code"`
}

// Register 注册
// POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	account, err := h.accountService.Register(c.Request.Context(), &service.RegisterRequest{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.Issue(account)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"token": token, "account": account})
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	account, err := h.accountService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.Issue(account)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"token": token, "account": account})
}

// ============================================================
// 账户
// ============================================================

// GetAccount 当前账户信息和余额
// GET /api/v1/account
func (h *Handler) GetAccount(c *gin.Context) {
	view, err := h.accountService.GetAccount(c.Request.Context(), currentAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, view)
}

// GetBalances GET /api/v1/account/balances
func (h *Handler) GetBalances(c *gin.Context) {
	balances, err := h.accountService.Balances(c.Request.Context(), currentAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, balances)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePassword POST /api/v1/account/password
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.accountService.ChangePassword(c.Request.Context(), currentAccountID(c), req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "密码已修改"})
}

// GetReferrals GET /api/v1/account/referrals
func (h *Handler) GetReferrals(c *gin.Context) {
	summary, err := h.accountService.Referrals(c.Request.Context(), currentAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, summary)
}

// GetSettings 兑换汇率和手续费，前端展示用
// GET /api/v1/settings
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.GetSettings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, settings)
}

// Explorer 按 hash 查询交易
// GET /api/v1/explorer/:hash
func (h *Handler) Explorer(c *gin.Context) {
	entry, err := h.journalService.Explorer(c.Request.Context(), c.Param("hash"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, entry)
}
