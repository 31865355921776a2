package handler

import (
	"cryptowallet/internal/config"
	"cryptowallet/internal/infrastructure/lock"
	"cryptowallet/internal/metrics"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NewRouter 配置路由
func NewRouter(db *gorm.DB, locker lock.Locker, cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, locker, cfg)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
		}

		api.GET("/explorer/:hash", h.Explorer)

		user := api.Group("", AuthMiddleware(h.tokens))
		{
			user.GET("/settings", h.GetSettings)

			account := user.Group("/account")
			{
				account.GET("", h.GetAccount)
				account.GET("/balances", h.GetBalances)
				account.POST("/password", h.ChangePassword)
				account.GET("/referrals", h.GetReferrals)
			}

			wallet := user.Group("/wallet")
			{
				wallet.POST("/swap", h.Swap)
				wallet.POST("/transfer", h.Transfer)
				wallet.GET("/transfer/recipient", h.LookupRecipient)
				wallet.POST("/withdraw", h.Withdraw)
				wallet.POST("/deposit", h.Deposit)
				wallet.GET("/deposit/address", h.DepositAddress)
				wallet.GET("/transactions", h.ListTransactions)
			}
		}

		admin := api.Group("/admin", AuthMiddleware(h.tokens), AdminOnly())
		{
			admin.GET("/accounts", h.ListAccounts)
			admin.PUT("/accounts/:id", h.EditAccount)
			admin.POST("/accounts/:id/status", h.SetAccountStatus)

			admin.GET("/withdrawals", h.ListWithdrawals)
			admin.POST("/withdrawals/:id/resolve", h.ResolveWithdrawal)

			admin.POST("/credit", h.Credit)

			admin.GET("/settings", h.GetSettings)
			admin.PUT("/settings", h.UpdateSettings)

			admin.GET("/addresses", h.ListAddresses)
			admin.POST("/addresses", h.AddAddress)
			admin.PUT("/addresses/:id", h.UpdateAddress)
			admin.POST("/addresses/:id/toggle", h.ToggleAddress)
			admin.DELETE("/addresses/:id", h.DeleteAddress)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	return r
}
