package router

import (
	"net/http"
	"time"

	"earnx/config"
	"earnx/internal/events"
	"earnx/internal/handler"
	"earnx/internal/ledger"
	"earnx/internal/metrics"
	"earnx/internal/middleware"
	"earnx/internal/repository"
	"earnx/internal/service"
	"earnx/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuditStore writes and reads the audit trail.
type AuditStore interface {
	service.AuditRecorder
	handler.AuditReader
}

type Stores struct {
	Accounts service.AccountStore
	Users    service.UserStore
	Audit    AuditStore
}

// NewStores returns gorm-backed stores, or in-process ones when db is nil.
func NewStores(db *gorm.DB, log *logrus.Logger) Stores {
	if db == nil {
		return Stores{
			Accounts: repository.NewMemoryAccountStore(),
			Users:    repository.NewMemoryUserStore(),
			Audit:    repository.NewMemoryAuditLogStore(),
		}
	}
	return Stores{
		Accounts: repository.NewAccountRepository(db, log),
		Users:    repository.NewUserRepository(db),
		Audit:    repository.NewAuditLogRepository(db),
	}
}

type Deps struct {
	Stores    Stores
	Publisher events.Publisher
	Prices    handler.PriceSource // nil when the price feed is disabled
	Hub       *ws.Hub
	Limiter   *middleware.RateLimiter
}

func Setup(cfg *config.Config, deps Deps, log *logrus.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.Metrics())

	hub := deps.Hub
	if hub == nil {
		hub = ws.NewHub()
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	}

	engine := ledger.NewEngine(cfg.Ledger.Rules())
	catalog := service.NewTaskCatalog(cfg.Ledger.TaskUserSharePercent, cfg.Ledger.AdRewardAmount)
	ledgerSvc := service.NewLedgerService(engine, deps.Stores.Accounts, catalog, deps.Publisher, hub,
		deps.Stores.Audit, cfg.Ledger.MaxConflictRetries, log)
	authSvc := service.NewAuthService(cfg, deps.Stores.Users, ledgerSvc, deps.Stores.Audit, log)

	authHandler := handler.NewAuthHandler(authSvc, log)
	googleOAuthHandler := handler.NewGoogleOAuthHandler(cfg, authSvc, log)
	accountHandler := handler.NewAccountHandler(ledgerSvc, log)
	adminHandler := handler.NewAdminHandler(ledgerSvc, deps.Stores.Audit, log)
	taskHandler := handler.NewTaskHandler(catalog)
	priceHandler := handler.NewPriceHandler(deps.Prices)

	authMw := middleware.AuthRequired(&cfg.JWT)
	rateMw := middleware.RateLimit(limiter)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/ws/account", ws.ServeAccountWS(&cfg.JWT, hub, ledgerSvc.Snapshot, log))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth", rateMw)
		{
			authGroup.POST("/signup", authHandler.SignUp)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", authMw, authHandler.Logout)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.GET("/google", googleOAuthHandler.Redirect)
			authGroup.GET("/google/callback", googleOAuthHandler.Callback)
			authGroup.POST("/google/token", googleOAuthHandler.Token)
		}

		api.GET("/price", priceHandler.Get)
		api.GET("/tasks", authMw, taskHandler.List)

		me := api.Group("/me")
		me.Use(authMw, rateMw)
		{
			me.GET("/account", accountHandler.GetAccount)
			me.GET("/referral", accountHandler.GetReferral)
			me.POST("/referral", accountHandler.ApplyReferral)
			me.POST("/rewards", accountHandler.ClaimReward)
			me.POST("/withdrawals", accountHandler.RequestWithdrawal)
			me.GET("/withdrawals/quote", accountHandler.QuoteWithdrawal)
			me.POST("/reset", accountHandler.Reset)
		}

		api.POST("/admin/login", rateMw, authHandler.AdminLogin)
		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.GET("/withdrawals", adminHandler.ListWithdrawals)
			admin.GET("/withdrawals/:tx_id/audit", adminHandler.WithdrawalAudit)
			admin.POST("/accounts/:account_id/withdrawals/:tx_id/resolve", adminHandler.ResolveWithdrawal)
		}
	}
	return r
}

var (
	_ AuditStore = (*repository.AuditLogRepository)(nil)
	_ AuditStore = (*repository.MemoryAuditLogStore)(nil)
)
