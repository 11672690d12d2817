package handler

import (
	"referral-ledger/internal/adapter/http/middleware"
	redisStore "referral-ledger/internal/adapter/storage/redis"
	"referral-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	InviteSvc      ports.InviteService
	WalletSvc      ports.WalletService
	CommissionSvc  ports.CommissionService
	WithdrawalSvc  ports.WithdrawalService
	WebhookProc    ports.WebhookProcessor
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Provider webhook (public, signature-verified in the processor) ---
	webhookHandler := NewWebhookHandler(deps.WebhookProc)
	r.POST("/webhook", rl("webhook"), webhookHandler.Receive)

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	inviteHandler := NewInviteHandler(deps.InviteSvc)
	invite := v1.Group("/invite", jwtAuth)
	{
		invite.GET("/code", rl("wallet"), inviteHandler.GetCode)
		invite.POST("/redeem", rl("invite_redeem"), inviteHandler.Redeem)
		invite.GET("/stats", rl("wallet"), inviteHandler.Stats)
	}

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.CommissionSvc)
	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc)
	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("", rl("wallet"), walletHandler.Overview)
		wallet.GET("/commissions", rl("wallet"), walletHandler.ListCommissions)
		wallet.PUT("/payment-info", rl("wallet"), walletHandler.UpdatePaymentInfo)
		wallet.POST("/withdraw", rl("withdraw"), withdrawalHandler.Create)
		wallet.GET("/withdrawals", rl("wallet"), withdrawalHandler.List)
		wallet.DELETE("/withdrawals/:id", rl("withdraw"), withdrawalHandler.Cancel)
	}

	// --- Admin routes (JWT + role check) ---
	adminHandler := NewAdminHandler(deps.WithdrawalSvc, deps.CommissionSvc)
	admin := v1.Group("/admin", jwtAuth, middleware.RequireAdmin())
	{
		admin.GET("/withdrawals", adminHandler.ListWithdrawals)
		admin.POST("/withdrawals/:id/approve", adminHandler.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/reject", adminHandler.RejectWithdrawal)
		admin.GET("/commissions/stats", adminHandler.CommissionStats)
	}

	return r
}
