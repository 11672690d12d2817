package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"referral-ledger/config"
	httpHandler "referral-ledger/internal/adapter/http/handler"
	pgStorage "referral-ledger/internal/adapter/storage/postgres"
	redisStorage "referral-ledger/internal/adapter/storage/redis"
	"referral-ledger/internal/core/ports"
	"referral-ledger/internal/service"
	"referral-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Referral Wallet Ledger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	redemptionRepo := pgStorage.NewRedemptionRepo(pool)
	commissionRepo := pgStorage.NewCommissionRepo(pool)
	withdrawalRepo := pgStorage.NewWithdrawalRepo(pool)
	eventRepo := pgStorage.NewEventRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	dedupCache := redisStorage.NewEventDedupCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	verifier := service.NewProviderWebhookVerifier(cfg.Provider.WebhookSecret, cfg.Provider.SignatureTolerance)

	// Initialize business services
	authSvc := service.NewAuthService(accountRepo, hashSvc, tokenSvc, cfg.Referral, log)
	inviteSvc := service.NewInviteService(accountRepo, redemptionRepo, commissionRepo, transactor, cfg.Referral, log)
	commissionSvc := service.NewCommissionService(accountRepo, commissionRepo, transactor, cfg.Referral, log)
	walletSvc := service.NewWalletService(accountRepo, commissionRepo, withdrawalRepo, cfg.Referral, log)
	withdrawalSvc := service.NewWithdrawalService(accountRepo, withdrawalRepo, transactor, cfg.Referral, log)
	webhookProc := service.NewWebhookProcessor(
		verifier,
		dedupCache,
		eventRepo,
		accountRepo,
		commissionSvc,
		cfg.Provider,
		cfg.Referral,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		InviteSvc:      inviteSvc,
		WalletSvc:      walletSvc,
		CommissionSvc:  commissionSvc,
		WithdrawalSvc:  withdrawalSvc,
		WebhookProc:    webhookProc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
