package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"custody-vault/config"
	httpHandler "custody-vault/internal/adapter/http/handler"
	"custody-vault/internal/adapter/metrics"
	pgStorage "custody-vault/internal/adapter/storage/postgres"
	redisStorage "custody-vault/internal/adapter/storage/redis"
	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/internal/service"
	"custody-vault/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("CVS_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required (set CVS_JWT_SECRET)")
	}
	programID, err := domain.ParsePublicKey(cfg.Vault.ProgramID)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid vault.program_id")
	}
	assets, defaultAsset, err := buildAssets(cfg.Vault)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid vault asset configuration")
	}

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("program_id", programID.String()).
		Bool("faucet_enabled", cfg.Ledger.FaucetEnabled).
		Msg("Starting Custody Vault")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	if err := pgStorage.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	vaultRepo := pgStorage.NewVaultRepo(pool)
	positionRepo := pgStorage.NewPositionRepo(pool)
	accountRepo := pgStorage.NewCustodyAccountRepo(pool)
	eventRepo := pgStorage.NewEventRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	nonceStore := redisStorage.NewNonceStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	publisher := redisStorage.NewEventPublisher(rdb, cfg.Events.Stream, cfg.Events.MaxLen)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opMetrics := metrics.New(registry)

	// Initialize core services
	sigSvc := service.NewEd25519SignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	ledger := service.NewTokenLedger(accountRepo, transactor, programID, cfg.Ledger.FaucetEnabled, log)

	// Initialize business services
	authSvc := service.NewAuthService(sigSvc, tokenSvc, log)
	vaultSvc := service.NewVaultService(
		vaultRepo,
		positionRepo,
		accountRepo,
		eventRepo,
		transactor,
		assets,
		defaultAsset,
		programID,
		log,
	)
	custodySvc := service.NewCustodyService(service.CustodyDeps{
		Vaults:     vaultRepo,
		Positions:  positionRepo,
		Accounts:   accountRepo,
		Ledger:     ledger,
		Events:     eventRepo,
		Publisher:  publisher,
		IdempRepo:  idempotencyRepo,
		IdempCache: idempotencyCache,
		Transactor: transactor,
		Metrics:    opMetrics,
	}, programID, log)
	auditSvc := service.NewAuditService(auditRepo, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		VaultSvc:       vaultSvc,
		CustodySvc:     custodySvc,
		LedgerSvc:      ledger,
		SigSvc:         sigSvc,
		NonceStore:     nonceStore,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		AuditSvc:       auditSvc,
		MetricsHandler: metrics.Handler(registry),
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	// Flush audit writes still in flight.
	auditSvc.Wait()

	log.Info().Msg("Server exited")
}

// buildAssets parses the configured asset list and default asset.
func buildAssets(cfg config.VaultConfig) (*domain.AssetRegistry, domain.PublicKey, error) {
	defaultAsset, err := domain.ParsePublicKey(cfg.DefaultAsset)
	if err != nil {
		return nil, domain.PublicKey{}, fmt.Errorf("default_asset: %w", err)
	}
	list := make([]domain.Asset, 0, len(cfg.Assets))
	for i, a := range cfg.Assets {
		mint, err := domain.ParsePublicKey(a.Mint)
		if err != nil {
			return nil, domain.PublicKey{}, fmt.Errorf("assets[%d].mint: %w", i, err)
		}
		list = append(list, domain.Asset{Mint: mint, Symbol: a.Symbol, Decimals: a.Decimals})
	}
	registry := domain.NewAssetRegistry(list...)
	if !registry.Accepts(defaultAsset) {
		return nil, domain.PublicKey{}, fmt.Errorf("default_asset %s is not in vault.assets", defaultAsset)
	}
	return registry, defaultAsset, nil
}
