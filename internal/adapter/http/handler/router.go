package handler

import (
	"net/http"

	"custody-vault/internal/adapter/http/middleware"
	"custody-vault/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	VaultSvc       ports.VaultService
	CustodySvc     ports.CustodyService
	LedgerSvc      ports.LedgerService
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	TokenSvc       ports.TokenService
	RateLimitStore middleware.Limiter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	MetricsHandler http.Handler       // nil = no /metrics route
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	rules := middleware.DefaultRateLimitRules()

	// rl returns the group's rate limiter, or a noop without a store.
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	signed := middleware.SignedAuth(deps.SigSvc, deps.NonceStore, deps.Logger)
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	v1.POST("/auth/login", rl("auth_login"), authHandler.Login)

	vaultHandler := NewVaultHandler(deps.VaultSvc)
	custodyHandler := NewCustodyHandler(deps.CustodySvc, deps.VaultSvc)
	ledgerHandler := NewLedgerHandler(deps.LedgerSvc, deps.VaultSvc)

	vaults := v1.Group("/vaults")
	{
		vaults.GET("/:name", rl("read"), vaultHandler.Get)
		vaults.GET("/:name/positions", rl("read"), vaultHandler.ListPositions)
		vaults.GET("/:name/events", rl("read"), vaultHandler.ListEvents)
		vaults.GET("/:name/reconcile", rl("read"), vaultHandler.Reconcile)

		// Signed writes. Rate limiting runs first so floods never reach
		// signature verification.
		vaults.POST("", rl("vault_create"), signed, vaultHandler.Create)
		vaults.POST("/:name/deposit", rl("custody"), signed, custodyHandler.Deposit)
		vaults.POST("/:name/withdraw", rl("custody"), signed, custodyHandler.Withdraw)

		// Session reads
		vaults.GET("/:name/positions/me", jwtAuth, rl("read"), vaultHandler.MyPosition)
	}

	custody := v1.Group("/custody")
	{
		custody.POST("/accounts", rl("custody"), signed, ledgerHandler.OpenAccount)
		custody.GET("/accounts/:asset", jwtAuth, rl("read"), ledgerHandler.GetAccount)
		custody.POST("/faucet", jwtAuth, rl("custody_faucet"), ledgerHandler.Faucet)
	}

	return r
}
