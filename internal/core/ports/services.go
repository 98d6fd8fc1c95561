package ports

//go:generate mockgen -destination=mocks/mock_services.go -package=mocks custody-vault/internal/core/ports AssetTransfer,EventSink,EventPublisher,IdempotencyCache,NonceStore,SignatureService,TokenService,Metrics,VaultService,CustodyService,LedgerService,AuthService,AuditService

import (
	"context"
	"time"

	"custody-vault/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AssetTransfer is the token ledger primitive. It moves an asset between two
// custody accounts inside the caller's transaction, or fails with one of the
// domain transfer errors without changing either balance.
type AssetTransfer interface {
	Transfer(ctx context.Context, tx pgx.Tx, req domain.TransferRequest) error
}

// EventSink appends custody events inside the operation's transaction.
type EventSink interface {
	// Append stores evt and sets its Sequence.
	Append(ctx context.Context, tx pgx.Tx, evt *domain.VaultEvent) error
}

// EventPublisher fans committed events out to indexers. Delivery is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, evt *domain.VaultEvent) error
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, identity string, nonce string, ttl time.Duration) (bool, error)
}

// SignatureService verifies ed25519 request signatures made by identities.
type SignatureService interface {
	Verify(identity domain.PublicKey, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// TokenService handles JWT session tokens.
type TokenService interface {
	Generate(identity domain.PublicKey) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Identity domain.PublicKey
}

// Metrics records custody operation outcomes.
type Metrics interface {
	ObserveOperation(op string, err error, amount uint64)
}

// --- Service Ports (Business Logic) ---

// VaultService is the vault registry and its read models.
type VaultService interface {
	CreateVault(ctx context.Context, req CreateVaultRequest) (*domain.Vault, error)
	GetVault(ctx context.Context, name string) (*domain.Vault, error)
	GetPosition(ctx context.Context, name string, investor domain.PublicKey) (*domain.InvestorPosition, error)
	ListPositions(ctx context.Context, name string) ([]domain.InvestorPosition, error)
	ListEvents(ctx context.Context, name string, afterSequence int64, limit int) ([]domain.VaultEvent, error)
	Reconcile(ctx context.Context, name string) (*domain.Reconciliation, error)
	Asset(mint domain.PublicKey) domain.Asset
}

// CreateVaultRequest holds validated input for vault creation.
type CreateVaultRequest struct {
	Name    string
	Manager domain.PublicKey
	Asset   *domain.PublicKey // nil = configured default asset
}

// CustodyService moves funds between investors and vaults.
type CustodyService interface {
	Deposit(ctx context.Context, req DepositRequest) (*domain.DepositReceipt, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*domain.WithdrawReceipt, error)
}

// DepositRequest holds validated input for a deposit.
type DepositRequest struct {
	VaultName   string
	Investor    domain.PublicKey // verified signer
	Amount      uint64
	ReferenceID string // optional; enables idempotent replay
}

// WithdrawRequest holds validated input for a withdrawal.
type WithdrawRequest struct {
	VaultName   string
	Caller      domain.PublicKey // verified signer
	Amount      uint64
	ReferenceID string
}

// LedgerService exposes custody account provisioning to identities.
type LedgerService interface {
	OpenAccount(ctx context.Context, owner, asset domain.PublicKey) (*domain.CustodyAccount, error)
	GetAccount(ctx context.Context, owner, asset domain.PublicKey) (*domain.CustodyAccount, error)
	Faucet(ctx context.Context, owner, asset domain.PublicKey, amount uint64) (*domain.CustodyAccount, error)
}

// AuthService exchanges a signed login challenge for a session token.
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (string, time.Time, error) // token, expiry, error
}

// LoginRequest holds a signed login challenge.
type LoginRequest struct {
	Identity  domain.PublicKey
	Timestamp int64
	Signature string
}

// AuditService records audited actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
