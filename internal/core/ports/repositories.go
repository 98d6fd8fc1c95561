package ports

//go:generate mockgen -destination=mocks/mock_repositories.go -package=mocks custody-vault/internal/core/ports VaultRepository,PositionRepository,CustodyAccountRepository,EventRepository,IdempotencyRepository,AuditRepository,DBTransactor

import (
	"context"

	"custody-vault/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// VaultRepository defines persistence operations for vault records.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type VaultRepository interface {
	// Create inserts the vault. A name collision returns domain.ErrVaultExists.
	Create(ctx context.Context, tx pgx.Tx, vault *domain.Vault) error
	GetByName(ctx context.Context, name string) (*domain.Vault, error)
	GetByNameForUpdate(ctx context.Context, tx pgx.Tx, name string) (*domain.Vault, error)
	UpdateTotalValue(ctx context.Context, tx pgx.Tx, address domain.PublicKey, totalValue uint64) error
}

// PositionRepository defines persistence operations for investor positions.
type PositionRepository interface {
	// GetOrCreateForUpdate inserts the zero-balance position if absent and
	// returns the stored row locked for the rest of the transaction.
	GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, position *domain.InvestorPosition) (*domain.InvestorPosition, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, address domain.PublicKey) (*domain.InvestorPosition, error)
	Get(ctx context.Context, address domain.PublicKey) (*domain.InvestorPosition, error)
	ListByVault(ctx context.Context, vault domain.PublicKey) ([]domain.InvestorPosition, error)
	SumByVault(ctx context.Context, vault domain.PublicKey) (uint64, error)
	UpdateAmount(ctx context.Context, tx pgx.Tx, address domain.PublicKey, amount uint64) error
}

// CustodyAccountRepository defines persistence for token ledger accounts.
type CustodyAccountRepository interface {
	// GetOrCreate inserts the account if absent and returns the stored row.
	GetOrCreate(ctx context.Context, tx pgx.Tx, account *domain.CustodyAccount) (*domain.CustodyAccount, error)
	Get(ctx context.Context, address domain.PublicKey) (*domain.CustodyAccount, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, address domain.PublicKey) (*domain.CustodyAccount, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, address domain.PublicKey, balance uint64) error
}

// EventRepository is the durable vault event journal.
type EventRepository interface {
	EventSink
	ListByVault(ctx context.Context, vault domain.PublicKey, afterSequence int64, limit int) ([]domain.VaultEvent, error)
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
