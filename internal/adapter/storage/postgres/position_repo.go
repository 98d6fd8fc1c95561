package postgres

import (
	"context"
	"errors"
	"fmt"

	"custody-vault/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const positionColumns = `address, vault, investor, amount::text, created_at, updated_at`

// PositionRepo implements ports.PositionRepository.
type PositionRepo struct {
	pool Pool
}

// NewPositionRepo creates a new PositionRepo.
func NewPositionRepo(pool Pool) *PositionRepo {
	return &PositionRepo{pool: pool}
}

// GetOrCreateForUpdate inserts a zero-balance position if none exists and
// returns the stored row locked. Concurrent first depositors both succeed:
// the loser's insert is a no-op and it blocks on the lock.
func (r *PositionRepo) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, p *domain.InvestorPosition) (*domain.InvestorPosition, error) {
	insert := `INSERT INTO investor_positions (address, vault, investor, amount, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5)
		ON CONFLICT (address) DO NOTHING`

	if _, err := tx.Exec(ctx, insert,
		p.Address.String(), p.Vault.String(), p.Investor.String(), p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert position: %w", err)
	}

	stored, err := r.GetForUpdate(ctx, tx, p.Address)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("position vanished after insert: %s", p.Address)
	}
	return stored, nil
}

// GetForUpdate fetches a position with pessimistic locking.
// This MUST be called within a transaction.
func (r *PositionRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, address domain.PublicKey) (*domain.InvestorPosition, error) {
	query := `SELECT ` + positionColumns + ` FROM investor_positions WHERE address = $1 FOR UPDATE`

	p, err := scanPosition(tx.QueryRow(ctx, query, address.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get position for update: %w", err)
	}
	return p, nil
}

// Get fetches a position by address (without locking).
func (r *PositionRepo) Get(ctx context.Context, address domain.PublicKey) (*domain.InvestorPosition, error) {
	query := `SELECT ` + positionColumns + ` FROM investor_positions WHERE address = $1`

	p, err := scanPosition(r.pool.QueryRow(ctx, query, address.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

// ListByVault returns every position of a vault, zero balances included.
func (r *PositionRepo) ListByVault(ctx context.Context, vault domain.PublicKey) ([]domain.InvestorPosition, error) {
	query := `SELECT ` + positionColumns + ` FROM investor_positions WHERE vault = $1 ORDER BY created_at, address`

	rows, err := r.pool.Query(ctx, query, vault.String())
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.InvestorPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return positions, nil
}

// SumByVault adds up all position amounts of a vault.
func (r *PositionRepo) SumByVault(ctx context.Context, vault domain.PublicKey) (uint64, error) {
	query := `SELECT COALESCE(SUM(amount), 0)::text FROM investor_positions WHERE vault = $1`

	var sum string
	if err := r.pool.QueryRow(ctx, query, vault.String()).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum positions: %w", err)
	}
	return parseAmount(sum)
}

// UpdateAmount stores a position balance within a transaction.
func (r *PositionRepo) UpdateAmount(ctx context.Context, tx pgx.Tx, address domain.PublicKey, amount uint64) error {
	query := `UPDATE investor_positions SET amount = $1::numeric, updated_at = NOW() WHERE address = $2`

	tag, err := tx.Exec(ctx, query, formatAmount(amount), address.String())
	if err != nil {
		return fmt.Errorf("update position amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position not found: %s", address)
	}
	return nil
}

func scanPosition(row rowScanner) (*domain.InvestorPosition, error) {
	var (
		p                     domain.InvestorPosition
		addr, vault, investor string
		amount                string
	)
	if err := row.Scan(&addr, &vault, &investor, &amount, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := parseKeys(
		keyColumn{"address", addr, &p.Address},
		keyColumn{"vault", vault, &p.Vault},
		keyColumn{"investor", investor, &p.Investor},
	); err != nil {
		return nil, err
	}
	v, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	p.Amount = v
	return &p, nil
}
