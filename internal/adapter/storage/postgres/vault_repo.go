package postgres

import (
	"context"
	"errors"
	"fmt"

	"custody-vault/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const vaultColumns = `address, bump, name, manager, asset, total_value::text, created_at, updated_at`

// VaultRepo implements ports.VaultRepository.
type VaultRepo struct {
	pool Pool
}

// NewVaultRepo creates a new VaultRepo.
func NewVaultRepo(pool Pool) *VaultRepo {
	return &VaultRepo{pool: pool}
}

// Create inserts a new vault. The derived address and the name are both unique;
// a collision on either maps to domain.ErrVaultExists.
func (r *VaultRepo) Create(ctx context.Context, tx pgx.Tx, v *domain.Vault) error {
	query := `INSERT INTO vaults (address, bump, name, manager, asset, total_value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)`

	_, err := tx.Exec(ctx, query,
		v.Address.String(), int16(v.Bump), v.Name, v.Manager.String(), v.Asset.String(),
		formatAmount(v.TotalValue), v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrVaultExists
		}
		return fmt.Errorf("insert vault: %w", err)
	}
	return nil
}

// GetByName fetches a vault by name (without locking).
func (r *VaultRepo) GetByName(ctx context.Context, name string) (*domain.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE name = $1`

	v, err := scanVault(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get vault by name: %w", err)
	}
	return v, nil
}

// GetByNameForUpdate fetches a vault by name with pessimistic locking.
// This MUST be called within a transaction.
func (r *VaultRepo) GetByNameForUpdate(ctx context.Context, tx pgx.Tx, name string) (*domain.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE name = $1 FOR UPDATE`

	v, err := scanVault(tx.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get vault for update: %w", err)
	}
	return v, nil
}

// UpdateTotalValue stores the vault's running total within a transaction.
func (r *VaultRepo) UpdateTotalValue(ctx context.Context, tx pgx.Tx, address domain.PublicKey, totalValue uint64) error {
	query := `UPDATE vaults SET total_value = $1::numeric, updated_at = NOW() WHERE address = $2`

	tag, err := tx.Exec(ctx, query, formatAmount(totalValue), address.String())
	if err != nil {
		return fmt.Errorf("update vault total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vault not found: %s", address)
	}
	return nil
}

func scanVault(row rowScanner) (*domain.Vault, error) {
	var (
		v                    domain.Vault
		bump                 int16
		addr, manager, asset string
		total                string
	)
	if err := row.Scan(&addr, &bump, &v.Name, &manager, &asset, &total, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	if err := parseKeys(
		keyColumn{"address", addr, &v.Address},
		keyColumn{"manager", manager, &v.Manager},
		keyColumn{"asset", asset, &v.Asset},
	); err != nil {
		return nil, err
	}
	amount, err := parseAmount(total)
	if err != nil {
		return nil, err
	}
	v.Bump = uint8(bump)
	v.TotalValue = amount
	return &v, nil
}
