package postgres

import (
	"context"
	"errors"
	"fmt"

	"custody-vault/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const custodyColumns = `address, owner, asset, balance::text, frozen, created_at, updated_at`

// CustodyAccountRepo implements ports.CustodyAccountRepository.
type CustodyAccountRepo struct {
	pool Pool
}

// NewCustodyAccountRepo creates a new CustodyAccountRepo.
func NewCustodyAccountRepo(pool Pool) *CustodyAccountRepo {
	return &CustodyAccountRepo{pool: pool}
}

// GetOrCreate inserts the account if its derived address is free and returns
// the stored row.
func (r *CustodyAccountRepo) GetOrCreate(ctx context.Context, tx pgx.Tx, a *domain.CustodyAccount) (*domain.CustodyAccount, error) {
	insert := `INSERT INTO custody_accounts (address, owner, asset, balance, frozen, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		ON CONFLICT (address) DO NOTHING`

	if _, err := tx.Exec(ctx, insert,
		a.Address.String(), a.Owner.String(), a.Asset.String(), formatAmount(a.Balance),
		a.Frozen, a.CreatedAt, a.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert custody account: %w", err)
	}

	query := `SELECT ` + custodyColumns + ` FROM custody_accounts WHERE address = $1`
	stored, err := scanCustodyAccount(tx.QueryRow(ctx, query, a.Address.String()))
	if err != nil {
		return nil, fmt.Errorf("get custody account after insert: %w", err)
	}
	return stored, nil
}

// Get fetches a custody account by address (without locking).
func (r *CustodyAccountRepo) Get(ctx context.Context, address domain.PublicKey) (*domain.CustodyAccount, error) {
	query := `SELECT ` + custodyColumns + ` FROM custody_accounts WHERE address = $1`

	a, err := scanCustodyAccount(r.pool.QueryRow(ctx, query, address.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get custody account: %w", err)
	}
	return a, nil
}

// GetForUpdate fetches a custody account with pessimistic locking.
// This MUST be called within a transaction.
func (r *CustodyAccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, address domain.PublicKey) (*domain.CustodyAccount, error) {
	query := `SELECT ` + custodyColumns + ` FROM custody_accounts WHERE address = $1 FOR UPDATE`

	a, err := scanCustodyAccount(tx.QueryRow(ctx, query, address.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get custody account for update: %w", err)
	}
	return a, nil
}

// UpdateBalance stores an account balance within a transaction.
func (r *CustodyAccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, address domain.PublicKey, balance uint64) error {
	query := `UPDATE custody_accounts SET balance = $1::numeric, updated_at = NOW() WHERE address = $2`

	tag, err := tx.Exec(ctx, query, formatAmount(balance), address.String())
	if err != nil {
		return fmt.Errorf("update custody balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("custody account not found: %s", address)
	}
	return nil
}

func scanCustodyAccount(row rowScanner) (*domain.CustodyAccount, error) {
	var (
		a                  domain.CustodyAccount
		addr, owner, asset string
		balance            string
	)
	if err := row.Scan(&addr, &owner, &asset, &balance, &a.Frozen, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if err := parseKeys(
		keyColumn{"address", addr, &a.Address},
		keyColumn{"owner", owner, &a.Owner},
		keyColumn{"asset", asset, &a.Asset},
	); err != nil {
		return nil, err
	}
	v, err := parseAmount(balance)
	if err != nil {
		return nil, err
	}
	a.Balance = v
	return &a, nil
}
