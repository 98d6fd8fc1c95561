package postgres

import (
	"context"
	"fmt"

	"custody-vault/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const eventColumns = `sequence, id, vault, kind, investor, amount::text, balance::text, COALESCE(reference_id, ''), created_at`

// EventRepo is the vault_events journal. It implements ports.EventRepository.
type EventRepo struct {
	pool Pool
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(pool Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Append inserts evt inside tx and stores the assigned sequence on it.
func (r *EventRepo) Append(ctx context.Context, tx pgx.Tx, evt *domain.VaultEvent) error {
	query := `INSERT INTO vault_events (id, vault, kind, investor, amount, balance, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8)
		RETURNING sequence`

	var ref *string
	if evt.ReferenceID != "" {
		ref = &evt.ReferenceID
	}

	err := tx.QueryRow(ctx, query,
		evt.ID, evt.Vault.String(), string(evt.Kind), evt.Investor.String(),
		formatAmount(evt.Amount), formatAmount(evt.Balance), ref, evt.CreatedAt,
	).Scan(&evt.Sequence)
	if err != nil {
		return fmt.Errorf("append vault event: %w", err)
	}
	return nil
}

// ListByVault returns up to limit events of a vault with sequence greater
// than afterSequence, oldest first.
func (r *EventRepo) ListByVault(ctx context.Context, vault domain.PublicKey, afterSequence int64, limit int) ([]domain.VaultEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM vault_events
		WHERE vault = $1 AND sequence > $2
		ORDER BY sequence ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, vault.String(), afterSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("list vault events: %w", err)
	}
	defer rows.Close()

	var events []domain.VaultEvent
	for rows.Next() {
		var (
			evt                   domain.VaultEvent
			vaultKey, investor    string
			kind, amount, balance string
		)
		if err := rows.Scan(&evt.Sequence, &evt.ID, &vaultKey, &kind, &investor,
			&amount, &balance, &evt.ReferenceID, &evt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vault event: %w", err)
		}
		if err := parseKeys(
			keyColumn{"vault", vaultKey, &evt.Vault},
			keyColumn{"investor", investor, &evt.Investor},
		); err != nil {
			return nil, err
		}
		if evt.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if evt.Balance, err = parseAmount(balance); err != nil {
			return nil, err
		}
		evt.Kind = domain.EventKind(kind)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vault events: %w", err)
	}
	return events, nil
}
