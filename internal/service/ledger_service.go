package service

import (
	"context"
	"fmt"
	"time"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// TokenLedger is the Postgres-backed token ledger. Transfer implements
// ports.AssetTransfer for the custody flows; the remaining methods implement
// ports.LedgerService for account provisioning.
type TokenLedger struct {
	accounts      ports.CustodyAccountRepository
	transactor    ports.DBTransactor
	programID     domain.PublicKey
	faucetEnabled bool
	now           func() time.Time
	log           zerolog.Logger
}

// NewTokenLedger creates a ledger that verifies derived authorities under programID.
func NewTokenLedger(
	accounts ports.CustodyAccountRepository,
	transactor ports.DBTransactor,
	programID domain.PublicKey,
	faucetEnabled bool,
	log zerolog.Logger,
) *TokenLedger {
	return &TokenLedger{
		accounts:      accounts,
		transactor:    transactor,
		programID:     programID,
		faucetEnabled: faucetEnabled,
		now:           func() time.Time { return time.Now().UTC() },
		log:           log,
	}
}

// Transfer moves req.Amount inside tx. Both accounts are locked in address
// order. Errors are domain sentinels; on error neither balance changes.
func (l *TokenLedger) Transfer(ctx context.Context, tx pgx.Tx, req domain.TransferRequest) error {
	if err := req.Authority.Verify(l.programID); err != nil {
		return err
	}

	from, to, err := l.lockPair(ctx, tx, req.From, req.To)
	if err != nil {
		return err
	}

	if from.Owner != req.Authority.Key {
		return domain.ErrTransferUnauthorized
	}
	if from.Frozen || to.Frozen {
		return domain.ErrAccountFrozen
	}
	if from.Asset != to.Asset {
		return domain.ErrAssetMismatch
	}
	if from.Balance < req.Amount {
		return domain.ErrTransferInsufficientBalance
	}
	if from.Address == to.Address {
		return nil
	}

	if err := from.Debit(req.Amount); err != nil {
		return err
	}
	if err := to.Credit(req.Amount); err != nil {
		return err
	}

	if err := l.accounts.UpdateBalance(ctx, tx, from.Address, from.Balance); err != nil {
		return fmt.Errorf("debit %s: %w", from.Address, err)
	}
	if err := l.accounts.UpdateBalance(ctx, tx, to.Address, to.Balance); err != nil {
		return fmt.Errorf("credit %s: %w", to.Address, err)
	}
	return nil
}

func (l *TokenLedger) lockPair(ctx context.Context, tx pgx.Tx, fromAddr, toAddr domain.PublicKey) (*domain.CustodyAccount, *domain.CustodyAccount, error) {
	first, second := fromAddr, toAddr
	if second.Less(first) {
		first, second = second, first
	}

	a, err := l.lock(ctx, tx, first)
	if err != nil {
		return nil, nil, err
	}
	b := a
	if second != first {
		if b, err = l.lock(ctx, tx, second); err != nil {
			return nil, nil, err
		}
	}

	if a.Address == fromAddr {
		return a, b, nil
	}
	return b, a, nil
}

func (l *TokenLedger) lock(ctx context.Context, tx pgx.Tx, addr domain.PublicKey) (*domain.CustodyAccount, error) {
	acct, err := l.accounts.GetForUpdate(ctx, tx, addr)
	if err != nil {
		return nil, fmt.Errorf("lock custody account: %w", err)
	}
	if acct == nil {
		return nil, domain.ErrAccountNotFound
	}
	return acct, nil
}

// OpenAccount creates the owner's custody account for asset if it does not exist.
func (l *TokenLedger) OpenAccount(ctx context.Context, owner, asset domain.PublicKey) (*domain.CustodyAccount, error) {
	fresh, err := domain.NewInvestorCustodyAccount(owner, asset, l.programID, l.now())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("derive custody account: %w", err))
	}

	dbTx, err := l.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	acct, err := l.accounts.GetOrCreate(ctx, dbTx, fresh)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("open custody account: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return acct, nil
}

// GetAccount returns the owner's custody account for asset.
func (l *TokenLedger) GetAccount(ctx context.Context, owner, asset domain.PublicKey) (*domain.CustodyAccount, error) {
	addr, _, err := domain.FindProgramAddress(domain.InvestorTokenSeeds(owner, asset), l.programID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("derive custody account: %w", err))
	}
	acct, err := l.accounts.Get(ctx, addr)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get custody account: %w", err))
	}
	if acct == nil {
		return nil, apperror.ErrAccountNotFound()
	}
	return acct, nil
}

// Faucet mints amount into the owner's custody account. Development only.
func (l *TokenLedger) Faucet(ctx context.Context, owner, asset domain.PublicKey, amount uint64) (*domain.CustodyAccount, error) {
	if !l.faucetEnabled {
		return nil, apperror.ErrFaucetDisabled()
	}
	if amount == 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	fresh, err := domain.NewInvestorCustodyAccount(owner, asset, l.programID, l.now())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("derive custody account: %w", err))
	}

	dbTx, err := l.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, err := l.accounts.GetOrCreate(ctx, dbTx, fresh); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("open custody account: %w", err))
	}
	acct, err := l.lock(ctx, dbTx, fresh.Address)
	if err != nil {
		return nil, toAppError("lock custody account", err)
	}
	if err := acct.Credit(amount); err != nil {
		return nil, toAppError("credit", err)
	}
	if err := l.accounts.UpdateBalance(ctx, dbTx, acct.Address, acct.Balance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	l.log.Info().
		Str("owner", owner.String()).
		Str("asset", asset.String()).
		Uint64("amount", amount).
		Msg("faucet credited custody account")

	return acct, nil
}
