package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 500
)

// VaultServiceImpl implements ports.VaultService.
type VaultServiceImpl struct {
	vaults       ports.VaultRepository
	positions    ports.PositionRepository
	accounts     ports.CustodyAccountRepository
	events       ports.EventRepository
	transactor   ports.DBTransactor
	assets       *domain.AssetRegistry
	defaultAsset domain.PublicKey
	programID    domain.PublicKey
	now          func() time.Time
	log          zerolog.Logger
}

// NewVaultService creates a new VaultServiceImpl.
func NewVaultService(
	vaults ports.VaultRepository,
	positions ports.PositionRepository,
	accounts ports.CustodyAccountRepository,
	events ports.EventRepository,
	transactor ports.DBTransactor,
	assets *domain.AssetRegistry,
	defaultAsset domain.PublicKey,
	programID domain.PublicKey,
	log zerolog.Logger,
) *VaultServiceImpl {
	return &VaultServiceImpl{
		vaults:       vaults,
		positions:    positions,
		accounts:     accounts,
		events:       events,
		transactor:   transactor,
		assets:       assets,
		defaultAsset: defaultAsset,
		programID:    programID,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log,
	}
}

// CreateVault registers a new vault under name with the caller as manager.
// The vault's custody account is opened in the same transaction.
func (s *VaultServiceImpl) CreateVault(ctx context.Context, req ports.CreateVaultRequest) (*domain.Vault, error) {
	asset := s.defaultAsset
	if req.Asset != nil {
		asset = *req.Asset
	}
	if !s.assets.Accepts(asset) {
		return nil, apperror.ErrUnknownAsset()
	}

	now := s.now()
	vault, err := domain.NewVault(req.Name, req.Manager, asset, s.programID, now)
	if err != nil {
		return nil, toAppError("derive vault", err)
	}
	custody, err := domain.NewVaultCustodyAccount(vault, s.programID, now)
	if err != nil {
		return nil, toAppError("derive vault custody account", err)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.vaults.Create(ctx, dbTx, vault); err != nil {
		if errors.Is(err, domain.ErrVaultExists) {
			return nil, apperror.ErrAlreadyExists(req.Name)
		}
		return nil, apperror.InternalError(fmt.Errorf("create vault: %w", err))
	}
	if _, err := s.accounts.GetOrCreate(ctx, dbTx, custody); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("open vault custody account: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("vault", vault.Name).
		Str("address", vault.Address.String()).
		Str("manager", vault.Manager.String()).
		Str("asset", vault.Asset.String()).
		Msg("vault created")

	return vault, nil
}

// GetVault returns the vault registered under name.
func (s *VaultServiceImpl) GetVault(ctx context.Context, name string) (*domain.Vault, error) {
	if err := domain.ValidateVaultName(name); err != nil {
		return nil, apperror.ErrInvalidVaultName()
	}
	vault, err := s.vaults.GetByName(ctx, name)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get vault: %w", err))
	}
	if vault == nil {
		return nil, apperror.ErrVaultNotFound(name)
	}
	return vault, nil
}

// GetPosition returns the investor's position in the vault. An investor that
// never deposited has a zero position.
func (s *VaultServiceImpl) GetPosition(ctx context.Context, name string, investor domain.PublicKey) (*domain.InvestorPosition, error) {
	vault, err := s.GetVault(ctx, name)
	if err != nil {
		return nil, err
	}
	fresh, err := domain.NewInvestorPosition(vault.Address, investor, s.programID, vault.CreatedAt)
	if err != nil {
		return nil, toAppError("derive position", err)
	}
	position, err := s.positions.Get(ctx, fresh.Address)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get position: %w", err))
	}
	if position == nil {
		return fresh, nil
	}
	return position, nil
}

// ListPositions returns every position recorded for the vault.
func (s *VaultServiceImpl) ListPositions(ctx context.Context, name string) ([]domain.InvestorPosition, error) {
	vault, err := s.GetVault(ctx, name)
	if err != nil {
		return nil, err
	}
	positions, err := s.positions.ListByVault(ctx, vault.Address)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list positions: %w", err))
	}
	return positions, nil
}

// ListEvents pages through the vault's journal in sequence order.
func (s *VaultServiceImpl) ListEvents(ctx context.Context, name string, afterSequence int64, limit int) ([]domain.VaultEvent, error) {
	vault, err := s.GetVault(ctx, name)
	if err != nil {
		return nil, err
	}
	if afterSequence < 0 {
		afterSequence = 0
	}
	switch {
	case limit <= 0:
		limit = defaultEventLimit
	case limit > maxEventLimit:
		limit = maxEventLimit
	}
	events, err := s.events.ListByVault(ctx, vault.Address, afterSequence, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list events: %w", err))
	}
	return events, nil
}

// Reconcile compares the vault total against its positions and custody balance.
func (s *VaultServiceImpl) Reconcile(ctx context.Context, name string) (*domain.Reconciliation, error) {
	vault, err := s.GetVault(ctx, name)
	if err != nil {
		return nil, err
	}
	sum, err := s.positions.SumByVault(ctx, vault.Address)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum positions: %w", err))
	}
	custodyAddr, err := vault.CustodyAddress(s.programID)
	if err != nil {
		return nil, toAppError("derive vault custody account", err)
	}
	acct, err := s.accounts.Get(ctx, custodyAddr)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get vault custody account: %w", err))
	}

	rec := &domain.Reconciliation{
		Vault:        vault.Address,
		TotalValue:   vault.TotalValue,
		PositionsSum: sum,
	}
	if acct != nil {
		rec.CustodyBalance = acct.Balance
	}
	if !rec.Balanced() {
		s.log.Error().
			Str("vault", vault.Name).
			Uint64("total_value", rec.TotalValue).
			Uint64("positions_sum", rec.PositionsSum).
			Uint64("custody_balance", rec.CustodyBalance).
			Msg("vault ledger out of balance")
	}
	return rec, nil
}

// Asset describes mint using the configured registry.
func (s *VaultServiceImpl) Asset(mint domain.PublicKey) domain.Asset {
	return s.assets.Describe(mint)
}
