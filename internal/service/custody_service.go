package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

const (
	opDeposit  = "deposit"
	opWithdraw = "withdraw"
)

// CustodyDeps groups the collaborators of CustodyServiceImpl.
type CustodyDeps struct {
	Vaults     ports.VaultRepository
	Positions  ports.PositionRepository
	Accounts   ports.CustodyAccountRepository
	Ledger     ports.AssetTransfer
	Events     ports.EventSink
	Publisher  ports.EventPublisher
	IdempRepo  ports.IdempotencyRepository
	IdempCache ports.IdempotencyCache
	Transactor ports.DBTransactor
	Metrics    ports.Metrics
}

// CustodyServiceImpl implements ports.CustodyService.
type CustodyServiceImpl struct {
	CustodyDeps
	programID domain.PublicKey
	now       func() time.Time
	log       zerolog.Logger
}

// NewCustodyService creates a new CustodyServiceImpl.
func NewCustodyService(deps CustodyDeps, programID domain.PublicKey, log zerolog.Logger) *CustodyServiceImpl {
	return &CustodyServiceImpl{
		CustodyDeps: deps,
		programID:   programID,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}
}

// Deposit moves funds from the investor's custody account into the vault and
// credits the investor's position. The transfer runs first; accounting only
// changes if it succeeded, and everything commits or rolls back together.
func (s *CustodyServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (receipt *domain.DepositReceipt, err error) {
	defer func() { s.Metrics.ObserveOperation(opDeposit, err, req.Amount) }()
	if req.Amount == 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	idempKey, err := s.idempotencyKey(req.VaultName, req.Investor, domain.EventKindDeposit, req.ReferenceID)
	if err != nil {
		return nil, err
	}
	if idempKey != "" {
		cached := &domain.DepositReceipt{}
		hit, err := s.replay(ctx, idempKey, cached)
		if err != nil {
			return nil, err
		}
		if hit {
			s.log.Info().Str("key", idempKey).Msg("idempotent replay, returning cached receipt")
			return cached, nil
		}
	}

	dbTx, err := s.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	vault, err := s.lockVault(ctx, dbTx, req.VaultName)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fresh, err := domain.NewInvestorPosition(vault.Address, req.Investor, s.programID, now)
	if err != nil {
		return nil, toAppError("derive position", err)
	}
	position, err := s.Positions.GetOrCreateForUpdate(ctx, dbTx, fresh)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock position: %w", err))
	}

	vaultAcct, err := domain.NewVaultCustodyAccount(vault, s.programID, now)
	if err != nil {
		return nil, toAppError("derive vault custody account", err)
	}
	if vaultAcct, err = s.Accounts.GetOrCreate(ctx, dbTx, vaultAcct); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("open vault custody account: %w", err))
	}
	investorAcct, err := domain.NewInvestorCustodyAccount(req.Investor, vault.Asset, s.programID, now)
	if err != nil {
		return nil, toAppError("derive investor custody account", err)
	}

	if err := s.Ledger.Transfer(ctx, dbTx, domain.TransferRequest{
		From:      investorAcct.Address,
		To:        vaultAcct.Address,
		Authority: domain.SignerAuthority(req.Investor),
		Amount:    req.Amount,
	}); err != nil {
		return nil, toAppError("transfer to vault", err)
	}

	if err := position.Credit(req.Amount); err != nil {
		return nil, toAppError("credit position", err)
	}
	if err := vault.AddValue(req.Amount); err != nil {
		return nil, toAppError("add vault value", err)
	}
	if err := s.persist(ctx, dbTx, vault, position); err != nil {
		return nil, err
	}

	evt := domain.NewDepositEvent(vault.Address, domain.DepositEvent{
		Investor:      req.Investor,
		Amount:        req.Amount,
		TotalInvested: position.Amount,
	}, req.ReferenceID, now)
	if err := s.Events.Append(ctx, dbTx, evt); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append event: %w", err))
	}

	view, _ := evt.Deposit()
	receipt = &domain.DepositReceipt{
		Vault:       vault.Address,
		Event:       view,
		VaultTotal:  vault.TotalValue,
		EventID:     evt.ID,
		Sequence:    evt.Sequence,
		ReferenceID: req.ReferenceID,
		ProcessedAt: now,
	}

	respJSON, err := s.recordReceipt(ctx, dbTx, idempKey, evt, receipt)
	if errors.Is(err, domain.ErrDuplicateOperation) {
		winner := &domain.DepositReceipt{}
		if err := s.replayConflict(ctx, dbTx, idempKey, winner); err != nil {
			return nil, err
		}
		return winner, nil
	}
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.afterCommit(ctx, idempKey, respJSON, evt)

	s.log.Info().
		Str("vault", vault.Name).
		Str("investor", req.Investor.String()).
		Uint64("amount", req.Amount).
		Uint64("total_invested", position.Amount).
		Uint64("vault_total", vault.TotalValue).
		Msg("deposit processed successfully")

	return receipt, nil
}

// Withdraw returns funds from the vault to the investor. The vault manager can
// never withdraw through this path. The vault signs the transfer with the
// authority re-derived from its stored name and bump.
func (s *CustodyServiceImpl) Withdraw(ctx context.Context, req ports.WithdrawRequest) (receipt *domain.WithdrawReceipt, err error) {
	defer func() { s.Metrics.ObserveOperation(opWithdraw, err, req.Amount) }()
	if req.Amount == 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	idempKey, err := s.idempotencyKey(req.VaultName, req.Caller, domain.EventKindWithdraw, req.ReferenceID)
	if err != nil {
		return nil, err
	}
	if idempKey != "" {
		cached := &domain.WithdrawReceipt{}
		hit, err := s.replay(ctx, idempKey, cached)
		if err != nil {
			return nil, err
		}
		if hit {
			s.log.Info().Str("key", idempKey).Msg("idempotent replay, returning cached receipt")
			return cached, nil
		}
	}

	dbTx, err := s.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	vault, err := s.lockVault(ctx, dbTx, req.VaultName)
	if err != nil {
		return nil, err
	}

	// Business rule: the manager is excluded regardless of any position.
	if vault.IsManager(req.Caller) {
		return nil, apperror.ErrManagerCannotWithdraw()
	}

	addr, err := domain.PositionAddress(vault.Address, req.Caller, s.programID)
	if err != nil {
		return nil, toAppError("derive position", err)
	}
	position, err := s.Positions.GetForUpdate(ctx, dbTx, addr)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock position: %w", err))
	}
	if position == nil || !position.Covers(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	authority, err := vault.Authority(s.programID)
	if err != nil {
		return nil, apperror.ErrAuthorityMismatch(err)
	}

	now := s.now()
	vaultAddr, err := vault.CustodyAddress(s.programID)
	if err != nil {
		return nil, toAppError("derive vault custody account", err)
	}
	investorAcct, err := domain.NewInvestorCustodyAccount(req.Caller, vault.Asset, s.programID, now)
	if err != nil {
		return nil, toAppError("derive investor custody account", err)
	}
	if investorAcct, err = s.Accounts.GetOrCreate(ctx, dbTx, investorAcct); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("open investor custody account: %w", err))
	}

	if err := s.Ledger.Transfer(ctx, dbTx, domain.TransferRequest{
		From:      vaultAddr,
		To:        investorAcct.Address,
		Authority: authority,
		Amount:    req.Amount,
	}); err != nil {
		return nil, toAppError("transfer from vault", err)
	}

	if err := position.Debit(req.Amount); err != nil {
		return nil, toAppError("debit position", err)
	}
	if err := vault.SubValue(req.Amount); err != nil {
		return nil, toAppError("subtract vault value", err)
	}
	if err := s.persist(ctx, dbTx, vault, position); err != nil {
		return nil, err
	}

	evt := domain.NewWithdrawEvent(vault.Address, domain.WithdrawEvent{
		Investor:         req.Caller,
		Amount:           req.Amount,
		RemainingBalance: position.Amount,
	}, req.ReferenceID, now)
	if err := s.Events.Append(ctx, dbTx, evt); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append event: %w", err))
	}

	view, _ := evt.Withdraw()
	receipt = &domain.WithdrawReceipt{
		Vault:       vault.Address,
		Event:       view,
		VaultTotal:  vault.TotalValue,
		EventID:     evt.ID,
		Sequence:    evt.Sequence,
		ReferenceID: req.ReferenceID,
		ProcessedAt: now,
	}

	respJSON, err := s.recordReceipt(ctx, dbTx, idempKey, evt, receipt)
	if errors.Is(err, domain.ErrDuplicateOperation) {
		winner := &domain.WithdrawReceipt{}
		if err := s.replayConflict(ctx, dbTx, idempKey, winner); err != nil {
			return nil, err
		}
		return winner, nil
	}
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.afterCommit(ctx, idempKey, respJSON, evt)

	s.log.Info().
		Str("vault", vault.Name).
		Str("investor", req.Caller.String()).
		Uint64("amount", req.Amount).
		Uint64("remaining_balance", position.Amount).
		Uint64("vault_total", vault.TotalValue).
		Msg("withdrawal processed successfully")

	return receipt, nil
}

func (s *CustodyServiceImpl) lockVault(ctx context.Context, tx pgx.Tx, name string) (*domain.Vault, error) {
	vault, err := s.Vaults.GetByNameForUpdate(ctx, tx, name)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock vault: %w", err))
	}
	if vault == nil {
		return nil, apperror.ErrVaultNotFound(name)
	}
	return vault, nil
}

func (s *CustodyServiceImpl) persist(ctx context.Context, tx pgx.Tx, vault *domain.Vault, position *domain.InvestorPosition) error {
	if err := s.Positions.UpdateAmount(ctx, tx, position.Address, position.Amount); err != nil {
		return apperror.InternalError(fmt.Errorf("update position: %w", err))
	}
	if err := s.Vaults.UpdateTotalValue(ctx, tx, vault.Address, vault.TotalValue); err != nil {
		return apperror.InternalError(fmt.Errorf("update vault total: %w", err))
	}
	return nil
}

// idempotencyKey returns "" when the request carries no reference. The vault
// address is derived from the name so replays are answered without a lock.
func (s *CustodyServiceImpl) idempotencyKey(vaultName string, investor domain.PublicKey, kind domain.EventKind, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	if err := domain.ValidateVaultName(vaultName); err != nil {
		return "", apperror.ErrVaultNotFound(vaultName)
	}
	addr, _, err := domain.FindProgramAddress(domain.VaultSeeds(vaultName), s.programID)
	if err != nil {
		return "", toAppError("derive vault address", err)
	}
	return domain.BuildIdempotencyKey(addr, investor, kind, ref), nil
}

// replay looks the key up in Redis, then Postgres, and decodes a hit into dst.
func (s *CustodyServiceImpl) replay(ctx context.Context, key string, dst any) (bool, error) {
	cached, err := s.IdempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached == nil {
		idempLog, err := s.IdempRepo.Get(ctx, key)
		if err != nil {
			return false, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
		}
		if idempLog == nil {
			return false, nil
		}
		cached = idempLog.ResponseJSON
	}
	if err := json.Unmarshal(cached, dst); err != nil {
		return false, apperror.InternalError(fmt.Errorf("unmarshal cached receipt: %w", err))
	}
	return true, nil
}

// replayConflict handles a request that lost the race to record its key. Its
// transaction is discarded and the committed receipt is returned instead.
func (s *CustodyServiceImpl) replayConflict(ctx context.Context, tx pgx.Tx, key string, dst any) error {
	if err := tx.Rollback(ctx); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("rollback after idempotency conflict failed")
	}
	hit, err := s.replay(ctx, key, dst)
	if err != nil {
		return err
	}
	if !hit {
		return apperror.InternalError(fmt.Errorf("idempotency key %s conflicted but no receipt is stored", key))
	}
	s.log.Info().Str("key", key).Msg("concurrent duplicate, returning committed receipt")
	return nil
}

func (s *CustodyServiceImpl) recordReceipt(ctx context.Context, tx pgx.Tx, key string, evt *domain.VaultEvent, receipt any) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	respJSON, err := json.Marshal(receipt)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal receipt: %w", err))
	}
	if err := s.IdempRepo.Create(ctx, tx, &domain.IdempotencyLog{
		Key:          key,
		EventID:      evt.ID,
		ResponseJSON: respJSON,
		CreatedAt:    evt.CreatedAt,
	}); err != nil {
		if errors.Is(err, domain.ErrDuplicateOperation) {
			return nil, err
		}
		return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
	}
	return respJSON, nil
}

// afterCommit runs the best-effort side effects of a committed operation.
func (s *CustodyServiceImpl) afterCommit(ctx context.Context, key string, respJSON []byte, evt *domain.VaultEvent) {
	if key != "" {
		if err := s.IdempCache.Set(ctx, key, respJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
		}
	}
	if err := s.Publisher.Publish(ctx, evt); err != nil {
		s.log.Warn().Err(err).Int64("sequence", evt.Sequence).Msg("failed to publish vault event")
	}
}
