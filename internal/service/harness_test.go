package service

import (
	"context"
	"testing"
	"time"

	"custody-vault/internal/adapter/metrics"
	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// harness wires the real services over the in-memory store.
type harness struct {
	store   *memStore
	cache   *memCache
	pub     *recordingPublisher
	ledger  *TokenLedger
	vaults  *VaultServiceImpl
	custody *CustodyServiceImpl
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := newTestLogger()
	clock := func() time.Time { return testNow }

	h := &harness{
		store: newMemStore(),
		cache: newMemCache(),
		pub:   &recordingPublisher{},
	}
	h.ledger = NewTokenLedger(h.store.accounts(), h.store, testProgram, true, log)
	h.ledger.now = clock

	registry := domain.NewAssetRegistry(domain.Asset{Mint: testAsset, Symbol: "USDC", Decimals: 6})
	h.vaults = NewVaultService(
		h.store.vaults(), h.store.positions(), h.store.accounts(), h.store.events(),
		h.store, registry, testAsset, testProgram, log,
	)
	h.vaults.now = clock

	h.custody = NewCustodyService(CustodyDeps{
		Vaults:     h.store.vaults(),
		Positions:  h.store.positions(),
		Accounts:   h.store.accounts(),
		Ledger:     h.ledger,
		Events:     h.store.events(),
		Publisher:  h.pub,
		IdempRepo:  h.store.idempotency(),
		IdempCache: h.cache,
		Transactor: h.store,
		Metrics:    metrics.New(prometheus.NewRegistry()),
	}, testProgram, log)
	h.custody.now = clock
	return h
}

func (h *harness) createVault(t *testing.T, name string, manager domain.PublicKey) *domain.Vault {
	t.Helper()
	v, err := h.vaults.CreateVault(context.Background(), ports.CreateVaultRequest{Name: name, Manager: manager})
	require.NoError(t, err)
	return v
}

func (h *harness) fund(t *testing.T, owner domain.PublicKey, amount uint64) {
	t.Helper()
	_, err := h.ledger.Faucet(context.Background(), owner, testAsset, amount)
	require.NoError(t, err)
}

func (h *harness) deposit(name string, investor domain.PublicKey, amount uint64) (*domain.DepositReceipt, error) {
	return h.custody.Deposit(context.Background(), ports.DepositRequest{VaultName: name, Investor: investor, Amount: amount})
}

func (h *harness) withdraw(name string, caller domain.PublicKey, amount uint64) (*domain.WithdrawReceipt, error) {
	return h.custody.Withdraw(context.Background(), ports.WithdrawRequest{VaultName: name, Caller: caller, Amount: amount})
}

// snapshot is the observable state of one vault.
type snapshot struct {
	Total     uint64
	Positions map[domain.PublicKey]uint64
	Custody   uint64
	Events    int
}

func (h *harness) snapshot(t *testing.T, name string) snapshot {
	t.Helper()
	ctx := context.Background()
	v, err := h.vaults.GetVault(ctx, name)
	require.NoError(t, err)

	positions, err := h.vaults.ListPositions(ctx, name)
	require.NoError(t, err)
	snap := snapshot{Total: v.TotalValue, Positions: make(map[domain.PublicKey]uint64)}
	for _, p := range positions {
		snap.Positions[p.Investor] = p.Amount
	}

	rec, err := h.vaults.Reconcile(ctx, name)
	require.NoError(t, err)
	snap.Custody = rec.CustodyBalance

	events, err := h.vaults.ListEvents(ctx, name, 0, maxEventLimit)
	require.NoError(t, err)
	snap.Events = len(events)
	return snap
}

func (h *harness) balance(t *testing.T, owner domain.PublicKey) uint64 {
	t.Helper()
	acct, err := h.ledger.GetAccount(context.Background(), owner, testAsset)
	require.NoError(t, err)
	return acct.Balance
}
