package service

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"custody-vault/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func key(b byte) domain.PublicKey {
	var k domain.PublicKey
	for i := range k {
		k[i] = b
	}
	return k
}

var (
	testProgram = key(7)
	testAsset   = key(3)
	testNow     = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
)

// mockTx implements pgx.Tx for gomock-driven tests.
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// --- In-memory transactional store ---

// memState is one consistent snapshot of every table.
type memState struct {
	vaults    map[string]domain.Vault
	positions map[domain.PublicKey]domain.InvestorPosition
	accounts  map[domain.PublicKey]domain.CustodyAccount
	events    []domain.VaultEvent
	idemp     map[string]domain.IdempotencyLog
	seq       int64
}

func (s *memState) clone() *memState {
	c := &memState{
		vaults:    make(map[string]domain.Vault, len(s.vaults)),
		positions: make(map[domain.PublicKey]domain.InvestorPosition, len(s.positions)),
		accounts:  make(map[domain.PublicKey]domain.CustodyAccount, len(s.accounts)),
		events:    slices.Clone(s.events),
		idemp:     make(map[string]domain.IdempotencyLog, len(s.idemp)),
		seq:       s.seq,
	}
	for k, v := range s.vaults {
		c.vaults[k] = v
	}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.idemp {
		c.idemp[k] = v
	}
	return c
}

// memStore serializes transactions with a single lock, which is stricter
// than row locks but gives the same isolation to the code under test.
// Work done inside a memTx is visible to others only after Commit.
type memStore struct {
	mu        sync.Mutex
	committed *memState

	// failAppend makes the next event append fail.
	failAppend error
}

func newMemStore() *memStore {
	return &memStore{committed: (&memState{}).clone()}
}

func (s *memStore) Begin(ctx context.Context) (pgx.Tx, error) {
	s.mu.Lock()
	return &memTx{store: s, state: s.committed.clone()}, nil
}

func (s *memStore) read(fn func(st *memState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.committed)
}

type memTx struct {
	pgx.Tx
	store *memStore
	state *memState
	done  bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.committed = t.state
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func txState(tx pgx.Tx) *memState {
	return tx.(*memTx).state
}

// vaults, positions, accounts, events and idempotency expose the store
// through the repository ports.
func (s *memStore) vaults() *memVaults           { return &memVaults{s} }
func (s *memStore) positions() *memPositions     { return &memPositions{s} }
func (s *memStore) accounts() *memAccounts       { return &memAccounts{s} }
func (s *memStore) events() *memEvents           { return &memEvents{s} }
func (s *memStore) idempotency() *memIdempotency { return &memIdempotency{s} }

type memVaults struct{ s *memStore }

func (r *memVaults) Create(ctx context.Context, tx pgx.Tx, v *domain.Vault) error {
	st := txState(tx)
	if _, ok := st.vaults[v.Name]; ok {
		return domain.ErrVaultExists
	}
	st.vaults[v.Name] = *v
	return nil
}

func (r *memVaults) GetByName(ctx context.Context, name string) (*domain.Vault, error) {
	var out *domain.Vault
	r.s.read(func(st *memState) {
		if v, ok := st.vaults[name]; ok {
			out = &v
		}
	})
	return out, nil
}

func (r *memVaults) GetByNameForUpdate(ctx context.Context, tx pgx.Tx, name string) (*domain.Vault, error) {
	v, ok := txState(tx).vaults[name]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *memVaults) UpdateTotalValue(ctx context.Context, tx pgx.Tx, address domain.PublicKey, totalValue uint64) error {
	st := txState(tx)
	for name, v := range st.vaults {
		if v.Address == address {
			v.TotalValue = totalValue
			st.vaults[name] = v
			return nil
		}
	}
	return fmt.Errorf("vault %s not found", address)
}

type memPositions struct{ s *memStore }

func (r *memPositions) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, p *domain.InvestorPosition) (*domain.InvestorPosition, error) {
	st := txState(tx)
	if _, ok := st.positions[p.Address]; !ok {
		st.positions[p.Address] = *p
	}
	out := st.positions[p.Address]
	return &out, nil
}

func (r *memPositions) GetForUpdate(ctx context.Context, tx pgx.Tx, address domain.PublicKey) (*domain.InvestorPosition, error) {
	p, ok := txState(tx).positions[address]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memPositions) Get(ctx context.Context, address domain.PublicKey) (*domain.InvestorPosition, error) {
	var out *domain.InvestorPosition
	r.s.read(func(st *memState) {
		if p, ok := st.positions[address]; ok {
			out = &p
		}
	})
	return out, nil
}

func (r *memPositions) ListByVault(ctx context.Context, vault domain.PublicKey) ([]domain.InvestorPosition, error) {
	var out []domain.InvestorPosition
	r.s.read(func(st *memState) {
		for _, p := range st.positions {
			if p.Vault == vault {
				out = append(out, p)
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.InvestorPosition) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.Address.Less(b.Address) {
			return -1
		}
		return 1
	})
	return out, nil
}

func (r *memPositions) SumByVault(ctx context.Context, vault domain.PublicKey) (uint64, error) {
	var sum uint64
	r.s.read(func(st *memState) {
		for _, p := range st.positions {
			if p.Vault == vault {
				sum += p.Amount
			}
		}
	})
	return sum, nil
}

func (r *memPositions) UpdateAmount(ctx context.Context, tx pgx.Tx, address domain.PublicKey, amount uint64) error {
	st := txState(tx)
	p, ok := st.positions[address]
	if !ok {
		return fmt.Errorf("position %s not found", address)
	}
	p.Amount = amount
	st.positions[address] = p
	return nil
}

type memAccounts struct{ s *memStore }

func (r *memAccounts) GetOrCreate(ctx context.Context, tx pgx.Tx, a *domain.CustodyAccount) (*domain.CustodyAccount, error) {
	st := txState(tx)
	if _, ok := st.accounts[a.Address]; !ok {
		st.accounts[a.Address] = *a
	}
	out := st.accounts[a.Address]
	return &out, nil
}

func (r *memAccounts) Get(ctx context.Context, address domain.PublicKey) (*domain.CustodyAccount, error) {
	var out *domain.CustodyAccount
	r.s.read(func(st *memState) {
		if a, ok := st.accounts[address]; ok {
			out = &a
		}
	})
	return out, nil
}

func (r *memAccounts) GetForUpdate(ctx context.Context, tx pgx.Tx, address domain.PublicKey) (*domain.CustodyAccount, error) {
	a, ok := txState(tx).accounts[address]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *memAccounts) UpdateBalance(ctx context.Context, tx pgx.Tx, address domain.PublicKey, balance uint64) error {
	st := txState(tx)
	a, ok := st.accounts[address]
	if !ok {
		return fmt.Errorf("custody account %s not found", address)
	}
	a.Balance = balance
	st.accounts[address] = a
	return nil
}

// setFrozen flips the frozen flag outside of any operation.
func (r *memAccounts) setFrozen(address domain.PublicKey, frozen bool) {
	r.s.read(func(st *memState) {
		a := st.accounts[address]
		a.Frozen = frozen
		st.accounts[address] = a
	})
}

type memEvents struct{ s *memStore }

func (r *memEvents) Append(ctx context.Context, tx pgx.Tx, evt *domain.VaultEvent) error {
	if err := r.s.failAppend; err != nil {
		r.s.failAppend = nil
		return err
	}
	st := txState(tx)
	st.seq++
	evt.Sequence = st.seq
	st.events = append(st.events, *evt)
	return nil
}

func (r *memEvents) ListByVault(ctx context.Context, vault domain.PublicKey, afterSequence int64, limit int) ([]domain.VaultEvent, error) {
	var out []domain.VaultEvent
	r.s.read(func(st *memState) {
		for _, e := range st.events {
			if e.Vault == vault && e.Sequence > afterSequence && len(out) < limit {
				out = append(out, e)
			}
		}
	})
	return out, nil
}

type memIdempotency struct{ s *memStore }

func (r *memIdempotency) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	st := txState(tx)
	if _, ok := st.idemp[log.Key]; ok {
		return domain.ErrDuplicateOperation
	}
	st.idemp[log.Key] = *log
	return nil
}

func (r *memIdempotency) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	var out *domain.IdempotencyLog
	r.s.read(func(st *memState) {
		if l, ok := st.idemp[key]; ok {
			out = &l
		}
	})
	return out, nil
}

// --- Redis-side fakes ---

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = value
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.VaultEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, evt *domain.VaultEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *evt)
	return nil
}

func (p *recordingPublisher) published() []domain.VaultEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}
