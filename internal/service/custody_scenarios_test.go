package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	manager   = key(1)
	investor  = key(2)
	investor2 = key(4)
)

// setupPartiallyWithdrawn leaves fund1 with one investor holding 60 after a deposit
// of 100 and a withdrawal of 40.
func setupPartiallyWithdrawn(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	h.createVault(t, "fund1", manager)
	h.fund(t, investor, 1000)

	_, err := h.deposit("fund1", investor, 100)
	require.NoError(t, err)
	_, err = h.withdraw("fund1", investor, 40)
	require.NoError(t, err)
	return h
}

func TestDeposit_CreditsPositionAndTotal(t *testing.T) {
	h := newHarness(t)
	vault := h.createVault(t, "fund1", manager)
	h.fund(t, investor, 1000)

	receipt, err := h.deposit("fund1", investor, 100)
	require.NoError(t, err)

	if diff := cmp.Diff(domain.DepositEvent{Investor: investor, Amount: 100, TotalInvested: 100}, receipt.Event); diff != "" {
		t.Errorf("deposit event mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, vault.Address, receipt.Vault)
	assert.Equal(t, uint64(100), receipt.VaultTotal)
	assert.Equal(t, int64(1), receipt.Sequence)

	snap := h.snapshot(t, "fund1")
	assert.Equal(t, snapshot{
		Total:     100,
		Positions: map[domain.PublicKey]uint64{investor: 100},
		Custody:   100,
		Events:    1,
	}, snap)
	assert.Equal(t, uint64(900), h.balance(t, investor))

	events, err := h.vaults.ListEvents(context.Background(), "fund1", 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	got, ok := events[0].Deposit()
	require.True(t, ok)
	assert.Equal(t, receipt.Event, got)

	published := h.pub.published()
	require.Len(t, published, 1)
	assert.Equal(t, receipt.EventID, published[0].ID)
}

func TestWithdraw_DebitsPositionAndTotal(t *testing.T) {
	h := newHarness(t)
	h.createVault(t, "fund1", manager)
	h.fund(t, investor, 1000)
	_, err := h.deposit("fund1", investor, 100)
	require.NoError(t, err)

	receipt, err := h.withdraw("fund1", investor, 40)
	require.NoError(t, err)

	if diff := cmp.Diff(domain.WithdrawEvent{Investor: investor, Amount: 40, RemainingBalance: 60}, receipt.Event); diff != "" {
		t.Errorf("withdraw event mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(60), receipt.VaultTotal)

	snap := h.snapshot(t, "fund1")
	assert.Equal(t, uint64(60), snap.Total)
	assert.Equal(t, uint64(60), snap.Positions[investor])
	assert.Equal(t, uint64(60), snap.Custody)
	assert.Equal(t, 2, snap.Events)
	assert.Equal(t, uint64(940), h.balance(t, investor))
}

func TestWithdraw_MoreThanPositionRejected(t *testing.T) {
	h := setupPartiallyWithdrawn(t)
	before := h.snapshot(t, "fund1")

	_, err := h.withdraw("fund1", investor, 1000)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientFunds))

	assert.Equal(t, before, h.snapshot(t, "fund1"))
	assert.Equal(t, uint64(940), h.balance(t, investor))
}

func TestWithdraw_ManagerRejected(t *testing.T) {
	h := setupPartiallyWithdrawn(t)
	before := h.snapshot(t, "fund1")

	_, err := h.withdraw("fund1", manager, 10)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeManagerCannotWithdraw))

	assert.Equal(t, before, h.snapshot(t, "fund1"))
}

func TestWithdraw_ManagerRejectedEvenWithPosition(t *testing.T) {
	h := newHarness(t)
	h.createVault(t, "fund1", manager)
	h.fund(t, manager, 100)

	_, err := h.deposit("fund1", manager, 50)
	require.NoError(t, err)

	_, err = h.withdraw("fund1", manager, 50)
	assert.True(t, apperror.HasCode(err, apperror.CodeManagerCannotWithdraw))
	assert.Equal(t, uint64(50), h.snapshot(t, "fund1").Positions[manager])
}

func TestDeposit_PositionsAreIndependent(t *testing.T) {
	h := newHarness(t)
	h.createVault(t, "fund1", manager)
	h.fund(t, investor, 100)
	h.fund(t, investor2, 100)

	_, err := h.deposit("fund1", investor, 50)
	require.NoError(t, err)
	_, err = h.deposit("fund1", investor2, 30)
	require.NoError(t, err)

	snap := h.snapshot(t, "fund1")
	assert.Equal(t, uint64(80), snap.Total)
	assert.Equal(t, map[domain.PublicKey]uint64{investor: 50, investor2: 30}, snap.Positions)
	assert.Equal(t, uint64(80), snap.Custody)
}

func TestCustody_ZeroAmountRejected(t *testing.T) {
	h := newHarness(t)
	h.createVault(t, "fund1", manager)
	h.fund(t, investor, 100)

	_, err := h.deposit("fund1", investor, 0)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAmount))

	_, err = h.withdraw("fund1", investor, 0)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAmount))

	assert.Equal(t, snapshot{Positions: map[domain.PublicKey]uint64{}}, h.snapshot(t, "fund1"))
	assert.Equal(t, uint64(100), h.balance(t, investor))
}

func TestDeposit_UnknownVault(t *testing.T) {
	h := newHarness(t)
	h.fund(t, investor, 100)

	_, err := h.deposit("nope", investor, 10)
	assert.True(t, apperror.HasCode(err, apperror.CodeVaultNotFound))
	assert.Equal(t, uint64(100), h.balance(t, investor))
}

func TestDeposit_FailedTransferLeavesNoPosition(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness)
		code  string
	}{
		{
			name:  "no custody account",
			setup: func(t *testing.T, h *harness) {},
			code:  apperror.CodeAccountNotFound,
		},
		{
			name:  "insufficient balance",
			setup: func(t *testing.T, h *harness) { h.fund(t, investor, 5) },
			code:  apperror.CodeTransferInsufficient,
		},
		{
			name: "frozen account",
			setup: func(t *testing.T, h *harness) {
				h.fund(t, investor, 100)
				acct, err := domain.NewInvestorCustodyAccount(investor, testAsset, testProgram, testNow)
				require.NoError(t, err)
				h.store.accounts().setFrozen(acct.Address, true)
			},
			code: apperror.CodeAccountFrozen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.createVault(t, "fund1", manager)
			tt.setup(t, h)

			_, err := h.deposit("fund1", investor, 10)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)

			assert.Equal(t, snapshot{Positions: map[domain.PublicKey]uint64{}}, h.snapshot(t, "fund1"))
			assert.Empty(t, h.pub.published())
		})
	}
}

func TestDeposit_EventFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.createVault(t, "fund1", manager)
	h.fund(t, investor, 100)
	h.store.failAppend = errors.New("journal unavailable")

	_, err := h.deposit("fund1", investor, 10)
	assert.True(t, apperror.HasCode(err, apperror.CodeInternal))

	assert.Equal(t, snapshot{Positions: map[domain.PublicKey]uint64{}}, h.snapshot(t, "fund1"))
	assert.Equal(t, uint64(100), h.balance(t, investor))
	assert.Empty(t, h.pub.published())
}

func TestDeposit_OverflowRollsBack(t *testing.T) {
	h := newHarness(t)
	h.createVault(t, "fund1", manager)
	h.fund(t, investor, math.MaxUint64)
	h.fund(t, investor2, 1)

	_, err := h.deposit("fund1", investor, math.MaxUint64)
	require.NoError(t, err)
	before := h.snapshot(t, "fund1")

	_, err = h.deposit("fund1", investor2, 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeArithmeticOverflow))

	assert.Equal(t, before, h.snapshot(t, "fund1"))
	assert.Equal(t, uint64(1), h.balance(t, investor2))
}

func TestWithdraw_NoPosition(t *testing.T) {
	h := newHarness(t)
	h.createVault(t, "fund1", manager)

	_, err := h.withdraw("fund1", investor, 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientFunds))
}

func TestWithdraw_OpensInvestorAccount(t *testing.T) {
	h := newHarness(t)
	h.createVault(t, "fund1", manager)
	h.fund(t, investor, 100)
	_, err := h.deposit("fund1", investor, 100)
	require.NoError(t, err)

	_, err = h.withdraw("fund1", investor, 100)
	require.NoError(t, err)

	snap := h.snapshot(t, "fund1")
	assert.Equal(t, uint64(0), snap.Total)
	assert.Equal(t, uint64(0), snap.Positions[investor])
	assert.Equal(t, uint64(100), h.balance(t, investor))
}

func TestDeposit_IdempotentReplay(t *testing.T) {
	h := newHarness(t)
	h.createVault(t, "fund1", manager)
	h.fund(t, investor, 100)
	req := ports.DepositRequest{VaultName: "fund1", Investor: investor, Amount: 10, ReferenceID: "ref-1"}

	first, err := h.custody.Deposit(context.Background(), req)
	require.NoError(t, err)

	second, err := h.custody.Deposit(context.Background(), req)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached receipt mismatch (-first +second):\n%s", diff)
	}

	// Redis lost the key; the journal copy still answers.
	h.cache.entries = make(map[string][]byte)
	third, err := h.custody.Deposit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.EventID, third.EventID)

	assert.Equal(t, uint64(90), h.balance(t, investor))
	assert.Equal(t, 1, h.snapshot(t, "fund1").Events)
}

func TestIdempotency_ScopedByKind(t *testing.T) {
	h := newHarness(t)
	h.createVault(t, "fund1", manager)
	h.fund(t, investor, 100)
	ctx := context.Background()

	dep, err := h.custody.Deposit(ctx, ports.DepositRequest{VaultName: "fund1", Investor: investor, Amount: 30, ReferenceID: "same"})
	require.NoError(t, err)
	wd, err := h.custody.Withdraw(ctx, ports.WithdrawRequest{VaultName: "fund1", Caller: investor, Amount: 10, ReferenceID: "same"})
	require.NoError(t, err)

	assert.NotEqual(t, dep.EventID, wd.EventID)
	assert.Equal(t, uint64(20), h.snapshot(t, "fund1").Total)
}

func TestDeposit_ConcurrentInvestors(t *testing.T) {
	h := newHarness(t)
	h.createVault(t, "fund1", manager)

	const investors = 20
	keys := make([]domain.PublicKey, investors)
	for i := range keys {
		keys[i] = key(byte(100 + i))
		h.fund(t, keys[i], 10)
	}

	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func(k domain.PublicKey) {
			defer wg.Done()
			_, err := h.deposit("fund1", k, 5)
			assert.NoError(t, err)
		}(k)
	}
	wg.Wait()

	snap := h.snapshot(t, "fund1")
	assert.Equal(t, uint64(100), snap.Total)
	assert.Len(t, snap.Positions, investors)
	assert.Equal(t, investors, snap.Events)

	rec, err := h.vaults.Reconcile(context.Background(), "fund1")
	require.NoError(t, err)
	assert.True(t, rec.Balanced())
}

func TestWithdraw_ConcurrentNoOverdraw(t *testing.T) {
	h := newHarness(t)
	h.createVault(t, "fund1", manager)
	h.fund(t, investor, 100)
	_, err := h.deposit("fund1", investor, 100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ok, rejected atomic.Int64
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.withdraw("fund1", investor, 20)
			switch {
			case err == nil:
				ok.Add(1)
			case apperror.HasCode(err, apperror.CodeInsufficientFunds):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), ok.Load())
	assert.Equal(t, int64(5), rejected.Load())
	snap := h.snapshot(t, "fund1")
	assert.Equal(t, uint64(0), snap.Total)
	assert.Equal(t, uint64(100), h.balance(t, investor))
}
