package postgres

import (
	"context"
	"testing"

	"custody-vault/internal/core/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRepo_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEventRepo(mock)
	vault := newTestVault().Address
	evt := domain.NewDepositEvent(vault, domain.DepositEvent{Investor: testInvestor, Amount: 500, TotalInvested: 500}, "ref-1", testNow)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO vault_events .+ RETURNING sequence").
		WithArgs(evt.ID, vault.String(), "DEPOSIT", testInvestor.String(), "500", "500", pgxmock.AnyArg(), testNow).
		WillReturnRows(pgxmock.NewRows([]string{"sequence"}).AddRow(int64(17)))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.Append(context.Background(), tx, evt))
	assert.Equal(t, int64(17), evt.Sequence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_ListByVault(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEventRepo(mock)
	vault := newTestVault().Address

	dep := domain.NewDepositEvent(vault, domain.DepositEvent{Investor: testInvestor, Amount: 1000, TotalInvested: 1000}, "", testNow)
	dep.Sequence = 3
	wd := domain.NewWithdrawEvent(vault, domain.WithdrawEvent{Investor: testInvestor, Amount: 400, RemainingBalance: 600}, "w-1", testNow)
	wd.Sequence = 4

	rows := pgxmock.NewRows([]string{"sequence", "id", "vault", "kind", "investor", "amount", "balance", "reference_id", "created_at"})
	for _, e := range []*domain.VaultEvent{dep, wd} {
		rows.AddRow(e.Sequence, e.ID, e.Vault.String(), string(e.Kind), e.Investor.String(),
			formatAmount(e.Amount), formatAmount(e.Balance), e.ReferenceID, e.CreatedAt)
	}

	mock.ExpectQuery("SELECT .+ FROM vault_events").
		WithArgs(vault.String(), int64(2), 50).
		WillReturnRows(rows)

	got, err := repo.ListByVault(context.Background(), vault, 2, 50)
	require.NoError(t, err)

	want := []domain.VaultEvent{*dep, *wd}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}

	view, ok := got[1].Withdraw()
	require.True(t, ok)
	assert.Equal(t, uint64(600), view.RemainingBalance)
}
