package postgres

import (
	"context"
	"testing"

	"custody-vault/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func custodyRows(accounts ...*domain.CustodyAccount) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"address", "owner", "asset", "balance", "frozen", "created_at", "updated_at"})
	for _, a := range accounts {
		rows.AddRow(a.Address.String(), a.Owner.String(), a.Asset.String(), formatAmount(a.Balance),
			a.Frozen, a.CreatedAt, a.UpdatedAt)
	}
	return rows
}

func TestCustodyAccountRepo_GetOrCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCustodyAccountRepo(mock)
	acct, err := domain.NewVaultCustodyAccount(newTestVault(), testProgram, testNow)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO custody_accounts .+ ON CONFLICT \\(address\\) DO NOTHING").
		WithArgs(acct.Address.String(), acct.Owner.String(), acct.Asset.String(), "0", false, acct.CreatedAt, acct.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT .+ FROM custody_accounts WHERE address").
		WithArgs(acct.Address.String()).
		WillReturnRows(custodyRows(acct))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	got, err := repo.GetOrCreate(context.Background(), tx, acct)
	require.NoError(t, err)
	assert.Equal(t, *acct, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustodyAccountRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM custody_accounts WHERE address").
		WithArgs(key(9).String()).
		WillReturnRows(custodyRows())

	got, err := NewCustodyAccountRepo(mock).Get(context.Background(), key(9))
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustodyAccountRepo_GetForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	acct, err := domain.NewInvestorCustodyAccount(testInvestor, testAsset, testProgram, testNow)
	require.NoError(t, err)
	acct.Balance = 1000
	acct.Frozen = true

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM custody_accounts WHERE address .+ FOR UPDATE").
		WithArgs(acct.Address.String()).
		WillReturnRows(custodyRows(acct))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	got, err := NewCustodyAccountRepo(mock).GetForUpdate(context.Background(), tx, acct.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), got.Balance)
	assert.True(t, got.Frozen)
	assert.Equal(t, testInvestor, got.Owner)
}

func TestCustodyAccountRepo_UpdateBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE custody_accounts SET balance").
		WithArgs("300", key(4).String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, NewCustodyAccountRepo(mock).UpdateBalance(context.Background(), tx, key(4), 300))
	assert.NoError(t, mock.ExpectationsWereMet())
}
