package postgres

import (
	"time"

	"custody-vault/internal/core/domain"
)

var (
	testProgram  = key(7)
	testManager  = key(1)
	testInvestor = key(2)
	testAsset    = key(3)
	testNow      = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
)

func key(b byte) domain.PublicKey {
	var k domain.PublicKey
	for i := range k {
		k[i] = b
	}
	return k
}

func newTestVault() *domain.Vault {
	v, err := domain.NewVault("fund1", testManager, testAsset, testProgram, testNow)
	if err != nil {
		panic(err)
	}
	return v
}
