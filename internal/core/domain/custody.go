package domain

import (
	"math/bits"
	"time"
)

// CustodyAccount is an asset-holding account in the token ledger.
// Owner is either a human identity or a vault's derived authority.
type CustodyAccount struct {
	Address   PublicKey `json:"address"`
	Owner     PublicKey `json:"owner"`
	Asset     PublicKey `json:"asset"`
	Balance   uint64    `json:"balance"`
	Frozen    bool      `json:"frozen"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewInvestorCustodyAccount derives the custody account an investor holds for asset.
func NewInvestorCustodyAccount(investor, asset, programID PublicKey, now time.Time) (*CustodyAccount, error) {
	addr, _, err := FindProgramAddress(InvestorTokenSeeds(investor, asset), programID)
	if err != nil {
		return nil, err
	}
	return &CustodyAccount{Address: addr, Owner: investor, Asset: asset, CreatedAt: now, UpdatedAt: now}, nil
}

// NewVaultCustodyAccount derives the custody account owned by the vault's authority.
func NewVaultCustodyAccount(v *Vault, programID PublicKey, now time.Time) (*CustodyAccount, error) {
	addr, err := v.CustodyAddress(programID)
	if err != nil {
		return nil, err
	}
	return &CustodyAccount{Address: addr, Owner: v.Address, Asset: v.Asset, CreatedAt: now, UpdatedAt: now}, nil
}

// Debit removes amount from the account.
func (a *CustodyAccount) Debit(amount uint64) error {
	if a.Balance < amount {
		return ErrTransferInsufficientBalance
	}
	a.Balance -= amount
	return nil
}

// Credit adds amount to the account.
func (a *CustodyAccount) Credit(amount uint64) error {
	sum, carry := bits.Add64(a.Balance, amount, 0)
	if carry != 0 {
		return ErrArithmeticOverflow
	}
	a.Balance = sum
	return nil
}

// TransferRequest moves Amount of an asset from one custody account to another.
type TransferRequest struct {
	From      PublicKey
	To        PublicKey
	Authority Authority
	Amount    uint64
}
