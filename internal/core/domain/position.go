package domain

import (
	"math/bits"
	"time"
)

// InvestorPosition is one investor's claim on one vault.
type InvestorPosition struct {
	Address   PublicKey `json:"address"`
	Vault     PublicKey `json:"vault"`
	Investor  PublicKey `json:"investor"`
	Amount    uint64    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewInvestorPosition returns the zero-balance position for (vault, investor).
func NewInvestorPosition(vault, investor, programID PublicKey, now time.Time) (*InvestorPosition, error) {
	addr, err := PositionAddress(vault, investor, programID)
	if err != nil {
		return nil, err
	}
	return &InvestorPosition{
		Address:   addr,
		Vault:     vault,
		Investor:  investor,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// PositionAddress derives the storage address of an investor position.
func PositionAddress(vault, investor, programID PublicKey) (PublicKey, error) {
	addr, _, err := FindProgramAddress(PositionSeeds(vault, investor), programID)
	return addr, err
}

// Credit adds amount. Overflow leaves the position untouched.
func (p *InvestorPosition) Credit(amount uint64) error {
	sum, carry := bits.Add64(p.Amount, amount, 0)
	if carry != 0 {
		return ErrArithmeticOverflow
	}
	p.Amount = sum
	return nil
}

// Debit subtracts amount if the position covers it.
func (p *InvestorPosition) Debit(amount uint64) error {
	if p.Amount < amount {
		return ErrInsufficientFunds
	}
	p.Amount -= amount
	return nil
}

// Covers reports whether a debit of amount would succeed.
func (p *InvestorPosition) Covers(amount uint64) bool {
	return p.Amount >= amount
}
