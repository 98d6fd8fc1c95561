package domain

import (
	"math/bits"
	"time"
)

// Vault is a named custodial pool. Address and Bump come from deriving
// ("asset_vault", Name); the same pair signs outbound custody transfers.
type Vault struct {
	Address    PublicKey `json:"address"`
	Bump       uint8     `json:"bump"`
	Name       string    `json:"name"`
	Manager    PublicKey `json:"manager"`
	Asset      PublicKey `json:"asset"`
	TotalValue uint64    `json:"total_value"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewVault derives the vault address for name and returns an empty vault.
func NewVault(name string, manager, asset, programID PublicKey, now time.Time) (*Vault, error) {
	if err := ValidateVaultName(name); err != nil {
		return nil, err
	}
	addr, bump, err := FindProgramAddress(VaultSeeds(name), programID)
	if err != nil {
		return nil, err
	}
	return &Vault{
		Address:   addr,
		Bump:      bump,
		Name:      name,
		Manager:   manager,
		Asset:     asset,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsManager reports whether identity created the vault.
func (v *Vault) IsManager(identity PublicKey) bool {
	return v.Manager == identity
}

// AddValue increases TotalValue; on overflow nothing changes.
func (v *Vault) AddValue(amount uint64) error {
	sum, carry := bits.Add64(v.TotalValue, amount, 0)
	if carry != 0 {
		return ErrArithmeticOverflow
	}
	v.TotalValue = sum
	return nil
}

// SubValue decreases TotalValue; it never goes below zero.
func (v *Vault) SubValue(amount uint64) error {
	diff, borrow := bits.Sub64(v.TotalValue, amount, 0)
	if borrow != 0 {
		return ErrArithmeticOverflow
	}
	v.TotalValue = diff
	return nil
}

// Authority rebuilds the vault's signing authority from its stored name and
// bump. The result must reproduce the stored address.
func (v *Vault) Authority(programID PublicKey) (Authority, error) {
	auth := Authority{
		Key:   v.Address,
		Seeds: VaultSeeds(v.Name),
		Bump:  v.Bump,
	}
	if err := auth.Verify(programID); err != nil {
		return Authority{}, err
	}
	return auth, nil
}

// CustodyAddress derives the vault's custody account for its asset.
func (v *Vault) CustodyAddress(programID PublicKey) (PublicKey, error) {
	addr, _, err := FindProgramAddress(VaultTokenSeeds(v.Address, v.Asset), programID)
	return addr, err
}

// Reconciliation compares a vault's running total with the ledger behind it.
type Reconciliation struct {
	Vault          PublicKey `json:"vault"`
	TotalValue     uint64    `json:"total_value"`
	PositionsSum   uint64    `json:"positions_sum"`
	CustodyBalance uint64    `json:"custody_balance"`
}

// Balanced is true when the total equals both the position sum and the
// custody balance.
func (r Reconciliation) Balanced() bool {
	return r.TotalValue == r.PositionsSum && r.TotalValue == r.CustodyBalance
}
