package domain

import (
	"crypto/sha256"

	"filippo.io/edwards25519"
)

// Seed prefixes used for every derived address in the system.
const (
	SeedVault         = "asset_vault"
	SeedPosition      = "investor_position"
	SeedVaultToken    = "vault_token"
	SeedInvestorToken = "investor_token"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

var derivedAddressMarker = []byte("ProgramDerivedAddress")

// CreateProgramAddress hashes seeds with the program id into an address that
// must not be a valid ed25519 point, so no private key can sign for it.
// The last seed is normally the one-byte bump.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	if len(seeds) > MaxSeeds {
		return PublicKey{}, ErrInvalidSeeds
	}
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > MaxSeedLength {
			return PublicKey{}, ErrInvalidSeeds
		}
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write(derivedAddressMarker)

	var addr PublicKey
	copy(addr[:], h.Sum(nil))
	if isOnCurve(addr[:]) {
		return PublicKey{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return PublicKey{}, 0, ErrInvalidSeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		switch err {
		case nil:
			return addr, uint8(bump), nil
		case ErrOnCurve:
			continue
		default:
			return PublicKey{}, 0, err
		}
	}
	return PublicKey{}, 0, ErrNoViableBump
}

func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// VaultSeeds returns the derivation seeds of a vault record and its signing authority.
func VaultSeeds(name string) [][]byte {
	return [][]byte{[]byte(SeedVault), []byte(name)}
}

// PositionSeeds returns the derivation seeds of an investor position.
func PositionSeeds(vault, investor PublicKey) [][]byte {
	return [][]byte{[]byte(SeedPosition), vault.Bytes(), investor.Bytes()}
}

// VaultTokenSeeds returns the derivation seeds of a vault's custody account.
func VaultTokenSeeds(vault, asset PublicKey) [][]byte {
	return [][]byte{[]byte(SeedVaultToken), vault.Bytes(), asset.Bytes()}
}

// InvestorTokenSeeds returns the derivation seeds of an investor's custody account.
func InvestorTokenSeeds(investor, asset PublicKey) [][]byte {
	return [][]byte{[]byte(SeedInvestorToken), investor.Bytes(), asset.Bytes()}
}

// ValidateVaultName enforces the seed length limit on vault names.
func ValidateVaultName(name string) error {
	if len(name) == 0 || len(name) > MaxSeedLength {
		return ErrInvalidVaultName
	}
	return nil
}

// Authority is the party approving a transfer out of a custody account.
// A signer authority is a human key whose signature was verified upstream.
// A derived authority carries the seeds and bump it was derived from and is
// accepted only if re-derivation reproduces Key.
type Authority struct {
	Key   PublicKey
	Seeds [][]byte
	Bump  uint8
}

// SignerAuthority wraps a verified signer identity.
func SignerAuthority(key PublicKey) Authority {
	return Authority{Key: key}
}

// IsDerived reports whether the authority is program-derived.
func (a Authority) IsDerived() bool {
	return len(a.Seeds) > 0
}

// Verify re-derives a derived authority under programID. Signer authorities pass.
func (a Authority) Verify(programID PublicKey) error {
	if !a.IsDerived() {
		return nil
	}
	seeds := make([][]byte, len(a.Seeds)+1)
	copy(seeds, a.Seeds)
	seeds[len(a.Seeds)] = []byte{a.Bump}
	addr, err := CreateProgramAddress(seeds, programID)
	if err != nil {
		return ErrAuthorityMismatch
	}
	if addr != a.Key {
		return ErrAuthorityMismatch
	}
	return nil
}
