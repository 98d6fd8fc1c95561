package domain

import "github.com/shopspring/decimal"

// Asset is identity metadata for a fungible asset kind. It carries no balance.
type Asset struct {
	Mint     PublicKey `json:"mint"`
	Symbol   string    `json:"symbol"`
	Decimals int32     `json:"decimals"`
}

// UIAmount converts base units into a display amount.
func (a Asset) UIAmount(amount uint64) decimal.Decimal {
	return decimal.NewFromUint64(amount).Shift(-a.Decimals)
}

// AssetRegistry lists the asset kinds vaults may hold. An empty registry
// accepts any asset.
type AssetRegistry struct {
	assets map[PublicKey]Asset
}

// NewAssetRegistry indexes assets by mint.
func NewAssetRegistry(assets ...Asset) *AssetRegistry {
	r := &AssetRegistry{assets: make(map[PublicKey]Asset, len(assets))}
	for _, a := range assets {
		r.assets[a.Mint] = a
	}
	return r
}

// Lookup returns the asset registered under mint.
func (r *AssetRegistry) Lookup(mint PublicKey) (Asset, bool) {
	a, ok := r.assets[mint]
	return a, ok
}

// Accepts reports whether a vault may be created for mint.
func (r *AssetRegistry) Accepts(mint PublicKey) bool {
	if len(r.assets) == 0 {
		return true
	}
	_, ok := r.assets[mint]
	return ok
}

// Describe returns registered metadata, or a zero-decimals placeholder.
func (r *AssetRegistry) Describe(mint PublicKey) Asset {
	if a, ok := r.assets[mint]; ok {
		return a
	}
	return Asset{Mint: mint}
}
