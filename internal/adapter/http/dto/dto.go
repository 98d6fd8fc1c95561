package dto

import (
	"time"

	"custody-vault/internal/core/domain"
)

// LoginRequest is the signed login challenge.
type LoginRequest struct {
	Identity  string `json:"identity" binding:"required,pubkey"`
	Timestamp int64  `json:"timestamp" binding:"required"`
	Signature string `json:"signature" binding:"required,base64"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreateVaultRequest is the request body for vault creation.
type CreateVaultRequest struct {
	Name  string  `json:"name" binding:"required,vault_name"`
	Asset *string `json:"asset,omitempty" binding:"omitempty,pubkey"`
}

// AmountRequest is the body of deposit and withdraw. Amount is in base units;
// zero is passed through so the service reports it.
type AmountRequest struct {
	Amount      *uint64 `json:"amount" binding:"required"`
	ReferenceID string  `json:"reference_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// OpenAccountRequest opens the caller's custody account for an asset.
type OpenAccountRequest struct {
	Asset string `json:"asset" binding:"required,pubkey"`
}

// FaucetRequest credits the caller's custody account.
type FaucetRequest struct {
	Asset  string `json:"asset" binding:"required,pubkey"`
	Amount uint64 `json:"amount" binding:"required,gt=0"`
}

// EventsQuery pages through a vault's journal.
type EventsQuery struct {
	After int64 `form:"after" binding:"min=0"`
	Limit int   `form:"limit" binding:"min=0,max=500"`
}

// VaultResponse describes a vault.
type VaultResponse struct {
	Address      string `json:"address"`
	Bump         uint8  `json:"bump"`
	Name         string `json:"name"`
	Manager      string `json:"manager"`
	Asset        string `json:"asset"`
	AssetSymbol  string `json:"asset_symbol,omitempty"`
	TotalValue   uint64 `json:"total_value"`
	UITotalValue string `json:"ui_total_value"`
	CreatedAt    string `json:"created_at"`
}

// PositionResponse describes one investor position.
type PositionResponse struct {
	Address  string `json:"address"`
	Vault    string `json:"vault"`
	Investor string `json:"investor"`
	Amount   uint64 `json:"amount"`
	UIAmount string `json:"ui_amount"`
}

// EventResponse is one journal entry.
type EventResponse struct {
	ID          string `json:"id"`
	Sequence    int64  `json:"sequence"`
	Kind        string `json:"kind"`
	Investor    string `json:"investor"`
	Amount      uint64 `json:"amount"`
	Balance     uint64 `json:"balance"`
	ReferenceID string `json:"reference_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// ReceiptResponse is returned by deposit and withdraw.
type ReceiptResponse struct {
	EventID     string `json:"event_id"`
	Sequence    int64  `json:"sequence"`
	Vault       string `json:"vault"`
	Investor    string `json:"investor"`
	Amount      uint64 `json:"amount"`
	UIAmount    string `json:"ui_amount"`
	Balance     uint64 `json:"balance"`
	VaultTotal  uint64 `json:"vault_total"`
	ReferenceID string `json:"reference_id,omitempty"`
	ProcessedAt string `json:"processed_at"`
}

// ReconcileResponse compares a vault's total with its ledgers.
type ReconcileResponse struct {
	Vault          string `json:"vault"`
	TotalValue     uint64 `json:"total_value"`
	PositionsSum   uint64 `json:"positions_sum"`
	CustodyBalance uint64 `json:"custody_balance"`
	Balanced       bool   `json:"balanced"`
}

// AccountResponse describes a custody account.
type AccountResponse struct {
	Address   string `json:"address"`
	Owner     string `json:"owner"`
	Asset     string `json:"asset"`
	Balance   uint64 `json:"balance"`
	UIBalance string `json:"ui_balance"`
	Frozen    bool   `json:"frozen"`
}

// NewVaultResponse renders v with amounts scaled by asset.
func NewVaultResponse(v *domain.Vault, asset domain.Asset) VaultResponse {
	return VaultResponse{
		Address:      v.Address.String(),
		Bump:         v.Bump,
		Name:         v.Name,
		Manager:      v.Manager.String(),
		Asset:        v.Asset.String(),
		AssetSymbol:  asset.Symbol,
		TotalValue:   v.TotalValue,
		UITotalValue: asset.UIAmount(v.TotalValue).String(),
		CreatedAt:    formatTime(v.CreatedAt),
	}
}

// NewPositionResponse renders p.
func NewPositionResponse(p *domain.InvestorPosition, asset domain.Asset) PositionResponse {
	return PositionResponse{
		Address:  p.Address.String(),
		Vault:    p.Vault.String(),
		Investor: p.Investor.String(),
		Amount:   p.Amount,
		UIAmount: asset.UIAmount(p.Amount).String(),
	}
}

// NewEventResponse renders e.
func NewEventResponse(e *domain.VaultEvent) EventResponse {
	return EventResponse{
		ID:          e.ID.String(),
		Sequence:    e.Sequence,
		Kind:        string(e.Kind),
		Investor:    e.Investor.String(),
		Amount:      e.Amount,
		Balance:     e.Balance,
		ReferenceID: e.ReferenceID,
		CreatedAt:   formatTime(e.CreatedAt),
	}
}

// NewDepositReceiptResponse renders a deposit receipt.
func NewDepositReceiptResponse(r *domain.DepositReceipt, asset domain.Asset) ReceiptResponse {
	return ReceiptResponse{
		EventID:     r.EventID.String(),
		Sequence:    r.Sequence,
		Vault:       r.Vault.String(),
		Investor:    r.Event.Investor.String(),
		Amount:      r.Event.Amount,
		UIAmount:    asset.UIAmount(r.Event.Amount).String(),
		Balance:     r.Event.TotalInvested,
		VaultTotal:  r.VaultTotal,
		ReferenceID: r.ReferenceID,
		ProcessedAt: formatTime(r.ProcessedAt),
	}
}

// NewWithdrawReceiptResponse renders a withdrawal receipt.
func NewWithdrawReceiptResponse(r *domain.WithdrawReceipt, asset domain.Asset) ReceiptResponse {
	return ReceiptResponse{
		EventID:     r.EventID.String(),
		Sequence:    r.Sequence,
		Vault:       r.Vault.String(),
		Investor:    r.Event.Investor.String(),
		Amount:      r.Event.Amount,
		UIAmount:    asset.UIAmount(r.Event.Amount).String(),
		Balance:     r.Event.RemainingBalance,
		VaultTotal:  r.VaultTotal,
		ReferenceID: r.ReferenceID,
		ProcessedAt: formatTime(r.ProcessedAt),
	}
}

// NewReconcileResponse renders r.
func NewReconcileResponse(r *domain.Reconciliation) ReconcileResponse {
	return ReconcileResponse{
		Vault:          r.Vault.String(),
		TotalValue:     r.TotalValue,
		PositionsSum:   r.PositionsSum,
		CustodyBalance: r.CustodyBalance,
		Balanced:       r.Balanced(),
	}
}

// NewAccountResponse renders a custody account.
func NewAccountResponse(a *domain.CustodyAccount, asset domain.Asset) AccountResponse {
	return AccountResponse{
		Address:   a.Address.String(),
		Owner:     a.Owner.String(),
		Asset:     a.Asset.String(),
		Balance:   a.Balance,
		UIBalance: asset.UIAmount(a.Balance).String(),
		Frozen:    a.Frozen,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
