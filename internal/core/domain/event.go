package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind distinguishes journal entries.
type EventKind string

const (
	EventKindDeposit  EventKind = "DEPOSIT"
	EventKindWithdraw EventKind = "WITHDRAW"
)

// DepositEvent is emitted after a deposit commits.
type DepositEvent struct {
	Investor      PublicKey `json:"investor"`
	Amount        uint64    `json:"amount"`
	TotalInvested uint64    `json:"total_invested"`
}

// WithdrawEvent is emitted after a withdrawal commits.
type WithdrawEvent struct {
	Investor         PublicKey `json:"investor"`
	Amount           uint64    `json:"amount"`
	RemainingBalance uint64    `json:"remaining_balance"`
}

// VaultEvent is an append-only journal row. Balance holds the investor's
// position after the operation: total invested for deposits, remaining
// balance for withdrawals.
type VaultEvent struct {
	ID          uuid.UUID `json:"id"`
	Sequence    int64     `json:"sequence"`
	Vault       PublicKey `json:"vault"`
	Kind        EventKind `json:"kind"`
	Investor    PublicKey `json:"investor"`
	Amount      uint64    `json:"amount"`
	Balance     uint64    `json:"balance"`
	ReferenceID string    `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewDepositEvent builds the journal row for a committed deposit.
func NewDepositEvent(vault PublicKey, e DepositEvent, referenceID string, now time.Time) *VaultEvent {
	return &VaultEvent{
		ID:          uuid.New(),
		Vault:       vault,
		Kind:        EventKindDeposit,
		Investor:    e.Investor,
		Amount:      e.Amount,
		Balance:     e.TotalInvested,
		ReferenceID: referenceID,
		CreatedAt:   now,
	}
}

// NewWithdrawEvent builds the journal row for a committed withdrawal.
func NewWithdrawEvent(vault PublicKey, e WithdrawEvent, referenceID string, now time.Time) *VaultEvent {
	return &VaultEvent{
		ID:          uuid.New(),
		Vault:       vault,
		Kind:        EventKindWithdraw,
		Investor:    e.Investor,
		Amount:      e.Amount,
		Balance:     e.RemainingBalance,
		ReferenceID: referenceID,
		CreatedAt:   now,
	}
}

// Deposit returns the typed view of a deposit row.
func (e *VaultEvent) Deposit() (DepositEvent, bool) {
	if e.Kind != EventKindDeposit {
		return DepositEvent{}, false
	}
	return DepositEvent{Investor: e.Investor, Amount: e.Amount, TotalInvested: e.Balance}, true
}

// Withdraw returns the typed view of a withdrawal row.
func (e *VaultEvent) Withdraw() (WithdrawEvent, bool) {
	if e.Kind != EventKindWithdraw {
		return WithdrawEvent{}, false
	}
	return WithdrawEvent{Investor: e.Investor, Amount: e.Amount, RemainingBalance: e.Balance}, true
}

// DepositReceipt is returned to the depositor.
type DepositReceipt struct {
	Vault       PublicKey    `json:"vault"`
	Event       DepositEvent `json:"event"`
	VaultTotal  uint64       `json:"vault_total"`
	EventID     uuid.UUID    `json:"event_id"`
	Sequence    int64        `json:"sequence"`
	ReferenceID string       `json:"reference_id,omitempty"`
	ProcessedAt time.Time    `json:"processed_at"`
}

// WithdrawReceipt is returned to the withdrawing investor.
type WithdrawReceipt struct {
	Vault       PublicKey     `json:"vault"`
	Event       WithdrawEvent `json:"event"`
	VaultTotal  uint64        `json:"vault_total"`
	EventID     uuid.UUID     `json:"event_id"`
	Sequence    int64         `json:"sequence"`
	ReferenceID string        `json:"reference_id,omitempty"`
	ProcessedAt time.Time     `json:"processed_at"`
}
