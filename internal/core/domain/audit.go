package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreateVault AuditAction = "CREATE_VAULT"
	AuditActionDeposit     AuditAction = "DEPOSIT"
	AuditActionWithdraw    AuditAction = "WITHDRAW"
	AuditActionOpenAccount AuditAction = "OPEN_ACCOUNT"
	AuditActionFaucet      AuditAction = "FAUCET"
	AuditActionLogin       AuditAction = "LOGIN"
)

// AuditLog records a single audited API action.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Identity     *PublicKey  `json:"identity,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
