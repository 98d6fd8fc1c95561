package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog stores the receipt of a committed custody operation so a
// replay with the same reference returns it instead of moving funds twice.
type IdempotencyLog struct {
	Key          string    `json:"key"`
	EventID      uuid.UUID `json:"event_id"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// BuildIdempotencyKey scopes a client reference to vault, investor and operation.
// Format: "<vault>:<investor>:<kind>:<reference_id>".
func BuildIdempotencyKey(vault, investor PublicKey, kind EventKind, referenceID string) string {
	return vault.String() + ":" + investor.String() + ":" + string(kind) + ":" + referenceID
}
