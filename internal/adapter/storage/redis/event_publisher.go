package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"custody-vault/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// EventPublisher appends committed vault events to a Redis stream so
// indexers can follow custody activity without polling Postgres.
type EventPublisher struct {
	client goredis.Cmdable
	stream string
	maxLen int64
}

// NewEventPublisher creates a publisher writing to stream, trimmed to roughly
// maxLen entries. maxLen <= 0 disables trimming.
func NewEventPublisher(client goredis.Cmdable, stream string, maxLen int64) *EventPublisher {
	return &EventPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish XADDs evt. The journal sequence is carried as a field; the stream
// assigns its own entry id.
func (p *EventPublisher) Publish(ctx context.Context, evt *domain.VaultEvent) error {
	args := &goredis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"id":           evt.ID.String(),
			"sequence":     strconv.FormatInt(evt.Sequence, 10),
			"vault":        evt.Vault.String(),
			"kind":         string(evt.Kind),
			"investor":     evt.Investor.String(),
			"amount":       strconv.FormatUint(evt.Amount, 10),
			"balance":      strconv.FormatUint(evt.Balance, 10),
			"reference_id": evt.ReferenceID,
			"created_at":   evt.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", p.stream, err)
	}
	return nil
}
