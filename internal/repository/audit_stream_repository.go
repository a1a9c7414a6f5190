package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/smartpass-api/internal/models"
)

// AuditStreamRepository mirrors audit entries onto a capped Redis stream for
// downstream consumers.
type AuditStreamRepository struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewAuditStreamRepository constructs the publisher. A nil client disables publishing.
func NewAuditStreamRepository(client *redis.Client, stream string, maxLen int64) *AuditStreamRepository {
	return &AuditStreamRepository{client: client, stream: stream, maxLen: maxLen}
}

// Enabled reports whether a Redis client is configured.
func (r *AuditStreamRepository) Enabled() bool {
	return r != nil && r.client != nil && r.stream != ""
}

// Publish appends entry to the stream as a single JSON field.
func (r *AuditStreamRepository) Publish(ctx context.Context, entry models.AuditEntry) error {
	if !r.Enabled() {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry %s: %w", entry.ID, err)
	}
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"id":       entry.ID,
			"category": entry.Category,
			"entry":    payload,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}
