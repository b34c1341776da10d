package shared

import (
	"context"
	"time"
)

// IdempotencyStore deduplicates webhook deliveries. Providers redeliver
// events at-least-once, so processing claims an event ID first and
// releases the claim if the work cannot be applied.
type IdempotencyStore interface {
	// MarkProcessed claims an event ID for ttl. It reports true when this
	// call made the claim and false when the event was seen before.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether a live claim exists for the event ID.
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Release drops a claim so a redelivery of the same event can be
	// processed. Called when work fails after the claim was taken.
	Release(ctx context.Context, eventID string) error

	Close() error
}

// IdempotencyConfig controls how long claims are held.
type IdempotencyConfig struct {
	// TTL bounds how long an event ID stays claimed. Providers stop
	// redelivering well within 24 hours.
	TTL time.Duration
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: 24 * time.Hour}
}
