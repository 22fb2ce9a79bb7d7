package shared

import (
	"context"
	"time"
)

// DefaultDedupeWindow is how long a handled inbound event key is remembered.
// The order platform stops redelivering well within it.
const DefaultDedupeWindow = 72 * time.Hour

// IdempotencyStore hands out claims on inbound event keys. Delivery is at
// least once, so the first claim on a key wins and later ones are duplicates
// until the claim expires or is released.
type IdempotencyStore interface {
	// Claim takes key for ttl and reports false while another claim is live.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops the claim on key so a failed delivery can be retried
	Release(ctx context.Context, key string) error

	Close() error
}
