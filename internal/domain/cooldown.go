package domain

import (
	"context"
	"time"
)

// Cooldown rate-limits repeated alerts for the same key.
type Cooldown interface {
	// Allow claims key for ttl and reports whether the caller may proceed.
	Allow(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
