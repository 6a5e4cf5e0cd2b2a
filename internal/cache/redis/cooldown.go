package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Cooldown implements domain.Cooldown with SET NX and a TTL, so several
// scanner instances sharing one Redis send each alert once per window.
type Cooldown struct {
	rdb    *redis.Client
	prefix string
}

// NewCooldown creates a Cooldown backed by c. Keys are stored as
// "<prefix>:cooldown:<key>".
func NewCooldown(c *Client, prefix string) *Cooldown {
	if prefix == "" {
		prefix = "triarb"
	}
	return &Cooldown{rdb: c.Underlying(), prefix: prefix}
}

func (cd *Cooldown) key(key string) string {
	return cd.prefix + ":cooldown:" + key
}

// Allow claims key for ttl. It returns false while a previous claim on the
// same key is still live.
func (cd *Cooldown) Allow(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := cd.rdb.SetNX(ctx, cd.key(key), uuid.NewString(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: cooldown %s: %w", key, err)
	}
	return ok, nil
}

var _ domain.Cooldown = (*Cooldown)(nil)
