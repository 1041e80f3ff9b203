// internal/pkg/cache/blacklist.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BlacklistCache is the redis fast path in front of the jwt_blacklist table.
// A hit is authoritative (deny); a miss or a redis failure means nothing and
// the caller still consults the store. Redis here only shaves a round trip
// off the common case, it is never the source of truth.
type BlacklistCache struct {
	client *redis.Client
}

func NewBlacklistCache(client *redis.Client) *BlacklistCache {
	return &BlacklistCache{client: client}
}

func (c *BlacklistCache) key(jti string) string {
	return fmt.Sprintf("blacklist:%s", jti)
}

// Contains reports a cached denial. The error is returned so the caller can
// log it, but a redis outage is not an allow and not a deny by itself.
func (c *BlacklistCache) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist cache: %w", err)
	}
	return n > 0, nil
}

// Add caches a denial until the underlying token would expire anyway.
func (c *BlacklistCache) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.key(jti), "1", ttl).Err()
}
