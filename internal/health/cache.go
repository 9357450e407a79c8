package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores computed breakdowns per tenant.
type Cache interface {
	Get(ctx context.Context, tenantID int64) (Breakdown, bool, error)
	Set(ctx context.Context, tenantID int64, b Breakdown, ttl time.Duration) error
}

type redisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache returns a Redis-backed Cache, or nil when client is nil.
func NewRedisCache(client *redis.Client, prefix string) Cache {
	if client == nil {
		return nil
	}
	if prefix == "" {
		prefix = "support:health"
	}
	return &redisCache{client: client, prefix: prefix}
}

func (c *redisCache) key(tenantID int64) string {
	return fmt.Sprintf("%s:%d", c.prefix, tenantID)
}

func (c *redisCache) Get(ctx context.Context, tenantID int64) (Breakdown, bool, error) {
	raw, err := c.client.Get(ctx, c.key(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Breakdown{}, false, nil
	}
	if err != nil {
		return Breakdown{}, false, err
	}
	var b Breakdown
	if err := json.Unmarshal(raw, &b); err != nil {
		return Breakdown{}, false, err
	}
	return b, true, nil
}

func (c *redisCache) Set(ctx context.Context, tenantID int64, b Breakdown, ttl time.Duration) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(tenantID), raw, ttl).Err()
}
