package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/afterword/backend/internal/logging"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "identity:email:"

// RedisCache keeps positive resolutions in Redis. Registration is one-way, so
// a cached hit cannot turn into a wrong "unregistered" answer.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates a cache whose entries expire after ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, email string) (string, bool) {
	id, err := c.client.Get(ctx, cacheKeyPrefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		logging.FromContext(ctx).Warn("identity cache get failed", slog.Any("error", err))
		return "", false
	}
	return id, id != ""
}

func (c *RedisCache) Set(ctx context.Context, email, accountID string) {
	if err := c.client.Set(ctx, cacheKeyPrefix+email, accountID, c.ttl).Err(); err != nil {
		logging.FromContext(ctx).Warn("identity cache set failed", slog.Any("error", err))
	}
}
