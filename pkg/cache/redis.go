package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// scanBatch is the COUNT hint for SCAN and the DEL batch size during invalidation.
const scanBatch = 500

// redisCache stores entries in Redis with SETEX semantics.
type redisCache struct {
	client redis.UniversalClient
	logger *zap.Logger
}

var _ Cache = (*redisCache)(nil)

// NewRedisCache wraps a go-redis client.
func NewRedisCache(client redis.UniversalClient, logger *zap.Logger) Cache {
	return &redisCache{
		client: client,
		logger: logger.Named("cache.redis"),
	}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Invalidate walks the keyspace with SCAN (never KEYS, which blocks the server)
// and deletes matches in batches.
func (c *redisCache) Invalidate(ctx context.Context, pattern string) error {
	var cursor uint64
	deleted := 0

	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", pattern, err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete keys for %s: %w", pattern, err)
			}
			deleted += len(keys)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Debug("Invalidated cache entries",
		zap.String("pattern", pattern),
		zap.Int("deleted", deleted))
	return nil
}
