package cache

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/logging"
)

// Fetch returns the cached value for key, or runs compute and stores its result under policy.TTL.
//
// The cache is fail-open: backend errors and undecodable entries are logged and
// treated as misses, and a failed store still returns the computed value.
// Errors from compute are returned unchanged and never cached.
func Fetch[T any](ctx context.Context, c Cache, logger *zap.Logger, policy Policy, key string, compute func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return compute(ctx)
	}

	raw, hit, err := c.Get(ctx, key)
	switch {
	case err != nil:
		logger.Warn("Cache read failed, computing directly",
			zap.String("family", policy.Family),
			zap.String("error", logging.SanitizeError(err)))
	case hit:
		var cached T
		decodeErr := json.Unmarshal(raw, &cached)
		if decodeErr == nil {
			return cached, nil
		}
		logger.Warn("Discarding undecodable cache entry",
			zap.String("family", policy.Family),
			zap.String("key", key),
			zap.Error(decodeErr))
	}

	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		logger.Warn("Failed to encode result for cache",
			zap.String("family", policy.Family),
			zap.Error(err))
		return value, nil
	}

	if err := c.Set(ctx, key, encoded, policy.TTL); err != nil {
		logger.Warn("Cache write failed",
			zap.String("family", policy.Family),
			zap.String("error", logging.SanitizeError(err)))
	}

	return value, nil
}

// InvalidateDashboards sweeps every KPI and dashboard family.
// Writers call it after a successful change to a case, promise or activity.
// Failures are logged and swallowed; stale entries then expire by TTL.
func InvalidateDashboards(ctx context.Context, c Cache, logger *zap.Logger) {
	if c == nil {
		return
	}
	for _, pattern := range InvalidationPatterns {
		if err := c.Invalidate(ctx, pattern); err != nil {
			logger.Warn("Cache invalidation failed",
				zap.String("pattern", pattern),
				zap.String("error", logging.SanitizeError(err)))
		}
	}
}
