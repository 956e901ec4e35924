package cache

import (
	"context"
	"time"

	"github.com/erp/analytics/internal/domain/analytics"
	"go.uber.org/zap"
)

// CacheObserver receives cache outcomes, typically for metrics
type CacheObserver interface {
	CacheHit(ctx context.Context, key string)
	CacheMiss(ctx context.Context, key string)
	CacheError(ctx context.Context, op string)
}

// FailOpenCache wraps a cache so that cache failures never fail a request.
// A failed Get is reported as a miss, a failed Set or DeleteByPrefix is
// logged at warn level and swallowed.
type FailOpenCache struct {
	inner    analytics.Cache
	logger   *zap.Logger
	observer CacheObserver
}

// NewFailOpenCache wraps inner. observer may be nil.
func NewFailOpenCache(inner analytics.Cache, logger *zap.Logger, observer CacheObserver) *FailOpenCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FailOpenCache{inner: inner, logger: logger, observer: observer}
}

// Get implements analytics.Cache
func (c *FailOpenCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	found, err := c.inner.Get(ctx, key, dest)
	if err != nil {
		c.logger.Warn("cache get failed, treating as miss", zap.String("key", key), zap.Error(err))
		c.reportError(ctx, "get")
		c.reportMiss(ctx, key)
		return false, nil
	}
	if found {
		if c.observer != nil {
			c.observer.CacheHit(ctx, key)
		}
	} else {
		c.reportMiss(ctx, key)
	}
	return found, nil
}

// Set implements analytics.Cache
func (c *FailOpenCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := c.inner.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		c.reportError(ctx, "set")
	}
	return nil
}

// DeleteByPrefix implements analytics.Cache
func (c *FailOpenCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	n, err := c.inner.DeleteByPrefix(ctx, prefix)
	if err != nil {
		c.logger.Warn("cache invalidation failed", zap.String("prefix", prefix), zap.Int64("deleted", n), zap.Error(err))
		c.reportError(ctx, "delete_prefix")
	}
	return n, nil
}

func (c *FailOpenCache) reportMiss(ctx context.Context, key string) {
	if c.observer != nil {
		c.observer.CacheMiss(ctx, key)
	}
}

func (c *FailOpenCache) reportError(ctx context.Context, op string) {
	if c.observer != nil {
		c.observer.CacheError(ctx, op)
	}
}

var _ analytics.Cache = (*FailOpenCache)(nil)
