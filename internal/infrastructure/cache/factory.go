package cache

import (
	"context"
	"fmt"

	"github.com/erp/analytics/internal/domain/analytics"
	"github.com/erp/analytics/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Store is an analytics cache with a lifecycle
type Store interface {
	analytics.Cache
	Ping(ctx context.Context) error
	Close() error
}

// Factory creates the analytics cache based on configuration
type Factory struct {
	redisConfig           config.RedisConfig
	cacheConfig           config.CacheConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory cache
// when Redis is unavailable
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory. Fallback defaults to cacheCfg.FallbackToMemory.
func NewFactory(redisCfg config.RedisConfig, cacheCfg config.CacheConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           redisCfg,
		cacheConfig:           cacheCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: cacheCfg.FallbackToMemory,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisCache creates a Redis-backed cache
func (f *Factory) CreateRedisCache() (*RedisCache, error) {
	c, err := NewRedisCache(RedisConfig{
		Host:      f.redisConfig.Host,
		Port:      f.redisConfig.Port,
		Password:  f.redisConfig.Password,
		DB:        f.redisConfig.DB,
		KeyPrefix: f.cacheConfig.KeyPrefix,
		ScanCount: f.cacheConfig.ScanCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis cache: %w", err)
	}
	return c, nil
}

// CreateInMemoryCache creates an in-memory cache.
// WARNING: entries are per process, so invalidation after a rebuild only
// reaches the instance that ran the job.
func (f *Factory) CreateInMemoryCache() *MemoryCache {
	return NewMemoryCache()
}

// CreateStore creates the configured cache. With the redis backend it falls
// back to memory when Redis is unreachable and fallback is allowed.
func (f *Factory) CreateStore() (Store, error) {
	if f.cacheConfig.Backend == "memory" {
		f.logger.Info("using in-memory analytics cache")
		return f.CreateInMemoryCache(), nil
	}

	store, err := f.CreateRedisCache()
	if err == nil {
		f.logger.Info("using Redis analytics cache", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for analytics cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory analytics cache. "+
		"Cache invalidation will not reach other instances.",
		zap.Error(err),
	)
	return f.CreateInMemoryCache(), nil
}
