// Package integration runs the analytics pipeline against real PostgreSQL,
// MongoDB and Redis instances started with testcontainers.
package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/erp/analytics/internal/infrastructure/cache"
	"github.com/erp/analytics/internal/infrastructure/config"
	"github.com/erp/analytics/internal/infrastructure/persistence"
	"github.com/erp/analytics/internal/infrastructure/persistence/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Stores holds the three backends of the pipeline
type Stores struct {
	DB    *gorm.DB
	Mongo *persistence.MongoStore
	Redis *redis.Client
	Cache *cache.RedisCache
}

func terminateOnCleanup(t *testing.T, container testcontainers.Container) {
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})
}

// NewStores starts one container per backend. The containers are terminated
// when the test finishes.
func NewStores(t *testing.T) *Stores {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := newRedis(t)
	return &Stores{
		DB:    newPostgres(t),
		Mongo: newMongo(t),
		Redis: client,
		Cache: cache.NewRedisCacheWithClient(client, "", 0),
	}
}

func newPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("analytics_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	terminateOnCleanup(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(5)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.SalesSourceModels()...), "Failed to create sales tables")
	return db
}

func newMongo(t *testing.T) *persistence.MongoStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7")
	require.NoError(t, err, "Failed to start MongoDB container")
	terminateOnCleanup(t, container)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	store, err := persistence.NewMongoStore(ctx, config.MongoConfig{
		URI:                    uri,
		Database:               "analytics_test",
		AggregatesCollection:   "daily_aggregates",
		CatalogCollection:      "product_catalog",
		MaxPoolSize:            5,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 10 * time.Second,
	})
	require.NoError(t, err, "Failed to connect to MongoDB")
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "Failed to start Redis container")
	terminateOnCleanup(t, container)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(ctx).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}
