package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderStats are order counts over a date range
type OrderStats struct {
	TotalOrders     int64
	UniqueCustomers int64
}

// SalesSource is the transactional source of truth
type SalesSource interface {
	// FetchDailySales reads the day totals, day x warehouse revenue and
	// day x warehouse x product figures of the range as one consistent read.
	FetchDailySales(ctx context.Context, r DateRange) (*SalesProjection, error)
	// OrderStats counts orders and distinct customers, optionally for one warehouse
	OrderStats(ctx context.Context, r DateRange, warehouseID *uuid.UUID) (OrderStats, error)
	// CountLowStock counts stock rows at or below their reorder threshold
	CountLowStock(ctx context.Context, warehouseID *uuid.UUID) (int64, error)
}

// AggregateRepository stores one DailyAggregate per calendar day
type AggregateRepository interface {
	// UpsertMany writes each aggregate keyed by date only, replacing derived
	// fields of an existing record. On a partial failure it returns the number
	// written together with a *PartialWriteError.
	UpsertMany(ctx context.Context, aggs []DailyAggregate) (int, error)
	// FindRange returns the aggregates inside r ordered by date ascending
	FindRange(ctx context.Context, r DateRange) ([]DailyAggregate, error)
}

// Cache is a key/value store with TTL and prefix invalidation.
// Values are serialized by the implementation.
type Cache interface {
	// Get decodes the value under key into dest and reports whether it was found
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// DeleteByPrefix removes every key starting with prefix and returns how many were removed
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// ProductCatalogRepository stores product catalog documents
type ProductCatalogRepository interface {
	Upsert(ctx context.Context, entry ProductCatalogEntry) error
	FindByID(ctx context.Context, productID uuid.UUID) (*ProductCatalogEntry, error)
	FindByIDs(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]ProductCatalogEntry, error)
}
