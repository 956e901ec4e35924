package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/analytics/internal/domain/analytics"
	"github.com/erp/analytics/internal/domain/shared"
	"github.com/erp/analytics/internal/infrastructure/cache"
	"github.com/erp/analytics/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var (
	north  = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	south  = uuid.MustParse("00000000-0000-0000-0000-0000000000a2")
	widget = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	gadget = uuid.MustParse("00000000-0000-0000-0000-0000000000b2")

	march1 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now    = time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}

// march1Projection is two orders of one customer on 2024-03-01: 200 from
// North and 100 from South.
func march1Projection() *analytics.SalesProjection {
	return &analytics.SalesProjection{
		DailyTotals: []analytics.DailyTotalRow{
			{Day: march1, TotalSales: dec("300"), TotalOrders: 2, UniqueCustomers: 1},
		},
		WarehouseRevenue: []analytics.WarehouseRevenueRow{
			{Day: march1, WarehouseID: north, WarehouseName: "North", Revenue: dec("200")},
			{Day: march1, WarehouseID: south, WarehouseName: "South", Revenue: dec("100")},
		},
		ProductSales: []analytics.ProductSalesRow{
			{Day: march1, WarehouseID: north, ProductID: widget, ProductName: "Widget", Quantity: 2, Revenue: dec("100")},
			{Day: march1, WarehouseID: north, ProductID: gadget, Quantity: 1, Revenue: dec("100")},
			{Day: march1, WarehouseID: south, ProductID: widget, ProductName: "Widget", Quantity: 1, Revenue: dec("100")},
		},
	}
}

type fakeSource struct {
	mu             sync.Mutex
	projection     *analytics.SalesProjection
	stats          analytics.OrderStats
	warehouseStats map[uuid.UUID]analytics.OrderStats
	lowStock       int64
	fetchErr       error
	statsErr       error
	fetchCalls     int
	statsCalls     int
	lastFetchRange analytics.DateRange
}

func (s *fakeSource) FetchDailySales(_ context.Context, r analytics.DateRange) (*analytics.SalesProjection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls++
	s.lastFetchRange = r
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if s.projection == nil {
		return &analytics.SalesProjection{}, nil
	}
	return s.projection, nil
}

func (s *fakeSource) OrderStats(_ context.Context, _ analytics.DateRange, warehouseID *uuid.UUID) (analytics.OrderStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsCalls++
	if s.statsErr != nil {
		return analytics.OrderStats{}, s.statsErr
	}
	if warehouseID != nil {
		return s.warehouseStats[*warehouseID], nil
	}
	return s.stats, nil
}

func (s *fakeSource) CountLowStock(context.Context, *uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lowStock, nil
}

func (s *fakeSource) set(fn func(s *fakeSource)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

type failingAggregates struct {
	written int
	err     error
	findErr error
}

func (f failingAggregates) UpsertMany(context.Context, []analytics.DailyAggregate) (int, error) {
	return f.written, f.err
}

func (f failingAggregates) FindRange(context.Context, analytics.DateRange) ([]analytics.DailyAggregate, error) {
	return nil, f.findErr
}

type fakeCatalog struct {
	entries map[uuid.UUID]analytics.ProductCatalogEntry
}

func (c fakeCatalog) Upsert(context.Context, analytics.ProductCatalogEntry) error { return nil }

func (c fakeCatalog) FindByID(_ context.Context, id uuid.UUID) (*analytics.ProductCatalogEntry, error) {
	e, ok := c.entries[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &e, nil
}

func (c fakeCatalog) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]analytics.ProductCatalogEntry, error) {
	out := make(map[uuid.UUID]analytics.ProductCatalogEntry)
	for _, id := range ids {
		if e, ok := c.entries[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

type testEnv struct {
	clock      *clockwork.FakeClock
	source     *fakeSource
	aggregates *persistence.MemoryAggregateRepository
	cache      *cache.MemoryCache
	presets    *PresetMaterializer
	job        *AggregationJob
	query      *QueryService
	logs       *observer.ObservedLogs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)

	env := &testEnv{
		clock:      clockwork.NewFakeClockAt(now),
		source:     &fakeSource{projection: march1Projection(), stats: analytics.OrderStats{TotalOrders: 2, UniqueCustomers: 1}, lowStock: 3},
		aggregates: persistence.NewMemoryAggregateRepository(),
		logs:       logs,
	}
	env.cache = cache.NewMemoryCache(cache.WithMemoryClock(env.clock))
	t.Cleanup(func() { _ = env.cache.Close() })

	env.presets = NewPresetMaterializer(env.aggregates, env.cache, 24*time.Hour, log, WithClock(env.clock))
	env.job = NewAggregationJob(env.source, env.aggregates, env.cache, env.presets, log, WithClock(env.clock))
	env.query = NewQueryService(env.source, env.aggregates, fakeCatalog{entries: map[uuid.UUID]analytics.ProductCatalogEntry{
		gadget: {ProductID: gadget, Name: "Gadget"},
	}}, env.cache, env.job, QueryTTLs{
		Overview:    12 * time.Hour,
		Trend:       24 * time.Hour,
		TopProducts: 12 * time.Hour,
	}, log, WithClock(env.clock))
	return env
}

func ptr[T any](v T) *T { return &v }
