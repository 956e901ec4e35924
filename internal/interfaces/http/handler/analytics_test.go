package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	analyticsapp "github.com/erp/analytics/internal/application/analytics"
	"github.com/erp/analytics/internal/domain/analytics"
	"github.com/erp/analytics/internal/domain/shared"
	"github.com/erp/analytics/internal/infrastructure/cache"
	"github.com/erp/analytics/internal/infrastructure/persistence"
	"github.com/erp/analytics/internal/interfaces/http/dto"
	"github.com/erp/analytics/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	north  = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	south  = uuid.MustParse("00000000-0000-0000-0000-0000000000a2")
	widget = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	gadget = uuid.MustParse("00000000-0000-0000-0000-0000000000b2")

	march1 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now    = time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
)

type stubSource struct {
	fetchErr error
}

func (s *stubSource) FetchDailySales(context.Context, analytics.DateRange) (*analytics.SalesProjection, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return &analytics.SalesProjection{
		DailyTotals: []analytics.DailyTotalRow{
			{Day: march1, TotalSales: decimal.NewFromInt(300), TotalOrders: 2, UniqueCustomers: 1},
		},
		WarehouseRevenue: []analytics.WarehouseRevenueRow{
			{Day: march1, WarehouseID: north, WarehouseName: "North", Revenue: decimal.NewFromInt(200)},
			{Day: march1, WarehouseID: south, WarehouseName: "South", Revenue: decimal.NewFromInt(100)},
		},
		ProductSales: []analytics.ProductSalesRow{
			{Day: march1, WarehouseID: north, ProductID: widget, ProductName: "Widget", Quantity: 2, Revenue: decimal.NewFromInt(100)},
			{Day: march1, WarehouseID: north, ProductID: gadget, ProductName: "Gadget", Quantity: 1, Revenue: decimal.NewFromInt(100)},
			{Day: march1, WarehouseID: south, ProductID: widget, ProductName: "Widget", Quantity: 1, Revenue: decimal.NewFromInt(100)},
		},
	}, nil
}

func (s *stubSource) OrderStats(context.Context, analytics.DateRange, *uuid.UUID) (analytics.OrderStats, error) {
	return analytics.OrderStats{TotalOrders: 2, UniqueCustomers: 1}, nil
}

func (s *stubSource) CountLowStock(context.Context, *uuid.UUID) (int64, error) {
	return 3, nil
}

type stubCatalog map[uuid.UUID]analytics.ProductCatalogEntry

func (c stubCatalog) Upsert(context.Context, analytics.ProductCatalogEntry) error { return nil }

func (c stubCatalog) FindByID(_ context.Context, id uuid.UUID) (*analytics.ProductCatalogEntry, error) {
	e, ok := c[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &e, nil
}

func (c stubCatalog) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]analytics.ProductCatalogEntry, error) {
	out := make(map[uuid.UUID]analytics.ProductCatalogEntry)
	for _, id := range ids {
		if e, ok := c[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

type partialAggregates struct{}

func (partialAggregates) UpsertMany(context.Context, []analytics.DailyAggregate) (int, error) {
	return 1, &analytics.PartialWriteError{Written: 1, Failed: 1, Cause: errors.New("write conflict")}
}

func (partialAggregates) FindRange(context.Context, analytics.DateRange) ([]analytics.DailyAggregate, error) {
	return nil, nil
}

type blockingSource struct{ stubSource }

func (blockingSource) FetchDailySales(ctx context.Context, _ analytics.DateRange) (*analytics.SalesProjection, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newAnalyticsRouter(t *testing.T, source analytics.SalesSource, aggregates analytics.AggregateRepository, opts ...AnalyticsHandlerOption) *gin.Engine {
	t.Helper()
	require.NoError(t, middleware.SetupValidator())

	clock := clockwork.NewFakeClockAt(now)
	log := zap.NewNop()
	memCache := cache.NewMemoryCache(cache.WithMemoryClock(clock))
	t.Cleanup(func() { _ = memCache.Close() })

	presets := analyticsapp.NewPresetMaterializer(aggregates, memCache, 24*time.Hour, log, analyticsapp.WithClock(clock))
	job := analyticsapp.NewAggregationJob(source, aggregates, memCache, presets, log,
		analyticsapp.WithClock(clock), analyticsapp.WithJobTimeout(time.Second))
	catalog := stubCatalog{gadget: {ProductID: gadget, Name: "Gadget", UpdatedAt: march1}}
	service := analyticsapp.NewQueryService(source, aggregates, catalog, memCache, job, analyticsapp.QueryTTLs{
		Overview:    12 * time.Hour,
		Trend:       24 * time.Hour,
		TopProducts: 12 * time.Hour,
	}, log, analyticsapp.WithClock(clock))

	h := NewAnalyticsHandler(service, clock, opts...)
	r := gin.New()
	r.Use(middleware.RequestID())
	group := r.Group("/api/v1/analytics")
	group.GET("/overview", h.Overview)
	group.GET("/sales-trend", h.SalesTrend)
	group.GET("/by-warehouse", h.SalesByWarehouse)
	group.GET("/top-products", h.TopProducts)
	group.GET("/products/:id/catalog", h.ProductCatalog)
	group.POST("/etl/run", h.RunETL)
	return r
}

// seededRouter returns a router whose aggregate store holds 2024-03-01
func seededRouter(t *testing.T) *gin.Engine {
	t.Helper()
	r := newAnalyticsRouter(t, &stubSource{}, persistence.NewMemoryAggregateRepository())
	w := serve(r, http.MethodPost, "/api/v1/analytics/etl/run?from=2024-03-01&to=2024-03-01")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return r
}

func serve(r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
}

func decodeEnvelope[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestAnalyticsHandler_RunETL(t *testing.T) {
	r := newAnalyticsRouter(t, &stubSource{}, persistence.NewMemoryAggregateRepository())

	w := serve(r, http.MethodPost, "/api/v1/analytics/etl/run?from=2024-03-01&to=2024-03-02")

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope[analyticsapp.RebuildResponse](t, w)
	assert.True(t, env.Success)
	assert.Equal(t, 1, env.Data.Written)
}

func TestAnalyticsHandler_RunETL_Yesterday(t *testing.T) {
	r := newAnalyticsRouter(t, &stubSource{}, persistence.NewMemoryAggregateRepository())

	w := serve(r, http.MethodPost, "/api/v1/analytics/etl/run")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeEnvelope[analyticsapp.RebuildResponse](t, w).Success)
}

func TestAnalyticsHandler_RunETL_Errors(t *testing.T) {
	tests := []struct {
		name       string
		source     *stubSource
		aggregates analytics.AggregateRepository
		target     string
		status     int
		code       string
		written    int
	}{
		{
			name:   "only from",
			target: "/api/v1/analytics/etl/run?from=2024-03-01",
			status: http.StatusBadRequest,
			code:   dto.ErrCodeInvalidTriggerParams,
		},
		{
			name:   "reversed range",
			target: "/api/v1/analytics/etl/run?from=2024-03-02&to=2024-03-01",
			status: http.StatusBadRequest,
			code:   dto.ErrCodeInvalidDateRange,
		},
		{
			name:   "malformed day",
			target: "/api/v1/analytics/etl/run?from=2024-03-01&to=tomorrow",
			status: http.StatusBadRequest,
			code:   dto.ErrCodeValidation,
		},
		{
			name:   "source down",
			source: &stubSource{fetchErr: errors.New("connection refused")},
			target: "/api/v1/analytics/etl/run?from=2024-03-01&to=2024-03-01",
			status: http.StatusServiceUnavailable,
			code:   dto.ErrCodeSourceUnavailable,
		},
		{
			name:       "partial write",
			aggregates: partialAggregates{},
			target:     "/api/v1/analytics/etl/run?from=2024-03-01&to=2024-03-01",
			status:     http.StatusServiceUnavailable,
			code:       dto.ErrCodePartialWrite,
			written:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := tt.source
			if source == nil {
				source = &stubSource{}
			}
			aggregates := tt.aggregates
			if aggregates == nil {
				aggregates = persistence.NewMemoryAggregateRepository()
			}
			r := newAnalyticsRouter(t, source, aggregates)

			w := serve(r, http.MethodPost, tt.target)

			assert.Equal(t, tt.status, w.Code)
			env := decodeEnvelope[*analyticsapp.RebuildResponse](t, w)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotEmpty(t, env.Error.RequestID)
			if tt.written > 0 {
				require.NotNil(t, env.Data)
				assert.Equal(t, tt.written, env.Data.Written)
			} else {
				assert.Nil(t, env.Data)
			}
		})
	}
}

func TestAnalyticsHandler_RunETL_Timeout(t *testing.T) {
	r := newAnalyticsRouter(t, blockingSource{}, persistence.NewMemoryAggregateRepository(),
		WithTriggerTimeout(20*time.Millisecond))

	w := serve(r, http.MethodPost, "/api/v1/analytics/etl/run?from=2024-03-01&to=2024-03-01")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, dto.ErrCodeSourceUnavailable, decodeEnvelope[any](t, w).Error.Code)
}

func TestAnalyticsHandler_Overview(t *testing.T) {
	r := seededRouter(t)

	w := serve(r, http.MethodGet, "/api/v1/analytics/overview?from=2024-03-01&to=2024-03-02")

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope[analyticsapp.OverviewResponse](t, w)
	assert.Equal(t, "2024-03-01", env.Data.From)
	assert.Equal(t, "2024-03-02", env.Data.To)
	assert.Equal(t, "300", env.Data.TotalSales.String())
	assert.Equal(t, int64(2), env.Data.TotalOrders)
	assert.Equal(t, int64(1), env.Data.UniqueCustomers)
	assert.Equal(t, int64(3), env.Data.LowStockCount)
	assert.Equal(t, "150", env.Data.AverageOrderValue.String())
	assert.Contains(t, w.Body.String(), `"total_sales":"300"`)
}

func TestAnalyticsHandler_Overview_WarehouseScope(t *testing.T) {
	r := seededRouter(t)

	w := serve(r, http.MethodGet, "/api/v1/analytics/overview?from=2024-03-01&to=2024-03-01&warehouseId="+south.String())

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope[analyticsapp.OverviewResponse](t, w)
	require.NotNil(t, env.Data.WarehouseID)
	assert.Equal(t, south, *env.Data.WarehouseID)
	assert.Equal(t, "100", env.Data.TotalSales.String())
}

func TestAnalyticsHandler_Overview_PresetTakesPrecedence(t *testing.T) {
	r := seededRouter(t)

	w := serve(r, http.MethodGet, "/api/v1/analytics/overview?preset=7&from=2020-01-01&to=2020-01-02")

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope[analyticsapp.OverviewResponse](t, w)
	assert.Equal(t, "2024-02-27", env.Data.From)
	assert.Equal(t, "2024-03-05", env.Data.To)
	assert.Equal(t, "300", env.Data.TotalSales.String())
	assert.Equal(t, int64(2), env.Data.TotalOrders)
}

func TestAnalyticsHandler_QueryValidation(t *testing.T) {
	r := seededRouter(t)

	tests := []struct {
		name   string
		target string
		code   string
	}{
		{"missing range", "/api/v1/analytics/overview", dto.ErrCodeInvalidDateRange},
		{"missing to", "/api/v1/analytics/sales-trend?from=2024-03-01", dto.ErrCodeInvalidDateRange},
		{"reversed range", "/api/v1/analytics/overview?from=2024-03-02&to=2024-03-01", dto.ErrCodeInvalidDateRange},
		{"unknown preset", "/api/v1/analytics/overview?preset=14", dto.ErrCodeInvalidPreset},
		{"unknown preset on trend", "/api/v1/analytics/sales-trend?preset=90", dto.ErrCodeInvalidPreset},
		{"non numeric preset", "/api/v1/analytics/overview?preset=week", dto.ErrCodeValidation},
		{"bad warehouse", "/api/v1/analytics/overview?from=2024-03-01&to=2024-03-01&warehouseId=north", dto.ErrCodeInvalidWarehouseID},
		{"bad day", "/api/v1/analytics/by-warehouse?from=2024-13-01&to=2024-13-02", dto.ErrCodeValidation},
		{"take too large", "/api/v1/analytics/top-products?from=2024-03-01&to=2024-03-01&take=101", dto.ErrCodeValidation},
		{"negative take", "/api/v1/analytics/top-products?preset=30&take=-1", dto.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, tt.target)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			env := decodeEnvelope[any](t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestAnalyticsHandler_SalesTrend(t *testing.T) {
	r := seededRouter(t)

	w := serve(r, http.MethodGet, "/api/v1/analytics/sales-trend?from=2024-03-01&to=2024-03-03&warehouseId="+north.String())

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope[[]analyticsapp.TrendPointResponse](t, w)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "2024-03-01", env.Data[0].Date)
	assert.Equal(t, "200", env.Data[0].Sales.String())
}

func TestAnalyticsHandler_SalesByWarehouse(t *testing.T) {
	r := seededRouter(t)

	w := serve(r, http.MethodGet, "/api/v1/analytics/by-warehouse?preset=30")

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope[[]analyticsapp.WarehouseSalesResponse](t, w)
	require.Len(t, env.Data, 2)
	assert.Equal(t, "North", env.Data[0].WarehouseName)
	assert.Equal(t, "200", env.Data[0].Revenue.String())
	assert.Equal(t, "South", env.Data[1].WarehouseName)
}

func TestAnalyticsHandler_SalesByWarehouse_RejectsWarehouseScope(t *testing.T) {
	r := seededRouter(t)

	w := serve(r, http.MethodGet, "/api/v1/analytics/by-warehouse?preset=30&warehouseId="+north.String())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope[any](t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeInvalidWarehouseID, env.Error.Code)
}

func TestAnalyticsHandler_TopProducts(t *testing.T) {
	r := seededRouter(t)

	w := serve(r, http.MethodGet, "/api/v1/analytics/top-products?from=2024-03-01&to=2024-03-01&take=1")

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope[[]analyticsapp.TopProductResponse](t, w)
	require.Len(t, env.Data, 1)
	assert.Equal(t, widget, env.Data[0].ProductID)
	assert.Equal(t, 1, env.Data[0].Rank)
	assert.Equal(t, "200", env.Data[0].Revenue.String())

	w = serve(r, http.MethodGet, "/api/v1/analytics/top-products?from=2024-03-01&to=2024-03-01")
	assert.Len(t, decodeEnvelope[[]analyticsapp.TopProductResponse](t, w).Data, 2)
}

func TestAnalyticsHandler_ProductCatalog(t *testing.T) {
	r := newAnalyticsRouter(t, &stubSource{}, persistence.NewMemoryAggregateRepository())

	w := serve(r, http.MethodGet, "/api/v1/analytics/products/"+gadget.String()+"/catalog")
	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope[analyticsapp.ProductCatalogResponse](t, w)
	assert.Equal(t, gadget, env.Data.ProductID)
	assert.Equal(t, "Gadget", env.Data.Name)

	w = serve(r, http.MethodGet, "/api/v1/analytics/products/"+widget.String()+"/catalog")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, decodeEnvelope[any](t, w).Error.Code)

	w = serve(r, http.MethodGet, "/api/v1/analytics/products/not-a-uuid/catalog")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, decodeEnvelope[any](t, w).Error.Code)
}
