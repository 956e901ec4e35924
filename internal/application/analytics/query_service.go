package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/erp/analytics/internal/domain/analytics"
	"github.com/erp/analytics/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultTopProductsTake is used when no take is requested
const DefaultTopProductsTake = 10

// QueryTTLs are the cache lifetimes of query results
type QueryTTLs struct {
	Overview    time.Duration
	Trend       time.Duration
	TopProducts time.Duration
}

// Rebuilder runs the aggregation job on demand
type Rebuilder interface {
	Run(ctx context.Context, from, to time.Time) (int, error)
	RunForYesterday(ctx context.Context) (int, error)
}

// QueryService answers analytics queries cache-aside over the aggregate store
type QueryService struct {
	source     analytics.SalesSource
	aggregates analytics.AggregateRepository
	catalog    analytics.ProductCatalogRepository
	cache      analytics.Cache
	job        Rebuilder
	ttls       QueryTTLs
	clock      clockwork.Clock
	logger     *zap.Logger
}

// NewQueryService creates a new QueryService. catalog may be nil.
func NewQueryService(
	source analytics.SalesSource,
	aggregates analytics.AggregateRepository,
	catalog analytics.ProductCatalogRepository,
	cache analytics.Cache,
	job Rebuilder,
	ttls QueryTTLs,
	logger *zap.Logger,
	opts ...Option,
) *QueryService {
	o := applyOptions(opts)
	return &QueryService{
		source:     source,
		aggregates: aggregates,
		catalog:    catalog,
		cache:      cache,
		job:        job,
		ttls:       ttls,
		clock:      o.clock,
		logger:     logger.Named("analytics_query"),
	}
}

// cached reads key from the cache and falls back to load, storing its result.
// Cache failures degrade to a miss.
func cached[T any](ctx context.Context, s *QueryService, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T
	found, err := s.cache.Get(ctx, key, &v)
	if err != nil {
		s.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		return v, nil
	}

	v, err = load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := s.cache.Set(ctx, key, v, ttl); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}

func (s *QueryService) findAggregates(ctx context.Context, r analytics.DateRange) ([]analytics.DailyAggregate, error) {
	aggs, err := s.aggregates.FindRange(ctx, r)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, analytics.NewSourceUnavailableError("aggregate store", err)
	}
	return aggs, nil
}

func sourceError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return analytics.NewSourceUnavailableError("sales source", err)
}

// Overview returns the KPIs of [from, to], optionally scoped to one warehouse
func (s *QueryService) Overview(ctx context.Context, from, to time.Time, warehouseID *uuid.UUID) (*OverviewResponse, error) {
	r, err := analytics.NewDateRange(from, to)
	if err != nil {
		return nil, err
	}
	return s.overview(ctx, r, warehouseID)
}

func (s *QueryService) overview(ctx context.Context, r analytics.DateRange, warehouseID *uuid.UUID) (*OverviewResponse, error) {
	return cached(ctx, s, analytics.OverviewKey(r, warehouseID), s.ttls.Overview, func(ctx context.Context) (*OverviewResponse, error) {
		var (
			totalSales = decimal.Zero
			stats      analytics.OrderStats
			lowStock   int64
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			aggs, err := s.findAggregates(gctx, r)
			if err != nil {
				return err
			}
			for _, a := range aggs {
				totalSales = totalSales.Add(a.SalesFor(warehouseID))
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if stats, err = s.source.OrderStats(gctx, r, warehouseID); err != nil {
				return sourceError(gctx, err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if lowStock, err = s.source.CountLowStock(gctx, warehouseID); err != nil {
				return sourceError(gctx, err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		return &OverviewResponse{
			From:              formatDay(r.From),
			To:                formatDay(r.To),
			WarehouseID:       warehouseID,
			TotalSales:        totalSales,
			TotalOrders:       stats.TotalOrders,
			UniqueCustomers:   stats.UniqueCustomers,
			LowStockCount:     lowStock,
			AverageOrderValue: analytics.AverageOrderValue(totalSales, stats.TotalOrders),
		}, nil
	})
}

// OverviewPreset returns the KPIs of the trailing preset window ending today.
// Unscoped requests are served from the materialized preset summary when
// present, with a fresh low stock count.
func (s *QueryService) OverviewPreset(ctx context.Context, days int, warehouseID *uuid.UUID) (*OverviewResponse, error) {
	r, err := analytics.PresetRange(days, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if warehouseID != nil {
		return s.overview(ctx, r, warehouseID)
	}

	var summary analytics.PresetSummary
	found, err := s.cache.Get(ctx, analytics.PresetKey(days), &summary)
	if err != nil {
		s.logger.Warn("Cache read failed", zap.String("key", analytics.PresetKey(days)), zap.Error(err))
	}
	if !found {
		return s.overview(ctx, r, nil)
	}

	lowStock, err := s.source.CountLowStock(ctx, nil)
	if err != nil {
		return nil, sourceError(ctx, err)
	}
	return &OverviewResponse{
		From:              formatDay(r.From),
		To:                formatDay(r.To),
		TotalSales:        summary.TotalSales,
		TotalOrders:       summary.TotalOrders,
		UniqueCustomers:   summary.UniqueCustomers,
		LowStockCount:     lowStock,
		AverageOrderValue: analytics.AverageOrderValue(summary.TotalSales, summary.TotalOrders),
	}, nil
}

// SalesTrend returns one point per aggregated day of [from, to]
func (s *QueryService) SalesTrend(ctx context.Context, from, to time.Time, warehouseID *uuid.UUID) ([]TrendPointResponse, error) {
	r, err := analytics.NewDateRange(from, to)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, analytics.TrendKey(r, warehouseID), s.ttls.Trend, func(ctx context.Context) ([]TrendPointResponse, error) {
		aggs, err := s.findAggregates(ctx, r)
		if err != nil {
			return nil, err
		}
		return lo.Map(aggs, func(a analytics.DailyAggregate, _ int) TrendPointResponse {
			return TrendPointResponse{Date: formatDay(a.Date), Sales: a.SalesFor(warehouseID)}
		}), nil
	})
}

// SalesByWarehouse returns warehouse revenue over [from, to], highest first
func (s *QueryService) SalesByWarehouse(ctx context.Context, from, to time.Time) ([]WarehouseSalesResponse, error) {
	r, err := analytics.NewDateRange(from, to)
	if err != nil {
		return nil, err
	}
	aggs, err := s.findAggregates(ctx, r)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*analytics.WarehouseSales)
	for _, a := range aggs {
		for _, ws := range a.SalesByWarehouse {
			entry, ok := byID[ws.WarehouseID]
			if !ok {
				entry = &analytics.WarehouseSales{WarehouseID: ws.WarehouseID, Revenue: decimal.Zero}
				byID[ws.WarehouseID] = entry
			}
			entry.Revenue = entry.Revenue.Add(ws.Revenue)
			if ws.WarehouseName != "" {
				entry.WarehouseName = ws.WarehouseName
			}
		}
	}

	sales := lo.Map(lo.Values(byID), func(ws *analytics.WarehouseSales, _ int) analytics.WarehouseSales { return *ws })
	analytics.SortWarehouseSales(sales)
	return lo.Map(sales, func(ws analytics.WarehouseSales, _ int) WarehouseSalesResponse {
		return WarehouseSalesResponse{
			WarehouseID:   ws.WarehouseID,
			WarehouseName: ws.WarehouseName,
			Revenue:       ws.Revenue,
		}
	}), nil
}

// TopProducts returns the best selling products of [from, to] by revenue
func (s *QueryService) TopProducts(ctx context.Context, from, to time.Time, warehouseID *uuid.UUID, take int) ([]TopProductResponse, error) {
	r, err := analytics.NewDateRange(from, to)
	if err != nil {
		return nil, err
	}
	if take <= 0 {
		take = DefaultTopProductsTake
	}

	return cached(ctx, s, analytics.TopProductsKey(r, warehouseID, take), s.ttls.TopProducts, func(ctx context.Context) ([]TopProductResponse, error) {
		aggs, err := s.findAggregates(ctx, r)
		if err != nil {
			return nil, err
		}
		products := lo.FlatMap(aggs, func(a analytics.DailyAggregate, _ int) []analytics.TopProduct {
			return a.TopProductsFor(warehouseID)
		})
		ranked := analytics.RankTopProducts(analytics.MergeTopProducts(products), take)
		s.fillCatalogNames(ctx, ranked)

		return lo.Map(ranked, func(p analytics.TopProduct, i int) TopProductResponse {
			return TopProductResponse{
				Rank:      i + 1,
				ProductID: p.ProductID,
				Name:      p.Name,
				Quantity:  p.Quantity,
				Revenue:   p.Revenue,
			}
		}), nil
	})
}

// fillCatalogNames names products the source left unnamed from the catalog
func (s *QueryService) fillCatalogNames(ctx context.Context, products []analytics.TopProduct) {
	if s.catalog == nil {
		return
	}
	missing := lo.FilterMap(products, func(p analytics.TopProduct, _ int) (uuid.UUID, bool) {
		return p.ProductID, p.Name == ""
	})
	if len(missing) == 0 {
		return
	}

	entries, err := s.catalog.FindByIDs(ctx, missing)
	if err != nil {
		s.logger.Warn("Catalog lookup failed, leaving product names empty", zap.Error(err))
		return
	}
	for i := range products {
		if products[i].Name != "" {
			continue
		}
		if entry, ok := entries[products[i].ProductID]; ok {
			products[i].Name = entry.Name
		}
	}
}

// TriggerRebuild runs the aggregation job for [from, to], or for yesterday
// when neither bound is given
func (s *QueryService) TriggerRebuild(ctx context.Context, from, to *time.Time) (*RebuildResponse, error) {
	var (
		written int
		err     error
	)
	switch {
	case from != nil && to != nil:
		written, err = s.job.Run(ctx, *from, *to)
	case from == nil && to == nil:
		written, err = s.job.RunForYesterday(ctx)
	default:
		return nil, analytics.ErrInvalidTriggerParams
	}
	return &RebuildResponse{Written: written}, err
}

// GetProductCatalog returns the catalog document of a product
func (s *QueryService) GetProductCatalog(ctx context.Context, productID uuid.UUID) (*ProductCatalogResponse, error) {
	if s.catalog == nil {
		return nil, shared.ErrNotFound
	}
	entry, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		return nil, analytics.NewSourceUnavailableError("product catalog", err)
	}
	return &ProductCatalogResponse{
		ProductID:  entry.ProductID,
		Name:       entry.Name,
		Attributes: entry.Attributes,
		UpdatedAt:  entry.UpdatedAt,
	}, nil
}
