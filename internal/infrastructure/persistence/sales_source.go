package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erp/analytics/internal/domain/analytics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormSalesSource implements analytics.SalesSource over the transactional tables
type GormSalesSource struct {
	db *gorm.DB
}

// NewGormSalesSource creates a new GormSalesSource
func NewGormSalesSource(db *gorm.DB) *GormSalesSource {
	return &GormSalesSource{db: db}
}

// dayExpr renders order_date as a YYYY-MM-DD string in the connected dialect.
// The session time zone is expected to be UTC.
func (s *GormSalesSource) dayExpr() string {
	if s.db.Dialector.Name() == "sqlite" {
		return "strftime('%Y-%m-%d', o.order_date)"
	}
	return "TO_CHAR(o.order_date, 'YYYY-MM-DD')"
}

func (s *GormSalesSource) snapshotOptions() *sql.TxOptions {
	if s.db.Dialector.Name() == "postgres" {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

type dailyTotalResult struct {
	Day             string
	TotalSales      decimal.Decimal
	TotalOrders     int64
	UniqueCustomers int64
}

type warehouseRevenueResult struct {
	Day           string
	WarehouseID   uuid.UUID
	WarehouseName string
	Revenue       decimal.Decimal
}

type productSalesResult struct {
	Day         string
	WarehouseID uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Quantity    int64
	Revenue     decimal.Decimal
}

// FetchDailySales reads the three projections of r inside one read-only
// snapshot so that day totals and breakdowns describe the same orders.
func (s *GormSalesSource) FetchDailySales(ctx context.Context, r analytics.DateRange) (*analytics.SalesProjection, error) {
	var (
		totals     []dailyTotalResult
		warehouses []warehouseRevenueResult
		products   []productSalesResult
	)
	day := s.dayExpr()
	from, to := r.From, r.EndExclusive()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Table("orders o").
			Select(day+` AS day,
				COALESCE(SUM(o.total_amount), 0) AS total_sales,
				COUNT(*) AS total_orders,
				COUNT(DISTINCT o.customer_id) AS unique_customers`).
			Where("o.order_date >= ? AND o.order_date < ?", from, to).
			Group(day).
			Order("day ASC").
			Scan(&totals).Error
		if err != nil {
			return fmt.Errorf("failed to query daily totals: %w", err)
		}

		err = tx.Table("orders o").
			Select(day+` AS day,
				o.warehouse_id AS warehouse_id,
				COALESCE(w.name, '') AS warehouse_name,
				COALESCE(SUM(o.total_amount), 0) AS revenue`).
			Joins("LEFT JOIN warehouses w ON w.id = o.warehouse_id").
			Where("o.order_date >= ? AND o.order_date < ?", from, to).
			Group(day + ", o.warehouse_id, w.name").
			Order("day ASC").
			Scan(&warehouses).Error
		if err != nil {
			return fmt.Errorf("failed to query warehouse revenue: %w", err)
		}

		err = tx.Table("order_items oi").
			Select(day+` AS day,
				o.warehouse_id AS warehouse_id,
				oi.product_id AS product_id,
				COALESCE(p.name, '') AS product_name,
				COALESCE(SUM(oi.quantity), 0) AS quantity,
				COALESCE(SUM(oi.quantity * oi.unit_price), 0) AS revenue`).
			Joins("JOIN orders o ON o.id = oi.order_id").
			Joins("LEFT JOIN products p ON p.id = oi.product_id").
			Where("o.order_date >= ? AND o.order_date < ?", from, to).
			Group(day + ", o.warehouse_id, oi.product_id, p.name").
			Order("day ASC").
			Scan(&products).Error
		if err != nil {
			return fmt.Errorf("failed to query product sales: %w", err)
		}
		return nil
	}, s.snapshotOptions())
	if err != nil {
		return nil, err
	}

	return toProjection(totals, warehouses, products)
}

func toProjection(totals []dailyTotalResult, warehouses []warehouseRevenueResult, products []productSalesResult) (*analytics.SalesProjection, error) {
	p := &analytics.SalesProjection{
		DailyTotals:      make([]analytics.DailyTotalRow, 0, len(totals)),
		WarehouseRevenue: make([]analytics.WarehouseRevenueRow, 0, len(warehouses)),
		ProductSales:     make([]analytics.ProductSalesRow, 0, len(products)),
	}
	for _, t := range totals {
		d, err := parseDay(t.Day)
		if err != nil {
			return nil, err
		}
		p.DailyTotals = append(p.DailyTotals, analytics.DailyTotalRow{
			Day:             d,
			TotalSales:      t.TotalSales,
			TotalOrders:     t.TotalOrders,
			UniqueCustomers: t.UniqueCustomers,
		})
	}
	for _, w := range warehouses {
		d, err := parseDay(w.Day)
		if err != nil {
			return nil, err
		}
		p.WarehouseRevenue = append(p.WarehouseRevenue, analytics.WarehouseRevenueRow{
			Day:           d,
			WarehouseID:   w.WarehouseID,
			WarehouseName: w.WarehouseName,
			Revenue:       w.Revenue,
		})
	}
	for _, pr := range products {
		d, err := parseDay(pr.Day)
		if err != nil {
			return nil, err
		}
		p.ProductSales = append(p.ProductSales, analytics.ProductSalesRow{
			Day:         d,
			WarehouseID: pr.WarehouseID,
			ProductID:   pr.ProductID,
			ProductName: pr.ProductName,
			Quantity:    pr.Quantity,
			Revenue:     pr.Revenue,
		})
	}
	return p, nil
}

func parseDay(s string) (time.Time, error) {
	d, err := time.ParseInLocation(analytics.DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unexpected day value %q: %w", s, err)
	}
	return d, nil
}

// OrderStats counts orders and distinct customers of r
func (s *GormSalesSource) OrderStats(ctx context.Context, r analytics.DateRange, warehouseID *uuid.UUID) (analytics.OrderStats, error) {
	var result struct {
		TotalOrders     int64
		UniqueCustomers int64
	}

	query := s.db.WithContext(ctx).Table("orders o").
		Select("COUNT(*) AS total_orders, COUNT(DISTINCT o.customer_id) AS unique_customers").
		Where("o.order_date >= ? AND o.order_date < ?", r.From, r.EndExclusive())
	if warehouseID != nil {
		query = query.Where("o.warehouse_id = ?", *warehouseID)
	}

	if err := query.Scan(&result).Error; err != nil {
		return analytics.OrderStats{}, fmt.Errorf("failed to count orders: %w", err)
	}

	return analytics.OrderStats{
		TotalOrders:     result.TotalOrders,
		UniqueCustomers: result.UniqueCustomers,
	}, nil
}

// CountLowStock counts warehouse stock rows at or below their minimum quantity
func (s *GormSalesSource) CountLowStock(ctx context.Context, warehouseID *uuid.UUID) (int64, error) {
	var count int64

	query := s.db.WithContext(ctx).Table("warehouse_products").
		Where("stock_quantity <= min_quantity")
	if warehouseID != nil {
		query = query.Where("warehouse_id = ?", *warehouseID)
	}

	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count low stock products: %w", err)
	}
	return count, nil
}

var _ analytics.SalesSource = (*GormSalesSource)(nil)
