// Package analytics holds the sales analytics read models: the per-day
// materialized aggregate, rolling preset summaries and the contracts of the
// stores they flow through.
package analytics

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TopProductsLimit bounds the top-product lists stored on a DailyAggregate
const TopProductsLimit = 10

// WarehouseSales is the revenue a single warehouse contributed
type WarehouseSales struct {
	WarehouseID   uuid.UUID       `json:"warehouse_id"`
	WarehouseName string          `json:"warehouse_name"`
	Revenue       decimal.Decimal `json:"revenue"`
}

// TopProduct is a product ranked by revenue
type TopProduct struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// WarehouseTopProducts is the top-product list of a single warehouse
type WarehouseTopProducts struct {
	WarehouseID uuid.UUID    `json:"warehouse_id"`
	TopProducts []TopProduct `json:"top_products"`
}

// DailyAggregate is the materialized sales record of one calendar day (UTC).
// Date is the natural key: there is exactly one record per day and every
// write replaces the derived fields wholesale.
type DailyAggregate struct {
	Date                   time.Time              `json:"date"`
	TotalSales             decimal.Decimal        `json:"total_sales"`
	TotalOrders            int64                  `json:"total_orders"`
	UniqueCustomers        int64                  `json:"unique_customers"`
	SalesByWarehouse       []WarehouseSales       `json:"sales_by_warehouse"`
	TopProducts            []TopProduct           `json:"top_products"`
	TopProductsByWarehouse []WarehouseTopProducts `json:"top_products_by_warehouse"`
	RunID                  time.Time              `json:"run_id"`
}

// WarehouseRevenue returns the revenue of the given warehouse on this day,
// zero when the warehouse had no sales.
func (a DailyAggregate) WarehouseRevenue(warehouseID uuid.UUID) decimal.Decimal {
	for _, ws := range a.SalesByWarehouse {
		if ws.WarehouseID == warehouseID {
			return ws.Revenue
		}
	}
	return decimal.Zero
}

// SalesFor returns the day total, or the warehouse revenue when scoped
func (a DailyAggregate) SalesFor(warehouseID *uuid.UUID) decimal.Decimal {
	if warehouseID == nil {
		return a.TotalSales
	}
	return a.WarehouseRevenue(*warehouseID)
}

// TopProductsFor returns the overall top list, or the warehouse's list when scoped
func (a DailyAggregate) TopProductsFor(warehouseID *uuid.UUID) []TopProduct {
	if warehouseID == nil {
		return a.TopProducts
	}
	for _, wt := range a.TopProductsByWarehouse {
		if wt.WarehouseID == *warehouseID {
			return wt.TopProducts
		}
	}
	return nil
}

// PresetSummary is the rolling total of a fixed preset window.
// It lives only in the cache and can always be rebuilt from DailyAggregate records.
type PresetSummary struct {
	WindowDays      int             `json:"window_days"`
	TotalSales      decimal.Decimal `json:"total_sales"`
	TotalOrders     int64           `json:"total_orders"`
	UniqueCustomers int64           `json:"unique_customers"`
	ComputedAt      time.Time       `json:"computed_at"`
}

// SummarizeWindow sums the given aggregates into a PresetSummary
func SummarizeWindow(windowDays int, aggs []DailyAggregate, computedAt time.Time) PresetSummary {
	summary := PresetSummary{
		WindowDays: windowDays,
		TotalSales: decimal.Zero,
		ComputedAt: computedAt,
	}
	for _, a := range aggs {
		summary.TotalSales = summary.TotalSales.Add(a.TotalSales)
		summary.TotalOrders += a.TotalOrders
		summary.UniqueCustomers += a.UniqueCustomers
	}
	return summary
}

// AverageOrderValue divides sales by orders, returning zero when there are no orders
func AverageOrderValue(totalSales decimal.Decimal, totalOrders int64) decimal.Decimal {
	if totalOrders == 0 {
		return decimal.Zero
	}
	return totalSales.Div(decimal.NewFromInt(totalOrders))
}
