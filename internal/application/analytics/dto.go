package analytics

import (
	"time"

	"github.com/erp/analytics/internal/domain/analytics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OverviewResponse is the headline KPI set of a date range
type OverviewResponse struct {
	From              string          `json:"from"`
	To                string          `json:"to"`
	WarehouseID       *uuid.UUID      `json:"warehouse_id,omitempty"`
	TotalSales        decimal.Decimal `json:"total_sales"`
	TotalOrders       int64           `json:"total_orders"`
	UniqueCustomers   int64           `json:"unique_customers"`
	LowStockCount     int64           `json:"low_stock_count"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

// TrendPointResponse is the sales of one day
type TrendPointResponse struct {
	Date  string          `json:"date"`
	Sales decimal.Decimal `json:"sales"`
}

// WarehouseSalesResponse is the revenue of one warehouse over a range
type WarehouseSalesResponse struct {
	WarehouseID   uuid.UUID       `json:"warehouse_id"`
	WarehouseName string          `json:"warehouse_name"`
	Revenue       decimal.Decimal `json:"revenue"`
}

// TopProductResponse is one ranked product
type TopProductResponse struct {
	Rank      int             `json:"rank"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// RebuildResponse reports the outcome of a manual aggregation run
type RebuildResponse struct {
	Written int `json:"written"`
}

// ProductCatalogResponse is a product catalog document
type ProductCatalogResponse struct {
	ProductID  uuid.UUID            `json:"product_id"`
	Name       string               `json:"name"`
	Attributes analytics.Attributes `json:"attributes"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

func formatDay(t time.Time) string {
	return t.UTC().Format(analytics.DateLayout)
}
