package analytics

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DailyTotalRow is one day of order totals from the transactional source
type DailyTotalRow struct {
	Day             time.Time
	TotalSales      decimal.Decimal
	TotalOrders     int64
	UniqueCustomers int64
}

// WarehouseRevenueRow is the revenue of one warehouse on one day
type WarehouseRevenueRow struct {
	Day           time.Time
	WarehouseID   uuid.UUID
	WarehouseName string
	Revenue       decimal.Decimal
}

// ProductSalesRow is the quantity and revenue of one product sold by one
// warehouse on one day. Overall product figures are the sum over warehouses.
type ProductSalesRow struct {
	Day         time.Time
	WarehouseID uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Quantity    int64
	Revenue     decimal.Decimal
}

// SalesProjection holds the three correlated result sets read for a date range
type SalesProjection struct {
	DailyTotals      []DailyTotalRow
	WarehouseRevenue []WarehouseRevenueRow
	ProductSales     []ProductSalesRow
}

// BuildDailyAggregates turns a projection into one aggregate per day that has a
// day-total row. Days without totals are skipped even if breakdown rows exist.
// The output is ordered by date and every list inside it has a deterministic
// order, so identical projections produce identical aggregates.
func BuildDailyAggregates(p *SalesProjection, runID time.Time) []DailyAggregate {
	if p == nil || len(p.DailyTotals) == 0 {
		return nil
	}

	warehousesByDay := make(map[time.Time][]WarehouseRevenueRow)
	for _, row := range p.WarehouseRevenue {
		day := TruncateDay(row.Day)
		warehousesByDay[day] = append(warehousesByDay[day], row)
	}
	productsByDay := make(map[time.Time][]ProductSalesRow)
	for _, row := range p.ProductSales {
		day := TruncateDay(row.Day)
		productsByDay[day] = append(productsByDay[day], row)
	}

	aggs := make([]DailyAggregate, 0, len(p.DailyTotals))
	for _, total := range p.DailyTotals {
		day := TruncateDay(total.Day)
		aggs = append(aggs, DailyAggregate{
			Date:                   day,
			TotalSales:             total.TotalSales,
			TotalOrders:            total.TotalOrders,
			UniqueCustomers:        total.UniqueCustomers,
			SalesByWarehouse:       buildSalesByWarehouse(warehousesByDay[day]),
			TopProducts:            buildTopProducts(productsByDay[day]),
			TopProductsByWarehouse: buildTopProductsByWarehouse(productsByDay[day]),
			RunID:                  runID,
		})
	}

	sort.Slice(aggs, func(i, j int) bool { return aggs[i].Date.Before(aggs[j].Date) })
	return aggs
}

func buildSalesByWarehouse(rows []WarehouseRevenueRow) []WarehouseSales {
	byID := make(map[uuid.UUID]*WarehouseSales)
	order := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ws, ok := byID[row.WarehouseID]
		if !ok {
			ws = &WarehouseSales{WarehouseID: row.WarehouseID, WarehouseName: row.WarehouseName, Revenue: decimal.Zero}
			byID[row.WarehouseID] = ws
			order = append(order, row.WarehouseID)
		}
		ws.Revenue = ws.Revenue.Add(row.Revenue)
	}

	result := make([]WarehouseSales, 0, len(order))
	for _, id := range order {
		result = append(result, *byID[id])
	}
	SortWarehouseSales(result)
	return result
}

func buildTopProducts(rows []ProductSalesRow) []TopProduct {
	return RankTopProducts(mergeProductRows(rows), TopProductsLimit)
}

func buildTopProductsByWarehouse(rows []ProductSalesRow) []WarehouseTopProducts {
	byWarehouse := make(map[uuid.UUID][]ProductSalesRow)
	for _, row := range rows {
		byWarehouse[row.WarehouseID] = append(byWarehouse[row.WarehouseID], row)
	}

	result := make([]WarehouseTopProducts, 0, len(byWarehouse))
	for warehouseID, whRows := range byWarehouse {
		result = append(result, WarehouseTopProducts{
			WarehouseID: warehouseID,
			TopProducts: RankTopProducts(mergeProductRows(whRows), TopProductsLimit),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].WarehouseID.String() < result[j].WarehouseID.String()
	})
	return result
}

func mergeProductRows(rows []ProductSalesRow) []TopProduct {
	products := make([]TopProduct, 0, len(rows))
	for _, row := range rows {
		products = append(products, TopProduct{
			ProductID: row.ProductID,
			Name:      row.ProductName,
			Quantity:  row.Quantity,
			Revenue:   row.Revenue,
		})
	}
	return MergeTopProducts(products)
}

// MergeTopProducts sums quantity and revenue of entries sharing a product id.
// The first non-empty name seen for a product wins.
func MergeTopProducts(products []TopProduct) []TopProduct {
	byID := make(map[uuid.UUID]*TopProduct, len(products))
	order := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		existing, ok := byID[p.ProductID]
		if !ok {
			cp := p
			byID[p.ProductID] = &cp
			order = append(order, p.ProductID)
			continue
		}
		existing.Quantity += p.Quantity
		existing.Revenue = existing.Revenue.Add(p.Revenue)
		if existing.Name == "" {
			existing.Name = p.Name
		}
	}

	merged := make([]TopProduct, 0, len(order))
	for _, id := range order {
		merged = append(merged, *byID[id])
	}
	return merged
}

// RankTopProducts sorts by revenue descending, ties broken by product id
// ascending, and keeps at most limit entries. A limit <= 0 keeps everything.
func RankTopProducts(products []TopProduct, limit int) []TopProduct {
	ranked := make([]TopProduct, len(products))
	copy(ranked, products)
	sort.SliceStable(ranked, func(i, j int) bool {
		if c := ranked[i].Revenue.Cmp(ranked[j].Revenue); c != 0 {
			return c > 0
		}
		return ranked[i].ProductID.String() < ranked[j].ProductID.String()
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// SortWarehouseSales orders by revenue descending, ties broken by warehouse id
func SortWarehouseSales(sales []WarehouseSales) {
	sort.SliceStable(sales, func(i, j int) bool {
		if c := sales[i].Revenue.Cmp(sales[j].Revenue); c != 0 {
			return c > 0
		}
		return sales[i].WarehouseID.String() < sales[j].WarehouseID.String()
	})
}
