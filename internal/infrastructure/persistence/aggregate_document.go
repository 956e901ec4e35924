package persistence

import (
	"fmt"
	"time"

	"github.com/erp/analytics/internal/domain/analytics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// aggregateDocument is the stored shape of a DailyAggregate.
// Money is Decimal128 and ids are canonical UUID strings.
type aggregateDocument struct {
	Date                   time.Time                      `bson:"date"`
	TotalSales             primitive.Decimal128           `bson:"totalSales"`
	TotalOrders            int64                          `bson:"totalOrders"`
	UniqueCustomers        int64                          `bson:"uniqueCustomers"`
	SalesByWarehouse       []warehouseSalesDocument       `bson:"salesByWarehouse"`
	TopProducts            []topProductDocument           `bson:"topProducts"`
	TopProductsByWarehouse []warehouseTopProductsDocument `bson:"topProductsByWarehouse"`
	RunID                  time.Time                      `bson:"runId"`
}

type warehouseSalesDocument struct {
	WarehouseID   string               `bson:"warehouseId"`
	WarehouseName string               `bson:"warehouseName"`
	Revenue       primitive.Decimal128 `bson:"revenue"`
}

type topProductDocument struct {
	ProductID string               `bson:"productId"`
	Name      string               `bson:"name"`
	Quantity  int64                `bson:"quantity"`
	Revenue   primitive.Decimal128 `bson:"revenue"`
}

type warehouseTopProductsDocument struct {
	WarehouseID string               `bson:"warehouseId"`
	TopProducts []topProductDocument `bson:"topProducts"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("decimal %s does not fit Decimal128: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored decimal %s: %w", v.String(), err)
	}
	return d, nil
}

func toAggregateDocument(a analytics.DailyAggregate) (aggregateDocument, error) {
	doc := aggregateDocument{
		Date:                   analytics.TruncateDay(a.Date),
		TotalOrders:            a.TotalOrders,
		UniqueCustomers:        a.UniqueCustomers,
		SalesByWarehouse:       make([]warehouseSalesDocument, 0, len(a.SalesByWarehouse)),
		TopProductsByWarehouse: make([]warehouseTopProductsDocument, 0, len(a.TopProductsByWarehouse)),
		RunID:                  a.RunID.UTC(),
	}

	var err error
	if doc.TotalSales, err = toDecimal128(a.TotalSales); err != nil {
		return doc, err
	}
	for _, ws := range a.SalesByWarehouse {
		revenue, err := toDecimal128(ws.Revenue)
		if err != nil {
			return doc, err
		}
		doc.SalesByWarehouse = append(doc.SalesByWarehouse, warehouseSalesDocument{
			WarehouseID:   ws.WarehouseID.String(),
			WarehouseName: ws.WarehouseName,
			Revenue:       revenue,
		})
	}
	if doc.TopProducts, err = toTopProductDocuments(a.TopProducts); err != nil {
		return doc, err
	}
	for _, wt := range a.TopProductsByWarehouse {
		products, err := toTopProductDocuments(wt.TopProducts)
		if err != nil {
			return doc, err
		}
		doc.TopProductsByWarehouse = append(doc.TopProductsByWarehouse, warehouseTopProductsDocument{
			WarehouseID: wt.WarehouseID.String(),
			TopProducts: products,
		})
	}
	return doc, nil
}

func toTopProductDocuments(products []analytics.TopProduct) ([]topProductDocument, error) {
	docs := make([]topProductDocument, 0, len(products))
	for _, p := range products {
		revenue, err := toDecimal128(p.Revenue)
		if err != nil {
			return nil, err
		}
		docs = append(docs, topProductDocument{
			ProductID: p.ProductID.String(),
			Name:      p.Name,
			Quantity:  p.Quantity,
			Revenue:   revenue,
		})
	}
	return docs, nil
}

func (d aggregateDocument) toDomain() (analytics.DailyAggregate, error) {
	a := analytics.DailyAggregate{
		Date:                   analytics.TruncateDay(d.Date),
		TotalOrders:            d.TotalOrders,
		UniqueCustomers:        d.UniqueCustomers,
		SalesByWarehouse:       make([]analytics.WarehouseSales, 0, len(d.SalesByWarehouse)),
		TopProductsByWarehouse: make([]analytics.WarehouseTopProducts, 0, len(d.TopProductsByWarehouse)),
		RunID:                  d.RunID.UTC(),
	}

	var err error
	if a.TotalSales, err = fromDecimal128(d.TotalSales); err != nil {
		return a, err
	}
	for _, ws := range d.SalesByWarehouse {
		id, err := uuid.Parse(ws.WarehouseID)
		if err != nil {
			return a, fmt.Errorf("invalid stored warehouse id %q: %w", ws.WarehouseID, err)
		}
		revenue, err := fromDecimal128(ws.Revenue)
		if err != nil {
			return a, err
		}
		a.SalesByWarehouse = append(a.SalesByWarehouse, analytics.WarehouseSales{
			WarehouseID:   id,
			WarehouseName: ws.WarehouseName,
			Revenue:       revenue,
		})
	}
	if a.TopProducts, err = topProductsFromDocuments(d.TopProducts); err != nil {
		return a, err
	}
	for _, wt := range d.TopProductsByWarehouse {
		id, err := uuid.Parse(wt.WarehouseID)
		if err != nil {
			return a, fmt.Errorf("invalid stored warehouse id %q: %w", wt.WarehouseID, err)
		}
		products, err := topProductsFromDocuments(wt.TopProducts)
		if err != nil {
			return a, err
		}
		a.TopProductsByWarehouse = append(a.TopProductsByWarehouse, analytics.WarehouseTopProducts{
			WarehouseID: id,
			TopProducts: products,
		})
	}
	return a, nil
}

func topProductsFromDocuments(docs []topProductDocument) ([]analytics.TopProduct, error) {
	products := make([]analytics.TopProduct, 0, len(docs))
	for _, d := range docs {
		id, err := uuid.Parse(d.ProductID)
		if err != nil {
			return nil, fmt.Errorf("invalid stored product id %q: %w", d.ProductID, err)
		}
		revenue, err := fromDecimal128(d.Revenue)
		if err != nil {
			return nil, err
		}
		products = append(products, analytics.TopProduct{
			ProductID: id,
			Name:      d.Name,
			Quantity:  d.Quantity,
			Revenue:   revenue,
		})
	}
	return products, nil
}

// derivedFields is the $set part of an upsert: everything except the date key
func (d aggregateDocument) derivedFields() bson.M {
	return bson.M{
		"totalSales":             d.TotalSales,
		"totalOrders":            d.TotalOrders,
		"uniqueCustomers":        d.UniqueCustomers,
		"salesByWarehouse":       d.SalesByWarehouse,
		"topProducts":            d.TopProducts,
		"topProductsByWarehouse": d.TopProductsByWarehouse,
		"runId":                  d.RunID,
	}
}
