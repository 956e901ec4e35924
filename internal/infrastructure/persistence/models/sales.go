package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Warehouse is a row of the transactional warehouses table
type Warehouse struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key"`
	Name string    `gorm:"type:varchar(200);not null"`
}

// TableName returns the table name for GORM
func (Warehouse) TableName() string {
	return "warehouses"
}

// Product is a row of the transactional products table
type Product struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key"`
	Name string    `gorm:"type:varchar(200);not null"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// Order is a sales order header
type Order struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	CustomerID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	WarehouseID uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderDate   time.Time       `gorm:"not null;index"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Items       []OrderItem     `gorm:"foreignKey:OrderID"`
}

// TableName returns the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// OrderItem is a sales order line
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity  int64           `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (OrderItem) TableName() string {
	return "order_items"
}

// WarehouseProduct is the stock level of a product in a warehouse.
// A row is low on stock when StockQuantity <= MinQuantity.
type WarehouseProduct struct {
	WarehouseID   uuid.UUID `gorm:"type:uuid;primary_key"`
	ProductID     uuid.UUID `gorm:"type:uuid;primary_key"`
	StockQuantity int64     `gorm:"not null;default:0"`
	MinQuantity   int64     `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (WarehouseProduct) TableName() string {
	return "warehouse_products"
}

// SalesSourceModels lists the models backing the transactional sales source
func SalesSourceModels() []any {
	return []any{&Warehouse{}, &Product{}, &Order{}, &OrderItem{}, &WarehouseProduct{}}
}
