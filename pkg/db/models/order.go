package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// Order is a purchase order raised by the operations team.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderNumber     string            `gorm:"column:order_number;type:text;not null;uniqueIndex:ux_orders_order_number" json:"orderNumber"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null" json:"status"`
	TotalValue      decimal.Decimal   `gorm:"column:total_value;type:numeric(14,2);not null" json:"totalValue"`
	PrimaryVendorID *uuid.UUID        `gorm:"column:primary_vendor_id;type:uuid" json:"primaryVendorId,omitempty"`
	Notes           *string           `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedBy       uuid.UUID         `gorm:"column:created_by;type:uuid;not null" json:"createdBy"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem is a priced line of an order.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index" json:"orderId"`
	ProductName  string          `gorm:"column:product_name;type:text;not null" json:"productName"`
	SKU          *string         `gorm:"column:sku;type:text" json:"sku,omitempty"`
	Quantity     int             `gorm:"column:quantity;not null" json:"quantity"`
	PricePerUnit decimal.Decimal `gorm:"column:price_per_unit;type:numeric(14,2);not null" json:"pricePerUnit"`
	TotalPrice   decimal.Decimal `gorm:"column:total_price;type:numeric(14,2);not null" json:"totalPrice"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`

	Assignments []Assignment `gorm:"foreignKey:OrderItemID" json:"assignments,omitempty"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
