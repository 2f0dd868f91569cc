package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
)

// ItemInput describes one order line as submitted by operations.
type ItemInput struct {
	ProductName  string          `json:"productName" validate:"required"`
	SKU          *string         `json:"sku,omitempty"`
	Quantity     int             `json:"quantity" validate:"required,gt=0"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
}

// CreateOrderInput carries everything CreateOrder needs.
type CreateOrderInput struct {
	OrderNumber string
	Items       []ItemInput
	VendorID    *uuid.UUID
	Notes       *string
	ActorUserID uuid.UUID
}

// UpdateOrderInput replaces an unlocked order's lines and vendor.
type UpdateOrderInput struct {
	OrderID     uuid.UUID
	Items       []ItemInput
	VendorID    *uuid.UUID
	Notes       *string
	ActorUserID uuid.UUID
}

// AssignVendorInput hands every line of an order to a new vendor.
type AssignVendorInput struct {
	OrderID     uuid.UUID
	VendorID    uuid.UUID
	ActorUserID uuid.UUID
}

// ListFilters narrows ListOrders.
type ListFilters struct {
	Status      *enums.OrderStatus
	VendorID    *uuid.UUID
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type pricedItem struct {
	ProductName  string
	SKU          *string
	Quantity     int
	PricePerUnit decimal.Decimal
	TotalPrice   decimal.Decimal
}

// priceItems validates lines and computes per-line and order totals, rounded to cents.
func priceItems(items []ItemInput) ([]pricedItem, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	priced := make([]pricedItem, 0, len(items))
	total := decimal.Zero
	for i, item := range items {
		name := strings.TrimSpace(item.ProductName)
		if name == "" {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "product name is required").
				WithDetails(map[string]any{"item": i})
		}
		if item.Quantity <= 0 {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").
				WithDetails(map[string]any{"item": i})
		}
		if !item.PricePerUnit.IsPositive() {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "price per unit must be greater than zero").
				WithDetails(map[string]any{"item": i})
		}
		price := item.PricePerUnit.Round(2)
		line := price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		total = total.Add(line)
		priced = append(priced, pricedItem{
			ProductName:  name,
			SKU:          normalizeSKU(item.SKU),
			Quantity:     item.Quantity,
			PricePerUnit: price,
			TotalPrice:   line,
		})
	}
	return priced, total.Round(2), nil
}

func normalizeSKU(sku *string) *string {
	if sku == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*sku)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// orderSnapshot is the audit metadata shape for order mutations.
type orderSnapshot struct {
	OrderNumber     string            `json:"orderNumber"`
	Status          enums.OrderStatus `json:"status"`
	TotalValue      string            `json:"totalValue"`
	PrimaryVendorID *uuid.UUID        `json:"primaryVendorId,omitempty"`
	Items           []itemSnapshot    `json:"items"`
}

type itemSnapshot struct {
	ProductName  string  `json:"productName"`
	SKU          *string `json:"sku,omitempty"`
	Quantity     int     `json:"quantity"`
	PricePerUnit string  `json:"pricePerUnit"`
	TotalPrice   string  `json:"totalPrice"`
}
