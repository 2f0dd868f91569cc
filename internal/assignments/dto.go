package assignments

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// UpdateStatusInput is a vendor's decision on one pending assignment.
type UpdateStatusInput struct {
	AssignmentID      uuid.UUID
	VendorID          uuid.UUID
	Status            enums.AssignmentStatus
	ConfirmedQuantity *int
	Remarks           *string
	ActorUserID       uuid.UUID
}

// AttachInvoiceInput carries an invoice file for a confirmed assignment.
type AttachInvoiceInput struct {
	AssignmentID uuid.UUID
	VendorID     uuid.UUID
	ActorUserID  uuid.UUID
	FileName     string
	Data         []byte
}

// VendorAssignment is an assignment joined with the order line it belongs to.
type VendorAssignment struct {
	models.Assignment
	OrderNumber  string          `json:"orderNumber"`
	ProductName  string          `json:"productName"`
	SKU          *string         `json:"sku,omitempty"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
}

// LineContext is the order line an assignment points at.
type LineContext struct {
	ItemID       uuid.UUID       `gorm:"column:item_id"`
	OrderID      uuid.UUID       `gorm:"column:order_id"`
	OrderNumber  string          `gorm:"column:order_number"`
	ProductName  string          `gorm:"column:product_name"`
	SKU          *string         `gorm:"column:sku"`
	PricePerUnit decimal.Decimal `gorm:"column:price_per_unit"`
}

// PendingSummary counts one vendor's undecided assignments.
type PendingSummary struct {
	VendorID uuid.UUID `gorm:"column:vendor_id"`
	Pending  int64     `gorm:"column:pending"`
}

func toView(a models.Assignment, line LineContext) VendorAssignment {
	return VendorAssignment{
		Assignment:   a,
		OrderNumber:  line.OrderNumber,
		ProductName:  line.ProductName,
		SKU:          line.SKU,
		PricePerUnit: line.PricePerUnit,
	}
}

// decisionAudit is the audit metadata for a vendor decision.
type decisionAudit struct {
	OrderID           uuid.UUID              `json:"orderId"`
	OrderItemID       uuid.UUID              `json:"orderItemId"`
	VendorID          uuid.UUID              `json:"vendorId"`
	PreviousStatus    enums.AssignmentStatus `json:"previousStatus"`
	Status            enums.AssignmentStatus `json:"status"`
	AssignedQuantity  int                    `json:"assignedQuantity"`
	ConfirmedQuantity *int                   `json:"confirmedQuantity"`
	Remarks           *string                `json:"remarks,omitempty"`
	OrderEscalated    bool                   `json:"orderEscalated,omitempty"`
	InvoiceURL        *string                `json:"invoiceUrl,omitempty"`
}
