package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// Assignment hands one order item to one vendor for confirmation.
type Assignment struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID           uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index" json:"orderId"`
	OrderItemID       uuid.UUID              `gorm:"column:order_item_id;type:uuid;not null;uniqueIndex:ux_assignments_item_vendor" json:"orderItemId"`
	VendorID          uuid.UUID              `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex:ux_assignments_item_vendor;index" json:"vendorId"`
	AssignedQuantity  int                    `gorm:"column:assigned_quantity;not null" json:"assignedQuantity"`
	ConfirmedQuantity *int                   `gorm:"column:confirmed_quantity" json:"confirmedQuantity"`
	Status            enums.AssignmentStatus `gorm:"column:status;type:text;not null;index" json:"status"`
	VendorRemarks     *string                `gorm:"column:vendor_remarks;type:text" json:"vendorRemarks,omitempty"`
	InvoiceURL        *string                `gorm:"column:invoice_url;type:text" json:"invoiceUrl,omitempty"`
	AssignedAt        time.Time              `gorm:"column:assigned_at;not null" json:"assignedAt"`
	VendorActionAt    *time.Time             `gorm:"column:vendor_action_at" json:"vendorActionAt,omitempty"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (a *Assignment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	return nil
}
