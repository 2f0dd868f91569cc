package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// GoodsReceiptNote captures the physical verification of one dispatch.
type GoodsReceiptNote struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GRNNumber       string          `gorm:"column:grn_number;type:text;not null;uniqueIndex:ux_grns_number" json:"grnNumber"`
	DispatchID      uuid.UUID       `gorm:"column:dispatch_id;type:uuid;not null;uniqueIndex:ux_grns_dispatch" json:"dispatchId"`
	Status          enums.GRNStatus `gorm:"column:status;type:text;not null" json:"status"`
	OperatorRemarks *string         `gorm:"column:operator_remarks;type:text" json:"operatorRemarks,omitempty"`
	ReceivedBy      uuid.UUID       `gorm:"column:received_by;type:uuid;not null" json:"receivedBy"`
	ReceivedAt      time.Time       `gorm:"column:received_at;not null" json:"receivedAt"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`

	Items  []GRNItem `gorm:"foreignKey:GRNID" json:"items,omitempty"`
	Ticket *Ticket   `gorm:"foreignKey:GRNID" json:"ticket,omitempty"`
}

func (GoodsReceiptNote) TableName() string {
	return "goods_receipt_notes"
}

func (g *GoodsReceiptNote) BeforeCreate(*gorm.DB) error {
	ensureID(&g.ID)
	return nil
}

// GRNItem is the verification outcome for one dispatched line.
type GRNItem struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GRNID               uuid.UUID           `gorm:"column:grn_id;type:uuid;not null;index" json:"grnId"`
	DispatchItemID      uuid.UUID           `gorm:"column:dispatch_item_id;type:uuid;not null" json:"dispatchItemId"`
	DispatchedQuantity  int                 `gorm:"column:dispatched_quantity;not null" json:"dispatchedQuantity"`
	ReceivedQuantity    int                 `gorm:"column:received_quantity;not null" json:"receivedQuantity"`
	DiscrepancyQuantity int                 `gorm:"column:discrepancy_quantity;not null" json:"discrepancyQuantity"`
	DamageReported      bool                `gorm:"column:damage_reported;not null" json:"damageReported"`
	Status              enums.GRNItemStatus `gorm:"column:status;type:text;not null" json:"status"`
}

func (GRNItem) TableName() string {
	return "grn_items"
}

func (i *GRNItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Ticket escalates a receipt discrepancy for follow-up with the vendor.
type Ticket struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TicketNumber string             `gorm:"column:ticket_number;type:text;not null;uniqueIndex:ux_tickets_number" json:"ticketNumber"`
	GRNID        uuid.UUID          `gorm:"column:grn_id;type:uuid;not null;uniqueIndex:ux_tickets_grn" json:"grnId"`
	Description  string             `gorm:"column:description;type:text;not null" json:"description"`
	Status       enums.TicketStatus `gorm:"column:status;type:text;not null" json:"status"`
	Resolution   *string            `gorm:"column:resolution;type:text" json:"resolution,omitempty"`
	ResolvedBy   *uuid.UUID         `gorm:"column:resolved_by;type:uuid" json:"resolvedBy,omitempty"`
	ResolvedAt   *time.Time         `gorm:"column:resolved_at" json:"resolvedAt,omitempty"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (t *Ticket) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
