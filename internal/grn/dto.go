package grn

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// ItemInput is the warehouse count for one dispatched line.
type ItemInput struct {
	DispatchItemID   uuid.UUID `json:"dispatchItemId"`
	ReceivedQuantity int       `json:"receivedQuantity"`
	DamageReported   bool      `json:"damageReported"`
}

// RecordInput verifies a delivered dispatch.
type RecordInput struct {
	DispatchID      uuid.UUID
	Items           []ItemInput
	OperatorRemarks *string
	ActorUserID     uuid.UUID
}

// ResolveTicketInput closes a discrepancy ticket.
type ResolveTicketInput struct {
	TicketID    uuid.UUID
	Resolution  string
	ActorUserID uuid.UUID
}

// DispatchLine is a dispatch item joined with the order line it ships.
type DispatchLine struct {
	DispatchItemID     uuid.UUID `gorm:"column:dispatch_item_id"`
	AssignmentID       uuid.UUID `gorm:"column:assignment_id"`
	OrderID            uuid.UUID `gorm:"column:order_id"`
	DispatchedQuantity int       `gorm:"column:dispatched_quantity"`
	ProductName        string    `gorm:"column:product_name"`
	SKU                *string   `gorm:"column:sku"`
}

type grnAudit struct {
	GRNNumber    string          `json:"grnNumber"`
	DispatchID   uuid.UUID       `json:"dispatchId"`
	Status       enums.GRNStatus `json:"status"`
	ItemCount    int             `json:"itemCount"`
	Mismatched   int             `json:"mismatchedItems"`
	OrderIDs     []uuid.UUID     `json:"orderIds"`
	TicketNumber *string         `json:"ticketNumber,omitempty"`
}

type ticketAudit struct {
	TicketNumber string             `json:"ticketNumber"`
	GRNID        uuid.UUID          `json:"grnId"`
	Status       enums.TicketStatus `json:"status"`
	Resolution   *string            `json:"resolution,omitempty"`
}
