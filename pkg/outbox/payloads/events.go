package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// OrderEvent carries the order snapshot for create, update, delete and vendor assignment.
type OrderEvent struct {
	OrderID          uuid.UUID         `json:"order_id"`
	OrderNumber      string            `json:"order_number"`
	Status           enums.OrderStatus `json:"status"`
	TotalValue       decimal.Decimal   `json:"total_value"`
	ItemCount        int               `json:"item_count"`
	PrimaryVendorID  *uuid.UUID        `json:"primary_vendor_id,omitempty"`
	PreviousVendorID *uuid.UUID        `json:"previous_vendor_id,omitempty"`
}

// OrderStatusChangedEvent is emitted whenever the order status engine moves an order.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Status         enums.OrderStatus `json:"status"`
	Reason         string            `json:"reason,omitempty"`
}

// AssignmentStatusChangedEvent reports a vendor decision or invoice step.
type AssignmentStatusChangedEvent struct {
	AssignmentID      uuid.UUID              `json:"assignment_id"`
	OrderID           uuid.UUID              `json:"order_id"`
	OrderItemID       uuid.UUID              `json:"order_item_id"`
	VendorID          uuid.UUID              `json:"vendor_id"`
	PreviousStatus    enums.AssignmentStatus `json:"previous_status"`
	Status            enums.AssignmentStatus `json:"status"`
	AssignedQuantity  int                    `json:"assigned_quantity"`
	ConfirmedQuantity *int                   `json:"confirmed_quantity,omitempty"`
}

// DispatchEvent describes a dispatch at creation or after a status move.
type DispatchEvent struct {
	DispatchID       uuid.UUID            `json:"dispatch_id"`
	VendorID         uuid.UUID            `json:"vendor_id"`
	AWBNumber        string               `json:"awb_number"`
	LogisticsPartner string               `json:"logistics_partner"`
	PreviousStatus   enums.DispatchStatus `json:"previous_status,omitempty"`
	Status           enums.DispatchStatus `json:"status"`
	AssignmentIDs    []uuid.UUID          `json:"assignment_ids,omitempty"`
	DispatchDate     time.Time            `json:"dispatch_date"`
}

// GRNRecordedEvent summarizes a goods receipt verification.
type GRNRecordedEvent struct {
	GRNID        uuid.UUID       `json:"grn_id"`
	GRNNumber    string          `json:"grn_number"`
	DispatchID   uuid.UUID       `json:"dispatch_id"`
	Status       enums.GRNStatus `json:"status"`
	TicketID     *uuid.UUID      `json:"ticket_id,omitempty"`
	TicketNumber *string         `json:"ticket_number,omitempty"`
	OrderIDs     []uuid.UUID     `json:"order_ids"`
}
