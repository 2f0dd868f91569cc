package dispatches

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// ItemInput ships part of one assignment.
type ItemInput struct {
	AssignmentID       uuid.UUID `json:"assignmentId"`
	DispatchedQuantity int       `json:"dispatchedQuantity"`
}

// CreateDispatchInput describes a shipment handed to a logistics partner.
type CreateDispatchInput struct {
	VendorID              uuid.UUID
	Items                 []ItemInput
	AWBNumber             string
	LogisticsPartner      string
	DispatchDate          time.Time
	EstimatedDeliveryDate *time.Time
	Remarks               *string
	ActorUserID           uuid.UUID
}

// UploadProofInput attaches a proof-of-dispatch file. A nil VendorID means a
// staff upload that is not scoped to the owning vendor.
type UploadProofInput struct {
	DispatchID  uuid.UUID
	VendorID    *uuid.UUID
	ActorUserID uuid.UUID
	FileName    string
	Data        []byte
}

// UpdateStatusInput moves a dispatch forward.
type UpdateStatusInput struct {
	DispatchID  uuid.UUID
	VendorID    *uuid.UUID
	Status      enums.DispatchStatus
	ActorUserID uuid.UUID
}

// ListFilters narrows ListDispatches.
type ListFilters struct {
	VendorID *uuid.UUID
	Status   *enums.DispatchStatus
}

type createdAudit struct {
	VendorID         uuid.UUID            `json:"vendorId"`
	AWBNumber        string               `json:"awbNumber"`
	LogisticsPartner string               `json:"logisticsPartner"`
	Items            []ItemInput          `json:"items"`
	Completed        []uuid.UUID          `json:"completedAssignments,omitempty"`
	DispatchDate     time.Time            `json:"dispatchDate"`
	Status           enums.DispatchStatus `json:"status"`
}

type statusAudit struct {
	PreviousStatus enums.DispatchStatus `json:"previousStatus"`
	Status         enums.DispatchStatus `json:"status"`
	Reason         string               `json:"reason,omitempty"`
}

type reopenAudit struct {
	DispatchID         uuid.UUID              `json:"dispatchId"`
	PreviousStatus     enums.AssignmentStatus `json:"previousStatus"`
	Status             enums.AssignmentStatus `json:"status"`
	DispatchedQuantity int                    `json:"dispatchedQuantity"`
	ConfirmedQuantity  int                    `json:"confirmedQuantity"`
}

type proofAudit struct {
	AttachmentID uuid.UUID `json:"attachmentId"`
	FileName     string    `json:"fileName"`
	FileURL      string    `json:"fileUrl"`
	ContentType  string    `json:"contentType"`
	SizeBytes    int64     `json:"sizeBytes"`
}
