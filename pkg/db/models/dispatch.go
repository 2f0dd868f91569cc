package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// Dispatch is a shipment handed by a vendor to a logistics partner.
type Dispatch struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	VendorID              uuid.UUID            `gorm:"column:vendor_id;type:uuid;not null;index" json:"vendorId"`
	AWBNumber             string               `gorm:"column:awb_number;type:text;not null" json:"awbNumber"`
	LogisticsPartner      string               `gorm:"column:logistics_partner;type:text;not null" json:"logisticsPartner"`
	DispatchDate          time.Time            `gorm:"column:dispatch_date;not null" json:"dispatchDate"`
	EstimatedDeliveryDate *time.Time           `gorm:"column:estimated_delivery_date" json:"estimatedDeliveryDate,omitempty"`
	Remarks               *string              `gorm:"column:remarks;type:text" json:"remarks,omitempty"`
	Status                enums.DispatchStatus `gorm:"column:status;type:text;not null" json:"status"`
	CreatedBy             uuid.UUID            `gorm:"column:created_by;type:uuid;not null" json:"createdBy"`
	CreatedAt             time.Time            `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt             time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	Items       []DispatchItem       `gorm:"foreignKey:DispatchID" json:"items,omitempty"`
	Attachments []DispatchAttachment `gorm:"foreignKey:DispatchID" json:"attachments,omitempty"`
}

func (d *Dispatch) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// DispatchItem records how much of an assignment travelled in a dispatch.
type DispatchItem struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DispatchID         uuid.UUID `gorm:"column:dispatch_id;type:uuid;not null;index" json:"dispatchId"`
	AssignmentID       uuid.UUID `gorm:"column:assignment_id;type:uuid;not null;index" json:"assignmentId"`
	DispatchedQuantity int       `gorm:"column:dispatched_quantity;not null" json:"dispatchedQuantity"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (i *DispatchItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// DispatchAttachment is a proof-of-dispatch file kept in object storage.
type DispatchAttachment struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DispatchID  uuid.UUID `gorm:"column:dispatch_id;type:uuid;not null;index" json:"dispatchId"`
	FileURL     string    `gorm:"column:file_url;type:text;not null" json:"fileUrl"`
	FileName    string    `gorm:"column:file_name;type:text;not null" json:"fileName"`
	ContentType string    `gorm:"column:content_type;type:text;not null" json:"contentType"`
	SizeBytes   int64     `gorm:"column:size_bytes;not null" json:"sizeBytes"`
	UploadedBy  uuid.UUID `gorm:"column:uploaded_by;type:uuid;not null" json:"uploadedBy"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (a *DispatchAttachment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
