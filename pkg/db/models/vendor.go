package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// Vendor is a supplier that can be assigned order items.
type Vendor struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CompanyName  string             `gorm:"column:company_name;type:text;not null" json:"companyName"`
	Status       enums.VendorStatus `gorm:"column:status;type:text;not null" json:"status"`
	IsVerified   bool               `gorm:"column:is_verified;not null" json:"isVerified"`
	ContactEmail *string            `gorm:"column:contact_email;type:text" json:"contactEmail,omitempty"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (v *Vendor) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
