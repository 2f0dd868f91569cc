package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// User mirrors the identity provider's directory entry for notification routing.
type User struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email     string     `gorm:"column:email;type:text;not null;uniqueIndex:ux_users_email" json:"email"`
	FullName  string     `gorm:"column:full_name;type:text;not null" json:"fullName"`
	VendorID  *uuid.UUID `gorm:"column:vendor_id;type:uuid;index" json:"vendorId,omitempty"`
	IsActive  bool       `gorm:"column:is_active;not null" json:"isActive"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	Roles []UserRole `gorm:"foreignKey:UserID" json:"roles,omitempty"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// UserRole grants a role to a user.
type UserRole struct {
	UserID uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey" json:"userId"`
	Role   enums.Role `gorm:"column:role;type:text;primaryKey" json:"role"`
}
