package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/vendorflow-backend/pkg/db/types"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to users.
type Notification struct {
	ID        uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index" json:"userId"`
	Type      enums.NotificationType     `gorm:"column:type;type:text;not null" json:"type"`
	Priority  enums.NotificationPriority `gorm:"column:priority;type:text;not null" json:"priority"`
	Title     string                     `gorm:"column:title;type:text;not null" json:"title"`
	Message   string                     `gorm:"column:message;type:text;not null" json:"message"`
	Link      *string                    `gorm:"column:link;type:text" json:"link,omitempty"`
	Metadata  dbtypes.JSONB              `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	ReadAt    *time.Time                 `gorm:"column:read_at" json:"readAt,omitempty"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
