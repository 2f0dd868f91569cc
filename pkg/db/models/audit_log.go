package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/vendorflow-backend/pkg/db/types"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// AuditLogEntry is an immutable record of a workflow state change.
type AuditLogEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ActorUserID *uuid.UUID            `gorm:"column:actor_user_id;type:uuid;index:ix_audit_logs_actor" json:"actorUserId,omitempty"`
	Action      enums.AuditAction     `gorm:"column:action;type:text;not null" json:"action"`
	EntityType  enums.AuditEntityType `gorm:"column:entity_type;type:text;not null;index:ix_audit_logs_entity,priority:1" json:"entityType"`
	EntityID    uuid.UUID             `gorm:"column:entity_id;type:uuid;not null;index:ix_audit_logs_entity,priority:2" json:"entityId"`
	Metadata    dbtypes.JSONB         `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	IPAddress   *string               `gorm:"column:ip_address;type:text" json:"ipAddress,omitempty"`
	UserAgent   *string               `gorm:"column:user_agent;type:text" json:"userAgent,omitempty"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (AuditLogEntry) TableName() string {
	return "audit_logs"
}

func (e *AuditLogEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
