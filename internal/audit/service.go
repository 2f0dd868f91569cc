package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/vendorflow-backend/pkg/db/types"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
	"github.com/angelmondragon/vendorflow-backend/pkg/requestmeta"
)

// Recorder is the write surface other services depend on.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.AuditLogEntry, error)
}

// Service appends and reads the audit trail.
type Service interface {
	Recorder
	ListByEntity(ctx context.Context, entityType enums.AuditEntityType, entityID uuid.UUID) ([]models.AuditLogEntry, error)
	ListByActor(ctx context.Context, actorID uuid.UUID, page pagination.Page) (pagination.PageResult[models.AuditLogEntry], error)
}

// Entry is one audited state change. Metadata is marshalled to JSON as-is.
type Entry struct {
	ActorUserID *uuid.UUID
	Action      enums.AuditAction
	EntityType  enums.AuditEntityType
	EntityID    uuid.UUID
	Metadata    any
}

type service struct {
	repo Repository
}

// NewService wires an audit service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

// Record appends entry inside tx so it commits or rolls back with the change it describes.
func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.AuditLogEntry, error) {
	if tx == nil {
		return nil, fmt.Errorf("audit entries must be written inside a transaction")
	}
	if !entry.Action.IsValid() {
		return nil, fmt.Errorf("invalid audit action %q", entry.Action)
	}
	if !entry.EntityType.IsValid() {
		return nil, fmt.Errorf("invalid audit entity type %q", entry.EntityType)
	}
	if entry.EntityID == uuid.Nil {
		return nil, fmt.Errorf("audit entity id is required")
	}

	metadata, err := dbtypes.NewJSONB(entry.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode audit metadata: %w", err)
	}

	meta := requestmeta.From(ctx)
	row := &models.AuditLogEntry{
		ActorUserID: entry.ActorUserID,
		Action:      entry.Action,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		Metadata:    metadata,
		IPAddress:   optional(meta.IPAddress),
		UserAgent:   optional(meta.UserAgent),
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	return row, nil
}

func (s *service) ListByEntity(ctx context.Context, entityType enums.AuditEntityType, entityID uuid.UUID) ([]models.AuditLogEntry, error) {
	if !entityType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid entity type")
	}
	if entityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity id required")
	}
	entries, err := s.repo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit entries")
	}
	return entries, nil
}

func (s *service) ListByActor(ctx context.Context, actorID uuid.UUID, page pagination.Page) (pagination.PageResult[models.AuditLogEntry], error) {
	if actorID == uuid.Nil {
		return pagination.PageResult[models.AuditLogEntry]{}, pkgerrors.New(pkgerrors.CodeValidation, "actor user id required")
	}
	entries, total, err := s.repo.ListByActor(ctx, actorID, page)
	if err != nil {
		return pagination.PageResult[models.AuditLogEntry]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit entries")
	}
	return pagination.NewPageResult(entries, total, page), nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
