package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/internal/repo"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
)

// Repository manages persistence for audit entries. It has no update or delete path.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.AuditLogEntry) error
	ListByEntity(ctx context.Context, entityType enums.AuditEntityType, entityID uuid.UUID) ([]models.AuditLogEntry, error)
	ListByActor(ctx context.Context, actorID uuid.UUID, page pagination.Page) ([]models.AuditLogEntry, int64, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	return r.base.DB(ctx).Create(entry).Error
}

func (r *repository) ListByEntity(ctx context.Context, entityType enums.AuditEntityType, entityID uuid.UUID) ([]models.AuditLogEntry, error) {
	var entries []models.AuditLogEntry
	if err := r.base.DB(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByActor(ctx context.Context, actorID uuid.UUID, page pagination.Page) ([]models.AuditLogEntry, int64, error) {
	var entries []models.AuditLogEntry
	q := r.base.DB(ctx).
		Model(&models.AuditLogEntry{}).
		Where("actor_user_id = ?", actorID).
		Order("created_at DESC")
	total, err := repo.Paginate(q, page, &entries)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
