package assignments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/internal/repo"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
)

// Repository persists assignment decisions. Every read is scoped to the vendor.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindForVendor(ctx context.Context, id, vendorID uuid.UUID) (*models.Assignment, error)
	CompareAndSwap(ctx context.Context, id, vendorID uuid.UUID, from []enums.AssignmentStatus, updates map[string]any) (bool, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, status *enums.AssignmentStatus, page pagination.Page) ([]models.Assignment, int64, error)
	LineContexts(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]LineContext, error)
	StalePendingByVendor(ctx context.Context, assignedBefore time.Time) ([]PendingSummary, error)
}

type repository struct {
	base repo.Base
}

// NewRepository builds an assignments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.Bind(tx)}
}

func (r *repository) FindForVendor(ctx context.Context, id, vendorID uuid.UUID) (*models.Assignment, error) {
	var row models.Assignment
	err := r.base.DB(ctx).
		Where("id = ? AND vendor_id = ?", id, vendorID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CompareAndSwap applies updates only while the row is still in one of from.
func (r *repository) CompareAndSwap(ctx context.Context, id, vendorID uuid.UUID, from []enums.AssignmentStatus, updates map[string]any) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND vendor_id = ? AND status IN ?", id, vendorID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByVendor(ctx context.Context, vendorID uuid.UUID, status *enums.AssignmentStatus, page pagination.Page) ([]models.Assignment, int64, error) {
	q := r.base.DB(ctx).Model(&models.Assignment{}).Where("vendor_id = ?", vendorID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	q = q.Order("assigned_at DESC").Order("id DESC")

	var rows []models.Assignment
	total, err := repo.Paginate(q, page, &rows)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) LineContexts(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]LineContext, error) {
	out := make(map[uuid.UUID]LineContext, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	var rows []LineContext
	err := r.base.DB(ctx).
		Table("order_items").
		Select("order_items.id AS item_id, orders.id AS order_id, orders.order_number, order_items.product_name, order_items.sku, order_items.price_per_unit").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.id IN ?", itemIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ItemID] = row
	}
	return out, nil
}

// StalePendingByVendor counts assignments still awaiting a decision that were
// assigned before the cutoff, one row per vendor.
func (r *repository) StalePendingByVendor(ctx context.Context, assignedBefore time.Time) ([]PendingSummary, error) {
	var rows []PendingSummary
	err := r.base.DB(ctx).
		Model(&models.Assignment{}).
		Select("vendor_id, COUNT(*) AS pending").
		Where("status = ? AND assigned_at < ?", enums.AssignmentStatusPendingConfirmation, assignedBefore).
		Group("vendor_id").
		Order("vendor_id").
		Scan(&rows).Error
	return rows, err
}
