package dispatches

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/internal/repo"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
)

// Repository persists dispatches, their items and proof attachments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockAssignments(ctx context.Context, vendorID uuid.UUID, ids []uuid.UUID) ([]models.Assignment, error)
	DispatchedTotals(ctx context.Context, assignmentIDs []uuid.UUID) (map[uuid.UUID]int, error)
	Create(ctx context.Context, dispatch *models.Dispatch) error
	MarkAssignmentsDispatched(ctx context.Context, ids []uuid.UUID) error
	ReopenAssignment(ctx context.Context, id uuid.UUID, to enums.AssignmentStatus) (bool, error)
	ItemAssignmentIDs(ctx context.Context, dispatchID uuid.UUID) ([]uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Dispatch, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Dispatch, error)
	CreateAttachment(ctx context.Context, attachment *models.DispatchAttachment) error
	UpdateStatusIfIn(ctx context.Context, id uuid.UUID, from []enums.DispatchStatus, to enums.DispatchStatus) (bool, error)
	List(ctx context.Context, filters ListFilters, page pagination.Page) ([]models.Dispatch, int64, error)
}

type repository struct {
	base repo.Base
}

// NewRepository builds a dispatch repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.Bind(tx)}
}

// LockAssignments row-locks the vendor's assignments among ids in id order.
func (r *repository) LockAssignments(ctx context.Context, vendorID uuid.UUID, ids []uuid.UUID) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := repo.ForUpdate(r.base.DB(ctx)).
		Where("vendor_id = ? AND id IN ?", vendorID, ids).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// DispatchedTotals sums quantities already shipped per assignment, ignoring
// failed dispatches.
func (r *repository) DispatchedTotals(ctx context.Context, assignmentIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(assignmentIDs))
	if len(assignmentIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		AssignmentID uuid.UUID `gorm:"column:assignment_id"`
		Total        int       `gorm:"column:total"`
	}
	err := r.base.DB(ctx).
		Table("dispatch_items").
		Select("dispatch_items.assignment_id, COALESCE(SUM(dispatch_items.dispatched_quantity), 0) AS total").
		Joins("JOIN dispatches ON dispatches.id = dispatch_items.dispatch_id").
		Where("dispatch_items.assignment_id IN ? AND dispatches.status <> ?", assignmentIDs, enums.DispatchStatusFailed).
		Group("dispatch_items.assignment_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.AssignmentID] = row.Total
	}
	return out, nil
}

// Create inserts the dispatch together with its items.
func (r *repository) Create(ctx context.Context, dispatch *models.Dispatch) error {
	return r.base.DB(ctx).Create(dispatch).Error
}

func (r *repository) MarkAssignmentsDispatched(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.base.DB(ctx).
		Model(&models.Assignment{}).
		Where("id IN ?", ids).
		Update("status", enums.AssignmentStatusDispatched).Error
}

// ReopenAssignment moves a DISPATCHED assignment back to to. It reports false
// when the row was no longer DISPATCHED.
func (r *repository) ReopenAssignment(ctx context.Context, id uuid.UUID, to enums.AssignmentStatus) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND status = ?", id, enums.AssignmentStatusDispatched).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ItemAssignmentIDs(ctx context.Context, dispatchID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.base.DB(ctx).
		Model(&models.DispatchItem{}).
		Where("dispatch_id = ?", dispatchID).
		Order("assignment_id ASC").
		Pluck("assignment_id", &ids).Error
	return ids, err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Dispatch, error) {
	var row models.Dispatch
	err := r.base.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Dispatch, error) {
	var row models.Dispatch
	err := repo.ForUpdate(r.base.DB(ctx)).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) CreateAttachment(ctx context.Context, attachment *models.DispatchAttachment) error {
	return r.base.DB(ctx).Create(attachment).Error
}

func (r *repository) UpdateStatusIfIn(ctx context.Context, id uuid.UUID, from []enums.DispatchStatus, to enums.DispatchStatus) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Dispatch{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, page pagination.Page) ([]models.Dispatch, int64, error) {
	q := r.base.DB(ctx).Model(&models.Dispatch{})
	if filters.VendorID != nil {
		q = q.Where("vendor_id = ?", *filters.VendorID)
	}
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	q = q.Order("dispatch_date DESC").Order("id DESC")

	var rows []models.Dispatch
	total, err := repo.Paginate(q, page, &rows)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
