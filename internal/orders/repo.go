package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vendorflow-backend/internal/repo"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
)

type repository struct {
	base repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.Bind(tx)}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.base.DB(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.base.DB(ctx).Omit(clause.Associations).Create(&items).Error
}

func (r *repository) CreateAssignments(ctx context.Context, assignments []models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.base.DB(ctx).Create(&assignments).Error
}

func (r *repository) ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	err := r.base.DB(ctx).
		Model(&models.Order{}).
		Where("order_number = ?", orderNumber).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.base.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Items.Assignments").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := repo.ForUpdate(r.base.DB(ctx)).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.base.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) CountConfirmedAssignments(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.base.DB(ctx).
		Model(&models.Assignment{}).
		Where("order_id = ? AND confirmed_quantity IS NOT NULL", orderID).
		Count(&count).Error
	return count, err
}

func (r *repository) DeleteAssignments(ctx context.Context, orderID uuid.UUID) error {
	return r.base.DB(ctx).Where("order_id = ?", orderID).Delete(&models.Assignment{}).Error
}

func (r *repository) DeleteItemsAndAssignments(ctx context.Context, orderID uuid.UUID) error {
	if err := r.DeleteAssignments(ctx, orderID); err != nil {
		return err
	}
	return r.base.DB(ctx).Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error
}

func (r *repository) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	if err := r.DeleteItemsAndAssignments(ctx, orderID); err != nil {
		return err
	}
	res := r.base.DB(ctx).Where("id = ?", orderID).Delete(&models.Order{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

// UpdateStatusIfIn moves the order to `to` only while its status is one of `from`.
func (r *repository) UpdateStatusIfIn(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, page pagination.Page) ([]models.Order, int64, error) {
	q := r.base.DB(ctx).Model(&models.Order{})
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.VendorID != nil {
		q = q.Where(
			"primary_vendor_id = ? OR EXISTS (SELECT 1 FROM assignments a WHERE a.order_id = orders.id AND a.vendor_id = ?)",
			*filters.VendorID, *filters.VendorID,
		)
	}
	if term := strings.TrimSpace(filters.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(order_number) LIKE ? OR LOWER(COALESCE(notes, '')) LIKE ?", like, like)
	}
	if filters.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *filters.CreatedFrom)
	}
	if filters.CreatedTo != nil {
		q = q.Where("created_at <= ?", *filters.CreatedTo)
	}
	q = q.Order("created_at DESC").Order("id DESC")

	var rows []models.Order
	total, err := repo.Paginate(q, page, &rows)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) FulfillmentCounts(ctx context.Context, orderID uuid.UUID) (FulfillmentCounts, error) {
	var counts FulfillmentCounts
	err := r.base.DB(ctx).
		Model(&models.Assignment{}).
		Where("order_id = ? AND status NOT IN ?", orderID, []enums.AssignmentStatus{
			enums.AssignmentStatusVendorDeclined,
			enums.AssignmentStatusDispatched,
		}).
		Count(&counts.OpenAssignments).Error
	if err != nil {
		return counts, err
	}

	err = r.base.DB(ctx).
		Model(&models.Dispatch{}).
		Where("dispatches.status <> ?", enums.DispatchStatusFailed).
		Where("EXISTS (SELECT 1 FROM dispatch_items di JOIN assignments a ON a.id = di.assignment_id WHERE di.dispatch_id = dispatches.id AND a.order_id = ?)", orderID).
		Where("NOT EXISTS (SELECT 1 FROM goods_receipt_notes g WHERE g.dispatch_id = dispatches.id)").
		Count(&counts.UnreceivedDispatches).Error
	return counts, err
}
