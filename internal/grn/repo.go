package grn

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/internal/repo"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
)

// Repository persists goods receipt notes and discrepancy tickets.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ExistsForDispatch(ctx context.Context, dispatchID uuid.UUID) (bool, error)
	DispatchLines(ctx context.Context, dispatchID uuid.UUID) ([]DispatchLine, error)
	Create(ctx context.Context, note *models.GoodsReceiptNote) error
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.GoodsReceiptNote, error)
	FindByDispatch(ctx context.Context, dispatchID uuid.UUID) (*models.GoodsReceiptNote, error)
	FindTicketForUpdate(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	ResolveTicket(ctx context.Context, ticket *models.Ticket) (bool, error)
	ListTickets(ctx context.Context, status *enums.TicketStatus, page pagination.Page) ([]models.Ticket, int64, error)
}

type repository struct {
	base repo.Base
}

// NewRepository builds a GRN repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.Bind(tx)}
}

func (r *repository) ExistsForDispatch(ctx context.Context, dispatchID uuid.UUID) (bool, error) {
	var count int64
	err := r.base.DB(ctx).
		Model(&models.GoodsReceiptNote{}).
		Where("dispatch_id = ?", dispatchID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) DispatchLines(ctx context.Context, dispatchID uuid.UUID) ([]DispatchLine, error) {
	var rows []DispatchLine
	err := r.base.DB(ctx).
		Table("dispatch_items").
		Select("dispatch_items.id AS dispatch_item_id, dispatch_items.assignment_id, assignments.order_id, dispatch_items.dispatched_quantity, order_items.product_name, order_items.sku").
		Joins("JOIN assignments ON assignments.id = dispatch_items.assignment_id").
		Joins("JOIN order_items ON order_items.id = assignments.order_item_id").
		Where("dispatch_items.dispatch_id = ?", dispatchID).
		Order("dispatch_items.created_at ASC, dispatch_items.id ASC").
		Scan(&rows).Error
	return rows, err
}

// Create inserts the note with its items.
func (r *repository) Create(ctx context.Context, note *models.GoodsReceiptNote) error {
	return r.base.DB(ctx).Omit("Ticket").Create(note).Error
}

func (r *repository) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	return r.base.DB(ctx).Create(ticket).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.GoodsReceiptNote, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByDispatch(ctx context.Context, dispatchID uuid.UUID) (*models.GoodsReceiptNote, error) {
	return r.findOne(ctx, "dispatch_id = ?", dispatchID)
}

func (r *repository) findOne(ctx context.Context, cond string, arg any) (*models.GoodsReceiptNote, error) {
	var row models.GoodsReceiptNote
	err := r.base.DB(ctx).
		Preload("Items").
		Preload("Ticket").
		Where(cond, arg).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindTicketForUpdate(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var row models.Ticket
	err := repo.ForUpdate(r.base.DB(ctx)).Where("id = ?", id).First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ResolveTicket writes the resolution only while the ticket is still open.
func (r *repository) ResolveTicket(ctx context.Context, ticket *models.Ticket) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND status = ?", ticket.ID, enums.TicketStatusOpen).
		Updates(map[string]any{
			"status":      ticket.Status,
			"resolution":  ticket.Resolution,
			"resolved_by": ticket.ResolvedBy,
			"resolved_at": ticket.ResolvedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListTickets(ctx context.Context, status *enums.TicketStatus, page pagination.Page) ([]models.Ticket, int64, error) {
	q := r.base.DB(ctx).Model(&models.Ticket{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	q = q.Order("created_at DESC").Order("id DESC")

	var rows []models.Ticket
	total, err := repo.Paginate(q, page, &rows)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
