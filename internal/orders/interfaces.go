package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
)

// Repository defines persistence operations for orders, items and their assignments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	CreateAssignments(ctx context.Context, assignments []models.Assignment) error
	ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	CountConfirmedAssignments(ctx context.Context, orderID uuid.UUID) (int64, error)
	DeleteItemsAndAssignments(ctx context.Context, orderID uuid.UUID) error
	DeleteAssignments(ctx context.Context, orderID uuid.UUID) error
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	UpdateStatusIfIn(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (bool, error)
	List(ctx context.Context, filters ListFilters, page pagination.Page) ([]models.Order, int64, error)
	FulfillmentCounts(ctx context.Context, orderID uuid.UUID) (FulfillmentCounts, error)
}

// FulfillmentCounts feeds the fulfillment ratchet.
type FulfillmentCounts struct {
	// OpenAssignments are non-declined assignments not yet fully dispatched.
	OpenAssignments int64
	// UnreceivedDispatches are live dispatches carrying this order's lines with no GRN.
	UnreceivedDispatches int64
}
