package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/internal/audit"
	"github.com/angelmondragon/vendorflow-backend/internal/notifications"
	"github.com/angelmondragon/vendorflow-backend/internal/vendors"
	"github.com/angelmondragon/vendorflow-backend/pkg/db"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
	"github.com/angelmondragon/vendorflow-backend/pkg/metrics"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
)

const orderNumberConstraint = "ux_orders_order_number"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTxOptions(ctx context.Context, opts *sql.TxOptions, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the order aggregate and its status engine.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	UpdateOrder(ctx context.Context, input UpdateOrderInput) (*models.Order, error)
	DeleteOrder(ctx context.Context, orderID, actorUserID uuid.UUID) error
	AssignVendor(ctx context.Context, input AssignVendorInput) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, reason string, actorUserID uuid.UUID) (*models.Order, error)
	CloseOrder(ctx context.Context, orderID, actorUserID uuid.UUID) (*models.Order, error)
	GetOrderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, filters ListFilters, page pagination.Page) (pagination.PageResult[models.Order], error)

	// LockOrder takes the order row lock inside tx. Workflow services call it
	// before touching assignments so every writer locks in the same order.
	LockOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
	// StartProcessing moves a RECEIVED or ASSIGNED order to PROCESSING. It is a
	// no-op for any other status.
	StartProcessing(ctx context.Context, tx *gorm.DB, order *models.Order, actorUserID uuid.UUID) (bool, error)
	// RecomputeFulfillment ratchets a PROCESSING or PARTIALLY_FULFILLED order
	// toward FULFILLED based on dispatch and receipt progress.
	RecomputeFulfillment(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actorUserID uuid.UUID) (enums.OrderStatus, error)
}

type service struct {
	tx       txRunner
	repo     Repository
	vendors  vendors.Directory
	audit    audit.Recorder
	outbox   outboxPublisher
	notifier notifications.Notifier
	metrics  *metrics.WorkflowMetrics
	logg     *logger.Logger
}

// NewService builds the order service. notifier and workflowMetrics may be nil.
func NewService(
	tx txRunner,
	repo Repository,
	vendorDirectory vendors.Directory,
	recorder audit.Recorder,
	publisher outboxPublisher,
	notifier notifications.Notifier,
	workflowMetrics *metrics.WorkflowMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if vendorDirectory == nil {
		return nil, fmt.Errorf("vendor directory required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		vendors:  vendorDirectory,
		audit:    recorder,
		outbox:   publisher,
		notifier: notifier,
		metrics:  workflowMetrics,
		logg:     logg,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	orderNumber := strings.TrimSpace(input.OrderNumber)
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id required")
	}
	priced, total, err := priceItems(input.Items)
	if err != nil {
		return nil, err
	}
	var vendor *vendors.Vendor
	if input.VendorID != nil {
		if vendor, err = s.eligibleVendor(ctx, *input.VendorID); err != nil {
			return nil, err
		}
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		exists, err := repo.ExistsByOrderNumber(ctx, orderNumber)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order number")
		}
		if exists {
			return duplicateOrderNumber(orderNumber)
		}

		order = &models.Order{
			ID:              uuid.New(),
			OrderNumber:     orderNumber,
			Status:          enums.OrderStatusReceived,
			TotalValue:      total,
			PrimaryVendorID: input.VendorID,
			Notes:           trimmed(input.Notes),
			CreatedBy:       input.ActorUserID,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			if db.IsUniqueViolation(err, orderNumberConstraint) {
				return duplicateOrderNumber(orderNumber)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := s.writeLines(ctx, repo, order, priced, input.VendorID); err != nil {
			return err
		}

		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ActorUserID: &input.ActorUserID,
			Action:      enums.AuditOrderCreated,
			EntityType:  enums.AuditEntityOrder,
			EntityID:    order.ID,
			Metadata:    snapshotOf(order),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order audit")
		}
		return s.emitOrderEvent(ctx, tx, enums.EventOrderCreated, order, nil, input.ActorUserID)
	})
	if err != nil {
		return nil, db.ClassifyTxError(err, "create order")
	}
	s.metrics.IncTransition("order", string(order.Status))

	if vendor != nil {
		s.notifyVendorAssigned(ctx, order, vendor)
	}
	notifications.BestEffort(ctx, s.logg, s.notifier, notifications.Target{UserIDs: []uuid.UUID{input.ActorUserID}}, notifications.Payload{
		Type:     enums.NotificationTypeOrderCreated,
		Priority: enums.NotificationPriorityNormal,
		Title:    "Order created",
		Message:  fmt.Sprintf("Order %s was created with %d item(s) totalling %s.", order.OrderNumber, len(order.Items), order.TotalValue.StringFixed(2)),
		Link:     orderLink(order.ID),
		Metadata: map[string]any{"orderId": order.ID.String()},
	})
	return order, nil
}

func (s *service) UpdateOrder(ctx context.Context, input UpdateOrderInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	priced, total, err := priceItems(input.Items)
	if err != nil {
		return nil, err
	}

	// The vendor directory is read before the transaction opens; the locked
	// re-read below rejects the update if the vendor moved in between.
	current, err := s.GetOrderByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	vendorID := input.VendorID
	if vendorID == nil {
		vendorID = current.PrimaryVendorID
	}
	var vendor *vendors.Vendor
	if vendorID != nil {
		if vendor, err = s.eligibleVendor(ctx, *vendorID); err != nil {
			return nil, err
		}
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := s.lockedOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := ensureUnlocked(ctx, repo, locked); err != nil {
			return err
		}
		if input.VendorID == nil && !sameVendor(locked.PrimaryVendorID, current.PrimaryVendorID) {
			return pkgerrors.New(pkgerrors.CodeConcurrency, "order vendor changed concurrently; retry")
		}
		previousItems, err := repo.FindItems(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		locked.Items = previousItems
		previous := snapshotOf(locked)

		if err := repo.DeleteItemsAndAssignments(ctx, locked.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace order items")
		}
		updates := map[string]any{
			"total_value":       total,
			"primary_vendor_id": vendorID,
			"notes":             trimmed(input.Notes),
		}
		if err := repo.UpdateOrder(ctx, locked.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		locked.TotalValue = total
		locked.PrimaryVendorID = vendorID
		locked.Notes = trimmed(input.Notes)
		locked.Items = nil
		if err := s.writeLines(ctx, repo, locked, priced, vendorID); err != nil {
			return err
		}

		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ActorUserID: &input.ActorUserID,
			Action:      enums.AuditOrderUpdated,
			EntityType:  enums.AuditEntityOrder,
			EntityID:    locked.ID,
			Metadata: map[string]any{
				"previousTotal": previous.TotalValue,
				"newTotal":      total.StringFixed(2),
				"previous":      previous,
				"current":       snapshotOf(locked),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order audit")
		}
		order = locked
		return s.emitOrderEvent(ctx, tx, enums.EventOrderUpdated, locked, nil, input.ActorUserID)
	})
	if err != nil {
		return nil, db.ClassifyTxError(err, "update order")
	}
	if vendor != nil && !sameVendor(current.PrimaryVendorID, vendorID) {
		s.notifyVendorAssigned(ctx, order, vendor)
	}
	return order, nil
}

func (s *service) DeleteOrder(ctx context.Context, orderID, actorUserID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	// A committed delete must never be half-applied because the caller went away.
	ctx = context.WithoutCancel(ctx)
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	err := s.tx.WithTxOptions(ctx, opts, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockedOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := ensureUnlocked(ctx, repo, order); err != nil {
			return err
		}
		items, err := repo.FindItems(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		order.Items = items

		if err := repo.DeleteOrder(ctx, orderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ActorUserID: optionalActor(actorUserID),
			Action:      enums.AuditOrderDeleted,
			EntityType:  enums.AuditEntityOrder,
			EntityID:    orderID,
			Metadata:    snapshotOf(order),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order audit")
		}
		return s.emitOrderEvent(ctx, tx, enums.EventOrderDeleted, order, nil, actorUserID)
	})
	return db.ClassifyTxError(err, "delete order")
}

func (s *service) AssignVendor(ctx context.Context, input AssignVendorInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil || input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and vendor id required")
	}
	vendor, err := s.eligibleVendor(ctx, input.VendorID)
	if err != nil {
		return nil, err
	}

	var (
		order          *models.Order
		previousStatus enums.OrderStatus
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := s.lockedOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if locked.Status == enums.OrderStatusCancelled || locked.Status == enums.OrderStatusClosed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s", strings.ToLower(string(locked.Status))))
		}
		if !locked.Status.CanTransitionTo(enums.OrderStatusAssigned) {
			return orderLocked()
		}
		confirmed, err := repo.CountConfirmedAssignments(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check assignments")
		}
		if confirmed > 0 {
			return orderLocked()
		}

		items, err := repo.FindItems(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		if err := repo.DeleteAssignments(ctx, locked.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace assignments")
		}
		vendorID := input.VendorID
		assignments := seedAssignments(locked.ID, items, vendorID)
		if err := repo.CreateAssignments(ctx, assignments); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create assignments")
		}
		if err := repo.UpdateOrder(ctx, locked.ID, map[string]any{
			"status":            enums.OrderStatusAssigned,
			"primary_vendor_id": vendorID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign vendor")
		}

		previousVendor := locked.PrimaryVendorID
		previousStatus = locked.Status
		locked.Status = enums.OrderStatusAssigned
		locked.PrimaryVendorID = &vendorID
		locked.Items = attachAssignments(items, assignments)

		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ActorUserID: &input.ActorUserID,
			Action:      enums.AuditOrderVendorAssigned,
			EntityType:  enums.AuditEntityOrder,
			EntityID:    locked.ID,
			Metadata: map[string]any{
				"previousVendorId": previousVendor,
				"vendorId":         vendorID,
				"vendorName":       vendor.CompanyName,
				"previousStatus":   previousStatus,
				"status":           locked.Status,
				"assignments":      len(assignments),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order audit")
		}
		order = locked
		return s.emitOrderEvent(ctx, tx, enums.EventOrderVendorAssigned, locked, previousVendor, input.ActorUserID)
	})
	if err != nil {
		return nil, db.ClassifyTxError(err, "assign vendor")
	}
	if previousStatus != order.Status {
		s.metrics.IncTransition("order", string(order.Status))
	}
	s.notifyVendorAssigned(ctx, order, vendor)
	return order, nil
}

func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string, actorUserID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is required")
	}
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := s.lockedOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !locked.Status.CanTransitionTo(enums.OrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order cannot be cancelled from %s", locked.Status))
		}
		confirmed, err := repo.CountConfirmedAssignments(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check assignments")
		}
		if confirmed > 0 {
			return orderLocked()
		}
		if err := s.moveStatus(ctx, tx, repo, locked, enums.OrderStatusCancelled, reason, actorUserID); err != nil {
			return err
		}
		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ActorUserID: optionalActor(actorUserID),
			Action:      enums.AuditOrderCancelled,
			EntityType:  enums.AuditEntityOrder,
			EntityID:    orderID,
			Metadata:    map[string]any{"reason": reason, "orderNumber": locked.OrderNumber},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order audit")
		}
		order = locked
		return nil
	})
	if err != nil {
		return nil, db.ClassifyTxError(err, "cancel order")
	}
	return order, nil
}

func (s *service) CloseOrder(ctx context.Context, orderID, actorUserID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := s.lockedOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !locked.Status.CanTransitionTo(enums.OrderStatusClosed) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only fulfilled orders can be closed")
		}
		if err := s.moveStatus(ctx, tx, repo, locked, enums.OrderStatusClosed, "closed", actorUserID); err != nil {
			return err
		}
		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ActorUserID: optionalActor(actorUserID),
			Action:      enums.AuditOrderClosed,
			EntityType:  enums.AuditEntityOrder,
			EntityID:    orderID,
			Metadata:    map[string]any{"orderNumber": locked.OrderNumber, "totalValue": locked.TotalValue.StringFixed(2)},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order audit")
		}
		order = locked
		return nil
	})
	if err != nil {
		return nil, db.ClassifyTxError(err, "close order")
	}
	return order, nil
}

func (s *service) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, filters ListFilters, page pagination.Page) (pagination.PageResult[models.Order], error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return pagination.PageResult[models.Order]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status filter")
	}
	if filters.CreatedFrom != nil && filters.CreatedTo != nil && filters.CreatedTo.Before(*filters.CreatedFrom) {
		return pagination.PageResult[models.Order]{}, pkgerrors.New(pkgerrors.CodeValidation, "createdTo must not precede createdFrom")
	}
	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return pagination.PageResult[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return pagination.NewPageResult(rows, total, page), nil
}

func (s *service) LockOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	return s.lockedOrder(ctx, s.repo.WithTx(tx), orderID)
}

func (s *service) StartProcessing(ctx context.Context, tx *gorm.DB, order *models.Order, actorUserID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction required")
	}
	if order == nil || !order.Status.CanTransitionTo(enums.OrderStatusProcessing) {
		return false, nil
	}
	repo := s.repo.WithTx(tx)
	previous := order.Status
	moved, err := repo.UpdateStatusIfIn(ctx, order.ID, []enums.OrderStatus{
		enums.OrderStatusReceived,
		enums.OrderStatusAssigned,
	}, enums.OrderStatusProcessing)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "escalate order")
	}
	if !moved {
		return false, nil
	}
	order.Status = enums.OrderStatusProcessing
	if err := s.emitStatusChanged(ctx, tx, order, previous, "vendor confirmed an assignment", actorUserID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) RecomputeFulfillment(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actorUserID uuid.UUID) (enums.OrderStatus, error) {
	if tx == nil {
		return "", fmt.Errorf("transaction required")
	}
	repo := s.repo.WithTx(tx)
	order, err := s.lockedOrder(ctx, repo, orderID)
	if err != nil {
		return "", err
	}
	if order.Status != enums.OrderStatusProcessing && order.Status != enums.OrderStatusPartiallyFulfilled {
		return order.Status, nil
	}
	counts, err := repo.FulfillmentCounts(ctx, orderID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count fulfillment progress")
	}
	next := enums.OrderStatusPartiallyFulfilled
	if counts.OpenAssignments == 0 && counts.UnreceivedDispatches == 0 {
		next = enums.OrderStatusFulfilled
	}
	if next == order.Status {
		return order.Status, nil
	}
	reason := fmt.Sprintf("%d open assignment(s), %d dispatch(es) awaiting receipt", counts.OpenAssignments, counts.UnreceivedDispatches)
	if err := s.moveStatus(ctx, tx, repo, order, next, reason, actorUserID); err != nil {
		return "", err
	}
	return order.Status, nil
}

// moveStatus applies a table-checked transition with a conditional write and
// emits order_status_changed.
func (s *service) moveStatus(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, next enums.OrderStatus, reason string, actorUserID uuid.UUID) error {
	if !order.Status.CanTransitionTo(next) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order cannot move from %s to %s", order.Status, next))
	}
	previous := order.Status
	moved, err := repo.UpdateStatusIfIn(ctx, order.ID, []enums.OrderStatus{previous}, next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeConcurrency, "order status changed concurrently")
	}
	order.Status = next
	s.metrics.IncTransition("order", string(next))
	return s.emitStatusChanged(ctx, tx, order, previous, reason, actorUserID)
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, order *models.Order, previous enums.OrderStatus, reason string, actorUserID uuid.UUID) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         outbox.Actor(actorUserID, nil),
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			PreviousStatus: previous,
			Status:         order.Status,
			Reason:         reason,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status event")
	}
	return nil
}

func (s *service) emitOrderEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, previousVendor *uuid.UUID, actorUserID uuid.UUID) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         outbox.Actor(actorUserID, nil),
		Data: payloads.OrderEvent{
			OrderID:          order.ID,
			OrderNumber:      order.OrderNumber,
			Status:           order.Status,
			TotalValue:       order.TotalValue,
			ItemCount:        len(order.Items),
			PrimaryVendorID:  order.PrimaryVendorID,
			PreviousVendorID: previousVendor,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order event")
	}
	return nil
}

// writeLines persists priced items and, when a vendor is given, one pending
// assignment per item. order.Items is populated with the result.
func (s *service) writeLines(ctx context.Context, repo Repository, order *models.Order, priced []pricedItem, vendorID *uuid.UUID) error {
	items := make([]models.OrderItem, len(priced))
	for i, line := range priced {
		items[i] = models.OrderItem{
			ID:           uuid.New(),
			OrderID:      order.ID,
			ProductName:  line.ProductName,
			SKU:          line.SKU,
			Quantity:     line.Quantity,
			PricePerUnit: line.PricePerUnit,
			TotalPrice:   line.TotalPrice,
		}
	}
	if err := repo.CreateItems(ctx, items); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
	}
	if vendorID == nil {
		order.Items = items
		return nil
	}
	assignments := seedAssignments(order.ID, items, *vendorID)
	if err := repo.CreateAssignments(ctx, assignments); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create assignments")
	}
	order.Items = attachAssignments(items, assignments)
	return nil
}

func (s *service) lockedOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
	}
	return order, nil
}

func (s *service) eligibleVendor(ctx context.Context, vendorID uuid.UUID) (*vendors.Vendor, error) {
	vendor, err := s.vendors.FindVendor(ctx, vendorID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeVendorNotEligible, "vendor not found")
		}
		return nil, err
	}
	if !vendor.Eligible() {
		return nil, pkgerrors.New(pkgerrors.CodeVendorNotEligible, "vendor must be active and verified")
	}
	return vendor, nil
}

func (s *service) notifyVendorAssigned(ctx context.Context, order *models.Order, vendor *vendors.Vendor) {
	notifications.BestEffort(ctx, s.logg, s.notifier, notifications.Target{VendorIDs: []uuid.UUID{vendor.ID}}, notifications.Payload{
		Type:     enums.NotificationTypeOrderAssigned,
		Priority: enums.NotificationPriorityUrgent,
		Title:    "New order assigned",
		Message:  fmt.Sprintf("Order %s with %d item(s) is waiting for confirmation from %s.", order.OrderNumber, len(order.Items), vendor.CompanyName),
		Link:     strPtr("/vendor/assignments"),
		Metadata: map[string]any{"orderId": order.ID.String(), "vendorId": vendor.ID.String()},
	})
}

// ensureUnlocked enforces the edit rule: RECEIVED and no vendor has confirmed anything.
func ensureUnlocked(ctx context.Context, repo Repository, order *models.Order) error {
	if order.Status != enums.OrderStatusReceived {
		return orderLocked()
	}
	confirmed, err := repo.CountConfirmedAssignments(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check assignments")
	}
	if confirmed > 0 {
		return orderLocked()
	}
	return nil
}

func seedAssignments(orderID uuid.UUID, items []models.OrderItem, vendorID uuid.UUID) []models.Assignment {
	assignments := make([]models.Assignment, len(items))
	for i, item := range items {
		assignments[i] = models.Assignment{
			ID:               uuid.New(),
			OrderID:          orderID,
			OrderItemID:      item.ID,
			VendorID:         vendorID,
			AssignedQuantity: item.Quantity,
			Status:           enums.AssignmentStatusPendingConfirmation,
		}
	}
	return assignments
}

func attachAssignments(items []models.OrderItem, assignments []models.Assignment) []models.OrderItem {
	byItem := make(map[uuid.UUID][]models.Assignment, len(assignments))
	for _, a := range assignments {
		byItem[a.OrderItemID] = append(byItem[a.OrderItemID], a)
	}
	for i := range items {
		items[i].Assignments = byItem[items[i].ID]
	}
	return items
}

func snapshotOf(order *models.Order) orderSnapshot {
	snap := orderSnapshot{
		OrderNumber:     order.OrderNumber,
		Status:          order.Status,
		TotalValue:      order.TotalValue.StringFixed(2),
		PrimaryVendorID: order.PrimaryVendorID,
		Items:           make([]itemSnapshot, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		snap.Items = append(snap.Items, itemSnapshot{
			ProductName:  item.ProductName,
			SKU:          item.SKU,
			Quantity:     item.Quantity,
			PricePerUnit: item.PricePerUnit.StringFixed(2),
			TotalPrice:   item.TotalPrice.StringFixed(2),
		})
	}
	return snap
}

func orderLocked() error {
	return pkgerrors.New(pkgerrors.CodeOrderLocked, "order can no longer be modified")
}

func duplicateOrderNumber(orderNumber string) error {
	return pkgerrors.New(pkgerrors.CodeDuplicate, "order number already exists").
		WithDetails(map[string]any{"orderNumber": orderNumber})
}

func sameVendor(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func optionalActor(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	if out == "" {
		return nil
	}
	return &out
}

func orderLink(id uuid.UUID) *string {
	return strPtr("/orders/" + id.String())
}

func strPtr(v string) *string { return &v }
