package assignments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/internal/audit"
	"github.com/angelmondragon/vendorflow-backend/internal/notifications"
	"github.com/angelmondragon/vendorflow-backend/internal/vendors"
	"github.com/angelmondragon/vendorflow-backend/pkg/config"
	"github.com/angelmondragon/vendorflow-backend/pkg/db"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
	"github.com/angelmondragon/vendorflow-backend/pkg/metrics"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
	"github.com/angelmondragon/vendorflow-backend/pkg/storage"
)

const (
	opUpdateStatus  = "assignment_update_status"
	opAttachInvoice = "assignment_attach_invoice"
	invoiceKind     = "invoices"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// orderWorkflow is the slice of the order service the assignment workflow drives.
type orderWorkflow interface {
	LockOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
	StartProcessing(ctx context.Context, tx *gorm.DB, order *models.Order, actorUserID uuid.UUID) (bool, error)
}

// Service runs the vendor side of the assignment state machine.
type Service interface {
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*VendorAssignment, error)
	AttachInvoice(ctx context.Context, input AttachInvoiceInput) (*VendorAssignment, error)
	ListVendorAssignments(ctx context.Context, vendorID uuid.UUID, status *enums.AssignmentStatus, page pagination.Page) (pagination.PageResult[VendorAssignment], error)
	GetVendorAssignment(ctx context.Context, id, vendorID uuid.UUID) (*VendorAssignment, error)
}

// ServiceParams bundles the dependencies required to build the assignment service.
type ServiceParams struct {
	Tx       txRunner
	Repo     Repository
	Orders   orderWorkflow
	Vendors  vendors.Directory
	Audit    audit.Recorder
	Outbox   outboxPublisher
	Notifier notifications.Notifier
	Files    storage.Uploader
	Metrics  *metrics.WorkflowMetrics
	Logger   *logger.Logger
	Workflow config.WorkflowConfig
	// MaxUploadBytes caps invoice uploads; zero disables the check.
	MaxUploadBytes int64
	Now            func() time.Time
}

type service struct {
	tx        txRunner
	repo      Repository
	orders    orderWorkflow
	vendors   vendors.Directory
	audit     audit.Recorder
	outbox    outboxPublisher
	notifier  notifications.Notifier
	files     storage.Uploader
	metrics   *metrics.WorkflowMetrics
	logg      *logger.Logger
	slots     *semaphore.Weighted
	maxWait   time.Duration
	txTimeout time.Duration
	maxUpload int64
	now       func() time.Time
}

// NewService validates params and builds the service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("assignments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order workflow required")
	}
	if params.Vendors == nil {
		return nil, fmt.Errorf("vendor directory required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Workflow.TxSlots <= 0 || params.Workflow.TxMaxWait <= 0 || params.Workflow.TxTimeout <= 0 {
		return nil, fmt.Errorf("workflow tx slots, max wait and timeout must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:        params.Tx,
		repo:      params.Repo,
		orders:    params.Orders,
		vendors:   params.Vendors,
		audit:     params.Audit,
		outbox:    params.Outbox,
		notifier:  params.Notifier,
		files:     params.Files,
		metrics:   params.Metrics,
		logg:      params.Logger,
		slots:     semaphore.NewWeighted(params.Workflow.TxSlots),
		maxWait:   params.Workflow.TxMaxWait,
		txTimeout: params.Workflow.TxTimeout,
		maxUpload: params.MaxUploadBytes,
		now:       now,
	}, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*VendorAssignment, error) {
	if input.AssignmentID == uuid.Nil || input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id and vendor id required")
	}
	if !input.Status.IsVendorDecision() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be VENDOR_CONFIRMED_FULL, VENDOR_CONFIRMED_PARTIAL or VENDOR_DECLINED")
	}
	var (
		view      *VendorAssignment
		escalated bool
	)
	err := s.inSlot(ctx, opUpdateStatus, func(txCtx context.Context) error {
		return s.tx.WithTx(txCtx, func(tx *gorm.DB) error {
			if err := db.SetLocalTimeouts(tx, s.txTimeout); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply transaction timeouts")
			}
			repo := s.repo.WithTx(tx)

			current, err := s.loadScoped(txCtx, repo, input.AssignmentID, input.VendorID)
			if err != nil {
				return err
			}
			if current.Status != enums.AssignmentStatusPendingConfirmation {
				return alreadyProcessed()
			}
			confirmed, err := confirmedQuantityFor(input, current.AssignedQuantity)
			if err != nil {
				return err
			}

			// Order row first: delete and confirm must lock in the same order.
			order, err := s.orders.LockOrder(txCtx, tx, current.OrderID)
			if err != nil {
				if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
					return assignmentNotFound()
				}
				return err
			}
			if order.Status == enums.OrderStatusCancelled || order.Status == enums.OrderStatusClosed {
				return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s", strings.ToLower(string(order.Status))))
			}

			actionAt := s.now().UTC()
			swapped, err := repo.CompareAndSwap(txCtx, current.ID, input.VendorID,
				[]enums.AssignmentStatus{enums.AssignmentStatusPendingConfirmation},
				map[string]any{
					"status":             input.Status,
					"confirmed_quantity": confirmed,
					"vendor_remarks":     trimmed(input.Remarks),
					"vendor_action_at":   actionAt,
				})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update assignment")
			}
			if !swapped {
				return s.explainLostSwap(txCtx, repo, input.AssignmentID, input.VendorID)
			}
			previous := current.Status
			current.Status = input.Status
			current.ConfirmedQuantity = confirmed
			current.VendorRemarks = trimmed(input.Remarks)
			current.VendorActionAt = &actionAt

			if input.Status.IsConfirmed() {
				if escalated, err = s.orders.StartProcessing(txCtx, tx, order, input.ActorUserID); err != nil {
					return err
				}
			}

			action, _ := enums.AssignmentAuditAction(input.Status)
			if _, err := s.audit.Record(txCtx, tx, audit.Entry{
				ActorUserID: optionalActor(input.ActorUserID),
				Action:      action,
				EntityType:  enums.AuditEntityAssignment,
				EntityID:    current.ID,
				Metadata: decisionAudit{
					OrderID:           current.OrderID,
					OrderItemID:       current.OrderItemID,
					VendorID:          current.VendorID,
					PreviousStatus:    previous,
					Status:            current.Status,
					AssignedQuantity:  current.AssignedQuantity,
					ConfirmedQuantity: current.ConfirmedQuantity,
					Remarks:           current.VendorRemarks,
					OrderEscalated:    escalated,
				},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record assignment audit")
			}
			if err := s.emitStatusChanged(txCtx, tx, current, previous, input.ActorUserID); err != nil {
				return err
			}

			lines, err := repo.LineContexts(txCtx, []uuid.UUID{current.OrderItemID})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order line")
			}
			v := toView(*current, lines[current.OrderItemID])
			view = &v
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition("assignment", string(view.Status))
	if escalated {
		s.metrics.IncTransition("order", string(enums.OrderStatusProcessing))
	}
	s.notifyDecision(ctx, view)
	return view, nil
}

func (s *service) AttachInvoice(ctx context.Context, input AttachInvoiceInput) (*VendorAssignment, error) {
	if input.AssignmentID == uuid.Nil || input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id and vendor id required")
	}
	if s.files == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "file storage unavailable")
	}
	current, err := s.loadScoped(ctx, s.repo, input.AssignmentID, input.VendorID)
	if err != nil {
		return nil, err
	}
	if err := invoiceable(current.Status); err != nil {
		return nil, err
	}
	contentType, err := storage.Inspect(storage.File{Name: input.FileName, Data: input.Data}, s.maxUpload, storage.DocumentTypes...)
	if err != nil {
		return nil, err
	}

	// Upload happens before the transaction so no row lock is held across it.
	url, err := s.files.Upload(ctx, storage.Object{
		Path:        storage.ObjectPath(invoiceKind, input.VendorID, input.FileName, s.now()),
		ContentType: contentType,
		Data:        input.Data,
		Metadata:    map[string]string{"assignment_id": input.AssignmentID.String()},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload invoice")
	}

	var view *VendorAssignment
	err = s.inSlot(ctx, opAttachInvoice, func(txCtx context.Context) error {
		return s.tx.WithTx(txCtx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			locked, err := s.loadScoped(txCtx, repo, input.AssignmentID, input.VendorID)
			if err != nil {
				return err
			}
			if err := invoiceable(locked.Status); err != nil {
				return err
			}
			swapped, err := repo.CompareAndSwap(txCtx, locked.ID, input.VendorID,
				[]enums.AssignmentStatus{enums.AssignmentStatusVendorConfirmedFull, enums.AssignmentStatusVendorConfirmedPartial},
				map[string]any{"status": enums.AssignmentStatusInvoiced, "invoice_url": url})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store invoice")
			}
			if !swapped {
				return s.explainLostSwap(txCtx, repo, input.AssignmentID, input.VendorID)
			}
			previous := locked.Status
			locked.Status = enums.AssignmentStatusInvoiced
			locked.InvoiceURL = &url

			if _, err := s.audit.Record(txCtx, tx, audit.Entry{
				ActorUserID: optionalActor(input.ActorUserID),
				Action:      enums.AuditAssignmentInvoiced,
				EntityType:  enums.AuditEntityAssignment,
				EntityID:    locked.ID,
				Metadata: decisionAudit{
					OrderID:           locked.OrderID,
					OrderItemID:       locked.OrderItemID,
					VendorID:          locked.VendorID,
					PreviousStatus:    previous,
					Status:            locked.Status,
					AssignedQuantity:  locked.AssignedQuantity,
					ConfirmedQuantity: locked.ConfirmedQuantity,
					InvoiceURL:        locked.InvoiceURL,
				},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record assignment audit")
			}
			if err := s.emitStatusChanged(txCtx, tx, locked, previous, input.ActorUserID); err != nil {
				return err
			}
			lines, err := repo.LineContexts(txCtx, []uuid.UUID{locked.OrderItemID})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order line")
			}
			v := toView(*locked, lines[locked.OrderItemID])
			view = &v
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition("assignment", string(view.Status))
	notifications.BestEffort(ctx, s.logg, s.notifier, notifications.Target{Roles: []enums.Role{enums.RoleAccounts}}, notifications.Payload{
		Type:     enums.NotificationTypeInvoiceUploaded,
		Priority: enums.NotificationPriorityNormal,
		Title:    "Invoice uploaded",
		Message:  fmt.Sprintf("%s uploaded an invoice for %s on order %s.", s.vendorName(ctx, view.VendorID), view.ProductName, view.OrderNumber),
		Link:     view.InvoiceURL,
		Metadata: map[string]any{"assignmentId": view.ID.String(), "orderId": view.OrderID.String()},
	})
	return view, nil
}

func (s *service) ListVendorAssignments(ctx context.Context, vendorID uuid.UUID, status *enums.AssignmentStatus, page pagination.Page) (pagination.PageResult[VendorAssignment], error) {
	if vendorID == uuid.Nil {
		return pagination.PageResult[VendorAssignment]{}, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if status != nil && !status.IsValid() {
		return pagination.PageResult[VendorAssignment]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid assignment status filter")
	}
	page = page.Normalize()
	rows, total, err := s.repo.ListByVendor(ctx, vendorID, status, page)
	if err != nil {
		return pagination.PageResult[VendorAssignment]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
	}
	itemIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		itemIDs = append(itemIDs, row.OrderItemID)
	}
	lines, err := s.repo.LineContexts(ctx, itemIDs)
	if err != nil {
		return pagination.PageResult[VendorAssignment]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
	}
	views := make([]VendorAssignment, 0, len(rows))
	for _, row := range rows {
		views = append(views, toView(row, lines[row.OrderItemID]))
	}
	return pagination.NewPageResult(views, total, page), nil
}

func (s *service) GetVendorAssignment(ctx context.Context, id, vendorID uuid.UUID) (*VendorAssignment, error) {
	row, err := s.loadScoped(ctx, s.repo, id, vendorID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.LineContexts(ctx, []uuid.UUID{row.OrderItemID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order line")
	}
	view := toView(*row, lines[row.OrderItemID])
	return &view, nil
}

// inSlot bounds the number of concurrent workflow transactions. Waiting for a
// slot is capped by maxWait and the transaction itself by txTimeout; the
// transaction context is detached from the caller so a client disconnect
// cannot abort a commit halfway.
func (s *service) inSlot(ctx context.Context, operation string, fn func(txCtx context.Context) error) error {
	started := time.Now()
	waitCtx, cancelWait := context.WithTimeout(ctx, s.maxWait)
	err := s.slots.Acquire(waitCtx, 1)
	cancelWait()
	if err != nil {
		s.metrics.ObserveTx(operation, time.Since(started), string(pkgerrors.CodeConcurrency))
		return pkgerrors.Wrap(pkgerrors.CodeConcurrency, err, "workflow is busy; retry shortly")
	}
	defer s.slots.Release(1)

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.txTimeout)
	defer cancel()

	err = db.ClassifyTxError(fn(txCtx), "update assignment")
	outcome := ""
	if typed := pkgerrors.As(err); typed != nil {
		outcome = string(typed.Code())
	}
	s.metrics.ObserveTx(operation, time.Since(started), outcome)
	return err
}

func (s *service) loadScoped(ctx context.Context, repo Repository, id, vendorID uuid.UUID) (*models.Assignment, error) {
	if id == uuid.Nil || vendorID == uuid.Nil {
		return nil, assignmentNotFound()
	}
	row, err := repo.FindForVendor(ctx, id, vendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, assignmentNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	return row, nil
}

// explainLostSwap distinguishes a row that vanished from one another writer
// already moved on.
func (s *service) explainLostSwap(ctx context.Context, repo Repository, id, vendorID uuid.UUID) error {
	if _, err := s.loadScoped(ctx, repo, id, vendorID); err != nil {
		return err
	}
	return alreadyProcessed()
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, a *models.Assignment, previous enums.AssignmentStatus, actorUserID uuid.UUID) error {
	vendorID := a.VendorID
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventAssignmentStatusChanged,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   a.ID,
		Actor:         outbox.Actor(actorUserID, &vendorID),
		Data: payloads.AssignmentStatusChangedEvent{
			AssignmentID:      a.ID,
			OrderID:           a.OrderID,
			OrderItemID:       a.OrderItemID,
			VendorID:          a.VendorID,
			PreviousStatus:    previous,
			Status:            a.Status,
			AssignedQuantity:  a.AssignedQuantity,
			ConfirmedQuantity: a.ConfirmedQuantity,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit assignment event")
	}
	return nil
}

func (s *service) notifyDecision(ctx context.Context, view *VendorAssignment) {
	vendorName := s.vendorName(ctx, view.VendorID)
	meta := map[string]any{
		"assignmentId": view.ID.String(),
		"orderId":      view.OrderID.String(),
		"vendorId":     view.VendorID.String(),
	}
	link := "/orders/" + view.OrderID.String()

	if view.Status == enums.AssignmentStatusVendorDeclined {
		notifications.BestEffort(ctx, s.logg, s.notifier, notifications.Target{Roles: []enums.Role{enums.RoleAdmin, enums.RoleOperations}}, notifications.Payload{
			Type:     enums.NotificationTypeAssignmentDeclined,
			Priority: enums.NotificationPriorityNormal,
			Title:    "Assignment declined",
			Message:  fmt.Sprintf("%s declined %d unit(s) of %s for order %s.", vendorName, view.AssignedQuantity, view.ProductName, view.OrderNumber),
			Link:     &link,
			Metadata: meta,
		})
		return
	}

	confirmed := 0
	if view.ConfirmedQuantity != nil {
		confirmed = *view.ConfirmedQuantity
	}
	kind := "fully"
	if view.Status == enums.AssignmentStatusVendorConfirmedPartial {
		kind = "partially"
	}
	notifications.BestEffort(ctx, s.logg, s.notifier, notifications.Target{Roles: []enums.Role{enums.RoleAdmin, enums.RoleAccounts}}, notifications.Payload{
		Type:     enums.NotificationTypeAssignmentConfirmed,
		Priority: enums.NotificationPriorityNormal,
		Title:    "Assignment confirmed",
		Message: fmt.Sprintf("%s %s confirmed %d of %d unit(s) of %s for order %s.",
			vendorName, kind, confirmed, view.AssignedQuantity, view.ProductName, view.OrderNumber),
		Link:     &link,
		Metadata: meta,
	})
}

func (s *service) vendorName(ctx context.Context, vendorID uuid.UUID) string {
	vendor, err := s.vendors.FindVendor(ctx, vendorID)
	if err != nil || vendor == nil {
		return "Vendor"
	}
	return vendor.CompanyName
}

// confirmedQuantityFor derives the stored quantity: FULL takes the assigned
// quantity, DECLINED clears it and PARTIAL must lie in (0, assigned].
func confirmedQuantityFor(input UpdateStatusInput, assigned int) (*int, error) {
	switch input.Status {
	case enums.AssignmentStatusVendorConfirmedFull:
		q := assigned
		return &q, nil
	case enums.AssignmentStatusVendorConfirmedPartial:
		if input.ConfirmedQuantity == nil || *input.ConfirmedQuantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "partial confirmation requires a positive confirmed quantity")
		}
		q := *input.ConfirmedQuantity
		if q > assigned {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("confirmed quantity cannot exceed assigned quantity %d", assigned)).
				WithDetails(map[string]any{"assignedQuantity": assigned, "confirmedQuantity": q})
		}
		return &q, nil
	default:
		return nil, nil
	}
}

func invoiceable(status enums.AssignmentStatus) error {
	if status == enums.AssignmentStatusInvoiced {
		return alreadyProcessed()
	}
	if !status.CanTransitionTo(enums.AssignmentStatusInvoiced) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only confirmed assignments can be invoiced")
	}
	return nil
}

func assignmentNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
}

func alreadyProcessed() error {
	return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "assignment has already been processed")
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
