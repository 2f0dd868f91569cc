package dispatches

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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
	"github.com/angelmondragon/vendorflow-backend/pkg/storage"
)

const proofKind = "dispatch-proofs"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service tracks shipments from vendor to warehouse.
type Service interface {
	CreateDispatch(ctx context.Context, input CreateDispatchInput) (*models.Dispatch, error)
	UploadProof(ctx context.Context, input UploadProofInput) (*models.DispatchAttachment, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Dispatch, error)
	GetDispatch(ctx context.Context, id uuid.UUID, vendorID *uuid.UUID) (*models.Dispatch, error)
	ListDispatches(ctx context.Context, filters ListFilters, page pagination.Page) (pagination.PageResult[models.Dispatch], error)

	// LockDispatch and MarkDelivered run inside a caller's transaction.
	LockDispatch(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Dispatch, error)
	MarkDelivered(ctx context.Context, tx *gorm.DB, dispatch *models.Dispatch, actorUserID uuid.UUID) error
}

// ServiceParams bundles the dependencies required to build the dispatch service.
type ServiceParams struct {
	Tx             txRunner
	Repo           Repository
	Vendors        vendors.Directory
	Audit          audit.Recorder
	Outbox         outboxPublisher
	Notifier       notifications.Notifier
	Files          storage.Uploader
	Metrics        *metrics.WorkflowMetrics
	Logger         *logger.Logger
	MaxUploadBytes int64
	Now            func() time.Time
}

type service struct {
	tx        txRunner
	repo      Repository
	vendors   vendors.Directory
	audit     audit.Recorder
	outbox    outboxPublisher
	notifier  notifications.Notifier
	files     storage.Uploader
	metrics   *metrics.WorkflowMetrics
	logg      *logger.Logger
	maxUpload int64
	now       func() time.Time
}

// NewService validates params and builds the service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("dispatch repository required")
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
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:        params.Tx,
		repo:      params.Repo,
		vendors:   params.Vendors,
		audit:     params.Audit,
		outbox:    params.Outbox,
		notifier:  params.Notifier,
		files:     params.Files,
		metrics:   params.Metrics,
		logg:      params.Logger,
		maxUpload: params.MaxUploadBytes,
		now:       now,
	}, nil
}

func (s *service) CreateDispatch(ctx context.Context, input CreateDispatchInput) (*models.Dispatch, error) {
	ids, err := validateCreate(&input)
	if err != nil {
		return nil, err
	}

	dispatch := &models.Dispatch{
		VendorID:              input.VendorID,
		AWBNumber:             input.AWBNumber,
		LogisticsPartner:      input.LogisticsPartner,
		DispatchDate:          input.DispatchDate.UTC(),
		EstimatedDeliveryDate: input.EstimatedDeliveryDate,
		Remarks:               trimmed(input.Remarks),
		Status:                enums.DispatchStatusDispatched,
		CreatedBy:             input.ActorUserID,
	}
	var completed []uuid.UUID

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		locked, err := repo.LockAssignments(ctx, input.VendorID, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock assignments")
		}
		if len(locked) != len(ids) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		byID := make(map[uuid.UUID]models.Assignment, len(locked))
		for _, a := range locked {
			if !a.Status.IsDispatchable() {
				return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("assignment %s is %s and cannot be dispatched", a.ID, a.Status)).
					WithDetails(map[string]any{"assignmentId": a.ID.String(), "status": a.Status})
			}
			byID[a.ID] = a
		}

		shipped, err := repo.DispatchedTotals(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum dispatched quantities")
		}
		completed = completed[:0]
		for _, it := range input.Items {
			a := byID[it.AssignmentID]
			confirmed := 0
			if a.ConfirmedQuantity != nil {
				confirmed = *a.ConfirmedQuantity
			}
			after := shipped[a.ID] + it.DispatchedQuantity
			if after > confirmed {
				return pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("dispatching %d unit(s) would exceed the confirmed quantity of assignment %s", it.DispatchedQuantity, a.ID)).
					WithDetails(map[string]any{
						"assignmentId":       a.ID.String(),
						"confirmedQuantity":  confirmed,
						"alreadyDispatched":  shipped[a.ID],
						"dispatchedQuantity": it.DispatchedQuantity,
					})
			}
			if after == confirmed {
				completed = append(completed, a.ID)
			}
			dispatch.Items = append(dispatch.Items, models.DispatchItem{
				AssignmentID:       a.ID,
				DispatchedQuantity: it.DispatchedQuantity,
			})
		}

		if err := repo.Create(ctx, dispatch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispatch")
		}
		if err := repo.MarkAssignmentsDispatched(ctx, completed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark assignments dispatched")
		}

		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ActorUserID: optionalActor(input.ActorUserID),
			Action:      enums.AuditDispatchCreated,
			EntityType:  enums.AuditEntityDispatch,
			EntityID:    dispatch.ID,
			Metadata: createdAudit{
				VendorID:         dispatch.VendorID,
				AWBNumber:        dispatch.AWBNumber,
				LogisticsPartner: dispatch.LogisticsPartner,
				Items:            input.Items,
				Completed:        completed,
				DispatchDate:     dispatch.DispatchDate,
				Status:           dispatch.Status,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record dispatch audit")
		}
		return s.emit(ctx, tx, enums.EventDispatchCreated, dispatch, "", ids, input.ActorUserID)
	})
	if err != nil {
		return nil, db.ClassifyTxError(err, "create dispatch")
	}

	s.metrics.IncTransition("dispatch", string(dispatch.Status))
	for range completed {
		s.metrics.IncTransition("assignment", string(enums.AssignmentStatusDispatched))
	}

	link := "/dispatches/" + dispatch.ID.String()
	notifications.BestEffort(ctx, s.logg, s.notifier, notifications.Target{Roles: []enums.Role{enums.RoleOperations}}, notifications.Payload{
		Type:     enums.NotificationTypeDispatchCreated,
		Priority: enums.NotificationPriorityNormal,
		Title:    "Dispatch created",
		Message: fmt.Sprintf("%s dispatched %d line(s) via %s (AWB %s).",
			s.vendorName(ctx, dispatch.VendorID), len(dispatch.Items), dispatch.LogisticsPartner, dispatch.AWBNumber),
		Link:     &link,
		Metadata: map[string]any{"dispatchId": dispatch.ID.String(), "vendorId": dispatch.VendorID.String()},
	})
	return dispatch, nil
}

func (s *service) UploadProof(ctx context.Context, input UploadProofInput) (*models.DispatchAttachment, error) {
	if s.files == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "file storage unavailable")
	}
	dispatch, err := s.GetDispatch(ctx, input.DispatchID, input.VendorID)
	if err != nil {
		return nil, err
	}
	contentType, err := storage.Inspect(storage.File{Name: input.FileName, Data: input.Data}, s.maxUpload, storage.DocumentTypes...)
	if err != nil {
		return nil, err
	}
	url, err := s.files.Upload(ctx, storage.Object{
		Path:        storage.ObjectPath(proofKind, dispatch.VendorID, input.FileName, s.now()),
		ContentType: contentType,
		Data:        input.Data,
		Metadata:    map[string]string{"dispatch_id": dispatch.ID.String()},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload dispatch proof")
	}

	attachment := &models.DispatchAttachment{
		DispatchID:  dispatch.ID,
		FileURL:     url,
		FileName:    storage.SanitizeName(input.FileName),
		ContentType: contentType,
		SizeBytes:   int64(len(input.Data)),
		UploadedBy:  input.ActorUserID,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateAttachment(ctx, attachment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store dispatch proof")
		}
		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ActorUserID: optionalActor(input.ActorUserID),
			Action:      enums.AuditDispatchProofUploaded,
			EntityType:  enums.AuditEntityDispatch,
			EntityID:    dispatch.ID,
			Metadata: proofAudit{
				AttachmentID: attachment.ID,
				FileName:     attachment.FileName,
				FileURL:      attachment.FileURL,
				ContentType:  attachment.ContentType,
				SizeBytes:    attachment.SizeBytes,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record dispatch audit")
		}
		return nil
	})
	if err != nil {
		return nil, db.ClassifyTxError(err, "upload dispatch proof")
	}
	return attachment, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Dispatch, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid dispatch status")
	}
	var dispatch *models.Dispatch
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.LockDispatch(ctx, tx, input.DispatchID)
		if err != nil {
			return err
		}
		if input.VendorID != nil && locked.VendorID != *input.VendorID {
			return dispatchNotFound()
		}
		// Vendors never confirm their own delivery; a goods receipt does.
		if input.VendorID != nil && input.Status == enums.DispatchStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeForbidden, "delivery is recorded by a goods receipt")
		}
		if err := s.advance(ctx, tx, locked, input.Status, "", input.ActorUserID); err != nil {
			return err
		}
		dispatch = locked
		return nil
	})
	if err != nil {
		return nil, db.ClassifyTxError(err, "update dispatch status")
	}
	return dispatch, nil
}

func (s *service) GetDispatch(ctx context.Context, id uuid.UUID, vendorID *uuid.UUID) (*models.Dispatch, error) {
	if id == uuid.Nil {
		return nil, dispatchNotFound()
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dispatchNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispatch")
	}
	if vendorID != nil && row.VendorID != *vendorID {
		return nil, dispatchNotFound()
	}
	return row, nil
}

func (s *service) ListDispatches(ctx context.Context, filters ListFilters, page pagination.Page) (pagination.PageResult[models.Dispatch], error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return pagination.PageResult[models.Dispatch]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid dispatch status filter")
	}
	rows, total, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return pagination.PageResult[models.Dispatch]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dispatches")
	}
	return pagination.NewPageResult(rows, total, page), nil
}

func (s *service) LockDispatch(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Dispatch, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	row, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dispatchNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock dispatch")
	}
	return row, nil
}

func (s *service) MarkDelivered(ctx context.Context, tx *gorm.DB, dispatch *models.Dispatch, actorUserID uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	return s.advance(ctx, tx, dispatch, enums.DispatchStatusDelivered, "goods received", actorUserID)
}

// advance applies a forward-only status move with a conditional write, then
// audits and emits dispatch_status_changed.
func (s *service) advance(ctx context.Context, tx *gorm.DB, dispatch *models.Dispatch, next enums.DispatchStatus, reason string, actorUserID uuid.UUID) error {
	if !dispatch.Status.CanTransitionTo(next) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("dispatch cannot move from %s to %s", dispatch.Status, next)).
			WithDetails(map[string]any{"status": dispatch.Status, "requested": next})
	}
	previous := dispatch.Status
	moved, err := s.repo.WithTx(tx).UpdateStatusIfIn(ctx, dispatch.ID, []enums.DispatchStatus{previous}, next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update dispatch status")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeConcurrency, "dispatch changed concurrently")
	}
	dispatch.Status = next

	var reopened []uuid.UUID
	if next == enums.DispatchStatusFailed {
		reopened, err = s.reopenAssignments(ctx, tx, dispatch, actorUserID)
		if err != nil {
			return err
		}
	}

	if _, err := s.audit.Record(ctx, tx, audit.Entry{
		ActorUserID: optionalActor(actorUserID),
		Action:      enums.AuditDispatchStatusUpdated,
		EntityType:  enums.AuditEntityDispatch,
		EntityID:    dispatch.ID,
		Metadata:    statusAudit{PreviousStatus: previous, Status: next, Reason: reason},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record dispatch audit")
	}
	if err := s.emit(ctx, tx, enums.EventDispatchStatusChanged, dispatch, previous, reopened, actorUserID); err != nil {
		return err
	}
	s.metrics.IncTransition("dispatch", string(next))
	return nil
}

// reopenAssignments runs after dispatch has been written as FAILED. Every
// DISPATCHED assignment it carried whose remaining non-failed shipments fall
// short of the confirmed quantity returns to a dispatchable status.
func (s *service) reopenAssignments(ctx context.Context, tx *gorm.DB, dispatch *models.Dispatch, actorUserID uuid.UUID) ([]uuid.UUID, error) {
	repo := s.repo.WithTx(tx)
	ids, err := repo.ItemAssignmentIDs(ctx, dispatch.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispatch items")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	assignments, err := repo.LockAssignments(ctx, dispatch.VendorID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock assignments")
	}
	totals, err := repo.DispatchedTotals(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispatched totals")
	}

	var reopened []uuid.UUID
	for _, a := range assignments {
		if a.Status != enums.AssignmentStatusDispatched {
			continue
		}
		confirmed := 0
		if a.ConfirmedQuantity != nil {
			confirmed = *a.ConfirmedQuantity
		}
		if totals[a.ID] >= confirmed {
			continue
		}
		target := reopenedStatus(a)
		moved, err := repo.ReopenAssignment(ctx, a.ID, target)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reopen assignment")
		}
		if !moved {
			return nil, pkgerrors.New(pkgerrors.CodeConcurrency, "assignment changed concurrently")
		}
		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ActorUserID: optionalActor(actorUserID),
			Action:      enums.AuditAssignmentReopened,
			EntityType:  enums.AuditEntityAssignment,
			EntityID:    a.ID,
			Metadata: reopenAudit{
				DispatchID:         dispatch.ID,
				PreviousStatus:     a.Status,
				Status:             target,
				DispatchedQuantity: totals[a.ID],
				ConfirmedQuantity:  confirmed,
			},
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record assignment audit")
		}
		s.metrics.IncTransition("assignment", string(target))
		reopened = append(reopened, a.ID)
	}
	return reopened, nil
}

// reopenedStatus picks the dispatchable status an assignment held before it
// was fully shipped. A partial confirmation of the whole quantity comes back
// as VENDOR_CONFIRMED_FULL; both accept the same shipments.
func reopenedStatus(a models.Assignment) enums.AssignmentStatus {
	if a.InvoiceURL != nil && strings.TrimSpace(*a.InvoiceURL) != "" {
		return enums.AssignmentStatusInvoiced
	}
	if a.ConfirmedQuantity != nil && *a.ConfirmedQuantity < a.AssignedQuantity {
		return enums.AssignmentStatusVendorConfirmedPartial
	}
	return enums.AssignmentStatusVendorConfirmedFull
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, d *models.Dispatch, previous enums.DispatchStatus, assignmentIDs []uuid.UUID, actorUserID uuid.UUID) error {
	vendorID := d.VendorID
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateDispatch,
		AggregateID:   d.ID,
		Actor:         outbox.Actor(actorUserID, &vendorID),
		Data: payloads.DispatchEvent{
			DispatchID:       d.ID,
			VendorID:         d.VendorID,
			AWBNumber:        d.AWBNumber,
			LogisticsPartner: d.LogisticsPartner,
			PreviousStatus:   previous,
			Status:           d.Status,
			AssignmentIDs:    assignmentIDs,
			DispatchDate:     d.DispatchDate,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit dispatch event")
	}
	return nil
}

func (s *service) vendorName(ctx context.Context, vendorID uuid.UUID) string {
	vendor, err := s.vendors.FindVendor(ctx, vendorID)
	if err != nil || vendor == nil {
		return "Vendor"
	}
	return vendor.CompanyName
}

// validateCreate normalizes input in place and returns the assignment ids in
// request order.
func validateCreate(input *CreateDispatchInput) ([]uuid.UUID, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	input.AWBNumber = strings.TrimSpace(input.AWBNumber)
	input.LogisticsPartner = strings.TrimSpace(input.LogisticsPartner)
	if input.AWBNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "awbNumber is required")
	}
	if input.LogisticsPartner == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logisticsPartner is required")
	}
	if input.DispatchDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispatchDate is required")
	}
	if input.EstimatedDeliveryDate != nil && input.EstimatedDeliveryDate.Before(input.DispatchDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "estimatedDeliveryDate cannot precede dispatchDate")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	ids := make([]uuid.UUID, 0, len(input.Items))
	for i, it := range input.Items {
		if it.AssignmentID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].assignmentId is required", i))
		}
		if it.DispatchedQuantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("items[%d].dispatchedQuantity must be positive", i))
		}
		if _, dup := seen[it.AssignmentID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("assignment %s listed more than once", it.AssignmentID))
		}
		seen[it.AssignmentID] = struct{}{}
		ids = append(ids, it.AssignmentID)
	}
	return ids, nil
}

func dispatchNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "dispatch not found")
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
