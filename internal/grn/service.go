package grn

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

const (
	grnPrefix    = "GRN"
	ticketPrefix = "TKT"

	uniqueGRNDispatch = "ux_grns_dispatch"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type dispatchTracker interface {
	LockDispatch(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Dispatch, error)
	MarkDelivered(ctx context.Context, tx *gorm.DB, dispatch *models.Dispatch, actorUserID uuid.UUID) error
}

type fulfillmentTracker interface {
	RecomputeFulfillment(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actorUserID uuid.UUID) (enums.OrderStatus, error)
}

// Service records goods receipts and manages the discrepancy tickets they raise.
type Service interface {
	RecordGRN(ctx context.Context, input RecordInput) (*models.GoodsReceiptNote, error)
	GetGRN(ctx context.Context, id uuid.UUID) (*models.GoodsReceiptNote, error)
	GetGRNByDispatch(ctx context.Context, dispatchID uuid.UUID) (*models.GoodsReceiptNote, error)
	ListTickets(ctx context.Context, status *enums.TicketStatus, page pagination.Page) (pagination.PageResult[models.Ticket], error)
	ResolveTicket(ctx context.Context, input ResolveTicketInput) (*models.Ticket, error)
}

// ServiceParams bundles the dependencies required to build the GRN service.
type ServiceParams struct {
	Tx         txRunner
	Repo       Repository
	Dispatches dispatchTracker
	Orders     fulfillmentTracker
	Audit      audit.Recorder
	Outbox     outboxPublisher
	Notifier   notifications.Notifier
	Metrics    *metrics.WorkflowMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	tx         txRunner
	repo       Repository
	dispatches dispatchTracker
	orders     fulfillmentTracker
	audit      audit.Recorder
	outbox     outboxPublisher
	notifier   notifications.Notifier
	metrics    *metrics.WorkflowMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewService validates params and builds the service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("grn repository required")
	}
	if params.Dispatches == nil {
		return nil, fmt.Errorf("dispatch tracker required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("fulfillment tracker required")
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
		tx:         params.Tx,
		repo:       params.Repo,
		dispatches: params.Dispatches,
		orders:     params.Orders,
		audit:      params.Audit,
		outbox:     params.Outbox,
		notifier:   params.Notifier,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        now,
	}, nil
}

func (s *service) RecordGRN(ctx context.Context, input RecordInput) (*models.GoodsReceiptNote, error) {
	if input.DispatchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispatch id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receiving user required")
	}
	if err := validateItems(input.Items); err != nil {
		return nil, err
	}
	remarks := trimmed(input.OperatorRemarks)

	var (
		note     *models.GoodsReceiptNote
		ticket   *models.Ticket
		orderIDs []uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		dispatch, err := s.dispatches.LockDispatch(ctx, tx, input.DispatchID)
		if err != nil {
			return err
		}
		if dispatch.Status == enums.DispatchStatusFailed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "a failed dispatch cannot be received")
		}
		exists, err := repo.ExistsForDispatch(ctx, dispatch.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing receipt")
		}
		if exists {
			return alreadyReceived()
		}

		lines, err := repo.DispatchLines(ctx, dispatch.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispatch lines")
		}
		byItem, err := matchLines(lines, input.Items)
		if err != nil {
			return err
		}

		receivedAt := s.now().UTC()
		note = &models.GoodsReceiptNote{
			GRNNumber:       generateNumber(grnPrefix, receivedAt),
			DispatchID:      dispatch.ID,
			OperatorRemarks: remarks,
			ReceivedBy:      input.ActorUserID,
			ReceivedAt:      receivedAt,
		}
		statuses := make([]enums.GRNItemStatus, 0, len(lines))
		var findings []string
		for _, line := range lines {
			in := byItem[line.DispatchItemID]
			item := verify(line, in)
			note.Items = append(note.Items, item)
			statuses = append(statuses, item.Status)
			if item.Status == enums.GRNItemStatusVerifiedMismatch {
				findings = append(findings, describe(line, item))
			}
		}
		note.Status = enums.AggregateGRNStatus(statuses)

		if err := repo.Create(ctx, note); err != nil {
			if db.IsUniqueViolation(err, uniqueGRNDispatch) {
				return alreadyReceived()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create goods receipt")
		}

		if note.Status != enums.GRNStatusVerifiedOK {
			ticket = &models.Ticket{
				TicketNumber: generateNumber(ticketPrefix, receivedAt),
				GRNID:        note.ID,
				Description:  ticketDescription(remarks, findings),
				Status:       enums.TicketStatusOpen,
			}
			if err := repo.CreateTicket(ctx, ticket); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create discrepancy ticket")
			}
			note.Ticket = ticket
		}

		if dispatch.Status != enums.DispatchStatusDelivered {
			if err := s.dispatches.MarkDelivered(ctx, tx, dispatch, input.ActorUserID); err != nil {
				return err
			}
		}

		orderIDs = distinctOrders(lines)
		for _, orderID := range orderIDs {
			if _, err := s.orders.RecomputeFulfillment(ctx, tx, orderID, input.ActorUserID); err != nil {
				return err
			}
		}

		return s.recordTrail(ctx, tx, note, ticket, orderIDs, len(findings), input.ActorUserID)
	})
	if err != nil {
		return nil, db.ClassifyTxError(err, "record goods receipt")
	}

	s.metrics.IncTransition("grn", string(note.Status))
	if ticket != nil {
		s.notifyMismatch(ctx, note, ticket)
	}
	return note, nil
}

func (s *service) GetGRN(ctx context.Context, id uuid.UUID) (*models.GoodsReceiptNote, error) {
	row, err := s.repo.FindByID(ctx, id)
	return found(row, err)
}

func (s *service) GetGRNByDispatch(ctx context.Context, dispatchID uuid.UUID) (*models.GoodsReceiptNote, error) {
	row, err := s.repo.FindByDispatch(ctx, dispatchID)
	return found(row, err)
}

func (s *service) ListTickets(ctx context.Context, status *enums.TicketStatus, page pagination.Page) (pagination.PageResult[models.Ticket], error) {
	if status != nil && !status.IsValid() {
		return pagination.PageResult[models.Ticket]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid ticket status filter")
	}
	rows, total, err := s.repo.ListTickets(ctx, status, page)
	if err != nil {
		return pagination.PageResult[models.Ticket]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tickets")
	}
	return pagination.NewPageResult(rows, total, page), nil
}

func (s *service) ResolveTicket(ctx context.Context, input ResolveTicketInput) (*models.Ticket, error) {
	resolution := strings.TrimSpace(input.Resolution)
	if resolution == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution is required")
	}
	var ticket *models.Ticket
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindTicketForUpdate(ctx, input.TicketID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket")
		}
		if locked.Status != enums.TicketStatusOpen {
			return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "ticket is already resolved")
		}

		resolvedAt := s.now().UTC()
		locked.Status = enums.TicketStatusResolved
		locked.Resolution = &resolution
		locked.ResolvedBy = optionalActor(input.ActorUserID)
		locked.ResolvedAt = &resolvedAt
		ok, err := repo.ResolveTicket(ctx, locked)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve ticket")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "ticket is already resolved")
		}

		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ActorUserID: optionalActor(input.ActorUserID),
			Action:      enums.AuditTicketResolved,
			EntityType:  enums.AuditEntityTicket,
			EntityID:    locked.ID,
			Metadata: ticketAudit{
				TicketNumber: locked.TicketNumber,
				GRNID:        locked.GRNID,
				Status:       locked.Status,
				Resolution:   locked.Resolution,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ticket audit")
		}
		ticket = locked
		return nil
	})
	if err != nil {
		return nil, db.ClassifyTxError(err, "resolve ticket")
	}
	s.metrics.IncTransition("ticket", string(ticket.Status))
	return ticket, nil
}

// recordTrail writes grn:created, the verification outcome and, when a
// ticket was opened, ticket:created, then queues grn_recorded.
func (s *service) recordTrail(ctx context.Context, tx *gorm.DB, note *models.GoodsReceiptNote, ticket *models.Ticket, orderIDs []uuid.UUID, mismatched int, actorUserID uuid.UUID) error {
	actor := optionalActor(actorUserID)
	meta := grnAudit{
		GRNNumber:  note.GRNNumber,
		DispatchID: note.DispatchID,
		Status:     note.Status,
		ItemCount:  len(note.Items),
		Mismatched: mismatched,
		OrderIDs:   orderIDs,
	}
	if ticket != nil {
		meta.TicketNumber = &ticket.TicketNumber
	}

	outcome := enums.AuditGRNVerifiedOK
	if note.Status != enums.GRNStatusVerifiedOK {
		outcome = enums.AuditGRNVerifiedMismatch
	}
	for _, action := range []enums.AuditAction{enums.AuditGRNCreated, outcome} {
		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ActorUserID: actor,
			Action:      action,
			EntityType:  enums.AuditEntityGRN,
			EntityID:    note.ID,
			Metadata:    meta,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record grn audit")
		}
	}

	event := payloads.GRNRecordedEvent{
		GRNID:      note.ID,
		GRNNumber:  note.GRNNumber,
		DispatchID: note.DispatchID,
		Status:     note.Status,
		OrderIDs:   orderIDs,
	}
	if ticket != nil {
		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ActorUserID: actor,
			Action:      enums.AuditTicketCreated,
			EntityType:  enums.AuditEntityTicket,
			EntityID:    ticket.ID,
			Metadata: ticketAudit{
				TicketNumber: ticket.TicketNumber,
				GRNID:        note.ID,
				Status:       ticket.Status,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ticket audit")
		}
		event.TicketID = &ticket.ID
		event.TicketNumber = &ticket.TicketNumber
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventGRNRecorded,
		AggregateType: enums.AggregateGRN,
		AggregateID:   note.ID,
		Actor:         outbox.Actor(actorUserID, nil),
		Data:          event,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit grn event")
	}
	return nil
}

func (s *service) notifyMismatch(ctx context.Context, note *models.GoodsReceiptNote, ticket *models.Ticket) {
	link := "/grns/" + note.ID.String()
	notifications.BestEffort(ctx, s.logg, s.notifier, notifications.Target{Roles: []enums.Role{enums.RoleAdmin, enums.RoleOperations}}, notifications.Payload{
		Type:     enums.NotificationTypeReceiptMismatch,
		Priority: enums.NotificationPriorityUrgent,
		Title:    "Goods receipt mismatch",
		Message:  fmt.Sprintf("%s recorded as %s; ticket %s opened.", note.GRNNumber, note.Status, ticket.TicketNumber),
		Link:     &link,
		Metadata: map[string]any{
			"grnId":        note.ID.String(),
			"dispatchId":   note.DispatchID.String(),
			"ticketId":     ticket.ID.String(),
			"ticketNumber": ticket.TicketNumber,
		},
	})
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(items))
	for i, it := range items {
		if it.DispatchItemID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].dispatchItemId is required", i))
		}
		if it.ReceivedQuantity < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].receivedQuantity cannot be negative", i))
		}
		if _, dup := seen[it.DispatchItemID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("dispatch item %s listed more than once", it.DispatchItemID))
		}
		seen[it.DispatchItemID] = struct{}{}
	}
	return nil
}

// matchLines requires items to cover every dispatch line exactly once.
func matchLines(lines []DispatchLine, items []ItemInput) (map[uuid.UUID]ItemInput, error) {
	known := make(map[uuid.UUID]struct{}, len(lines))
	for _, line := range lines {
		known[line.DispatchItemID] = struct{}{}
	}
	byItem := make(map[uuid.UUID]ItemInput, len(items))
	for _, it := range items {
		if _, ok := known[it.DispatchItemID]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("dispatch item %s does not belong to this dispatch", it.DispatchItemID))
		}
		byItem[it.DispatchItemID] = it
	}
	if len(byItem) != len(lines) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "every dispatched item must be verified").
			WithDetails(map[string]any{"expected": len(lines), "received": len(byItem)})
	}
	return byItem, nil
}

func verify(line DispatchLine, in ItemInput) models.GRNItem {
	discrepancy := in.ReceivedQuantity - line.DispatchedQuantity
	status := enums.GRNItemStatusVerifiedOK
	if discrepancy != 0 || in.DamageReported {
		status = enums.GRNItemStatusVerifiedMismatch
	}
	return models.GRNItem{
		DispatchItemID:      line.DispatchItemID,
		DispatchedQuantity:  line.DispatchedQuantity,
		ReceivedQuantity:    in.ReceivedQuantity,
		DiscrepancyQuantity: discrepancy,
		DamageReported:      in.DamageReported,
		Status:              status,
	}
}

// describe renders one mismatching line, for example
// "Widget (W-1): Shortage: 2 units; Damage reported".
func describe(line DispatchLine, item models.GRNItem) string {
	var issues []string
	switch {
	case item.DiscrepancyQuantity < 0:
		issues = append(issues, fmt.Sprintf("Shortage: %d units", -item.DiscrepancyQuantity))
	case item.DiscrepancyQuantity > 0:
		issues = append(issues, fmt.Sprintf("Excess: %d units", item.DiscrepancyQuantity))
	}
	if item.DamageReported {
		issues = append(issues, "Damage reported")
	}
	label := line.ProductName
	if line.SKU != nil && *line.SKU != "" {
		label = fmt.Sprintf("%s (%s)", line.ProductName, *line.SKU)
	}
	return label + ": " + strings.Join(issues, "; ")
}

func ticketDescription(remarks *string, findings []string) string {
	lines := make([]string, 0, len(findings)+1)
	if remarks != nil {
		lines = append(lines, "Operator remarks: "+*remarks)
	}
	lines = append(lines, findings...)
	return strings.Join(lines, "\n")
}

// generateNumber returns PREFIX-YYYYMMDD-XXXXXXXX with an upper-case random suffix.
func generateNumber(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, at.UTC().Format("20060102"), suffix)
}

func distinctOrders(lines []DispatchLine) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	out := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.OrderID]; ok {
			continue
		}
		seen[line.OrderID] = struct{}{}
		out = append(out, line.OrderID)
	}
	return out
}

func found(row *models.GoodsReceiptNote, err error) (*models.GoodsReceiptNote, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "goods receipt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load goods receipt")
	}
	return row, nil
}

func alreadyReceived() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "a goods receipt already exists for this dispatch")
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
