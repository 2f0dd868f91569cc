package assignments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorflow-backend/internal/orders"
	"github.com/angelmondragon/vendorflow-backend/internal/workflowtest"
	"github.com/angelmondragon/vendorflow-backend/pkg/config"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
	"github.com/angelmondragon/vendorflow-backend/pkg/storage"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type stubUploader struct {
	mu      sync.Mutex
	objects []storage.Object
	err     error
}

func (u *stubUploader) Upload(_ context.Context, obj storage.Object) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return "", u.err
	}
	u.objects = append(u.objects, obj)
	return "https://files.test/" + obj.Path, nil
}

type harness struct {
	env    *workflowtest.Env
	orders orders.Service
	svc    Service
	files  *stubUploader
	actor  uuid.UUID
}

func testWorkflow() config.WorkflowConfig {
	return config.WorkflowConfig{TxSlots: 4, TxMaxWait: 50 * time.Millisecond, TxTimeout: 5 * time.Second}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	env := workflowtest.New(t)
	orderSvc, err := orders.NewService(env.Client, orders.NewRepository(env.DB), env.Vendors, env.Audit, env.Outbox, env.Notifier, nil, env.Logger)
	require.NoError(t, err)
	files := &stubUploader{}
	svc, err := NewService(ServiceParams{
		Tx:             env.Client,
		Repo:           NewRepository(env.DB),
		Orders:         orderSvc,
		Vendors:        env.Vendors,
		Audit:          env.Audit,
		Outbox:         env.Outbox,
		Notifier:       env.Notifier,
		Files:          files,
		Logger:         env.Logger,
		Workflow:       testWorkflow(),
		MaxUploadBytes: 1 << 20,
	})
	require.NoError(t, err)
	return &harness{env: env, orders: orderSvc, svc: svc, files: files, actor: uuid.New()}
}

// seed creates an order of one line assigned to vendorID and returns it with
// the single assignment.
func (h *harness) seed(t *testing.T, number string, vendorID uuid.UUID, qty int) (*models.Order, models.Assignment) {
	t.Helper()
	sku := "SKU-" + number
	order, err := h.orders.CreateOrder(context.Background(), orders.CreateOrderInput{
		OrderNumber: number,
		Items: []orders.ItemInput{{
			ProductName:  "Widget",
			SKU:          &sku,
			Quantity:     qty,
			PricePerUnit: decimal.RequireFromString("12.50"),
		}},
		VendorID:    &vendorID,
		ActorUserID: h.actor,
	})
	require.NoError(t, err)
	var a models.Assignment
	require.NoError(t, h.env.DB.Where("order_id = ?", order.ID).First(&a).Error)
	return order, a
}

func (h *harness) orderStatus(t *testing.T, id uuid.UUID) enums.OrderStatus {
	t.Helper()
	order, err := h.orders.GetOrderByID(context.Background(), id)
	require.NoError(t, err)
	return order.Status
}

func intPtr(v int) *int { return &v }

func TestNewServiceValidatesParams(t *testing.T) {
	h := newHarness(t)
	base := ServiceParams{
		Tx:       h.env.Client,
		Repo:     NewRepository(h.env.DB),
		Orders:   h.orders,
		Vendors:  h.env.Vendors,
		Audit:    h.env.Audit,
		Outbox:   h.env.Outbox,
		Logger:   h.env.Logger,
		Workflow: testWorkflow(),
	}
	_, err := NewService(base)
	require.NoError(t, err, "notifier, files and metrics are optional")

	missingOrders := base
	missingOrders.Orders = nil
	_, err = NewService(missingOrders)
	assert.Error(t, err)

	noSlots := base
	noSlots.Workflow.TxSlots = 0
	_, err = NewService(noSlots)
	assert.Error(t, err)
}

func TestConfirmFullEscalatesOrder(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	order, a := h.seed(t, "ORD-B", vendorID, 10)

	view, err := h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		AssignmentID: a.ID,
		VendorID:     vendorID,
		Status:       enums.AssignmentStatusVendorConfirmedFull,
		ActorUserID:  h.actor,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusVendorConfirmedFull, view.Status)
	require.NotNil(t, view.ConfirmedQuantity)
	assert.Equal(t, 10, *view.ConfirmedQuantity)
	assert.NotNil(t, view.VendorActionAt)
	assert.Equal(t, "ORD-B", view.OrderNumber)
	assert.Equal(t, "Widget", view.ProductName)

	assert.Equal(t, enums.OrderStatusProcessing, h.orderStatus(t, order.ID))
	assert.Equal(t, []enums.AuditAction{enums.AuditAssignmentConfirmed}, h.env.AuditActions(t, enums.AuditEntityAssignment, a.ID))
	assert.Len(t, h.env.OutboxEvents(t, enums.EventAssignmentStatusChanged), 1)
	assert.Len(t, h.env.OutboxEvents(t, enums.EventOrderStatusChanged), 1)

	confirmed := h.env.Notifier.OfType(enums.NotificationTypeAssignmentConfirmed)
	require.Len(t, confirmed, 1)
	assert.ElementsMatch(t, []enums.Role{enums.RoleAdmin, enums.RoleAccounts}, confirmed[0].Target.Roles)
	assert.Contains(t, confirmed[0].Payload.Message, "Acme")
	assert.Contains(t, confirmed[0].Payload.Message, "ORD-B")
}

func TestSecondDecisionIsAlreadyProcessedWhateverThePayload(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	_, a := h.seed(t, "ORD-C", vendorID, 4)
	ctx := context.Background()

	_, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{AssignmentID: a.ID, VendorID: vendorID, Status: enums.AssignmentStatusVendorConfirmedFull})
	require.NoError(t, err)

	cases := []struct {
		name   string
		status enums.AssignmentStatus
		qty    *int
	}{
		{"partial without quantity", enums.AssignmentStatusVendorConfirmedPartial, nil},
		{"partial zero", enums.AssignmentStatusVendorConfirmedPartial, intPtr(0)},
		{"partial over assigned", enums.AssignmentStatusVendorConfirmedPartial, intPtr(99)},
		{"partial valid", enums.AssignmentStatusVendorConfirmedPartial, intPtr(2)},
		{"full again", enums.AssignmentStatusVendorConfirmedFull, nil},
		{"declined", enums.AssignmentStatusVendorDeclined, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{
				AssignmentID:      a.ID,
				VendorID:          vendorID,
				Status:            tc.status,
				ConfirmedQuantity: tc.qty,
			})
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeAlreadyProcessed), "got %v", err)
		})
	}
	assert.Len(t, h.env.AuditActions(t, enums.AuditEntityAssignment, a.ID), 1)
}

func TestUnknownAssignmentIsNotFoundBeforeQuantityChecks(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)

	for name, qty := range map[string]*int{"missing": nil, "zero": intPtr(0)} {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
				AssignmentID:      uuid.New(),
				VendorID:          vendorID,
				Status:            enums.AssignmentStatusVendorConfirmedPartial,
				ConfirmedQuantity: qty,
			})
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
		})
	}
}

func TestConcurrentConfirmationsCommitOnce(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	order, a := h.seed(t, "ORD-RACE", vendorID, 6)

	const workers = 5
	var (
		wg        sync.WaitGroup
		succeeded int
		processed int
		mu        sync.Mutex
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
				AssignmentID: a.ID,
				VendorID:     vendorID,
				Status:       enums.AssignmentStatusVendorConfirmedFull,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.HasCode(err, pkgerrors.CodeAlreadyProcessed), pkgerrors.HasCode(err, pkgerrors.CodeConcurrency):
				processed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, processed)
	assert.Len(t, h.env.AuditActions(t, enums.AuditEntityAssignment, a.ID), 1)
	assert.Len(t, h.env.OutboxEvents(t, enums.EventOrderStatusChanged), 1)
	assert.Equal(t, enums.OrderStatusProcessing, h.orderStatus(t, order.ID))
}

func TestPartialConfirmationQuantities(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	_, a := h.seed(t, "ORD-P", vendorID, 10)
	ctx := context.Background()

	for name, qty := range map[string]*int{"missing": nil, "zero": intPtr(0), "over": intPtr(11)} {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{
				AssignmentID:      a.ID,
				VendorID:          vendorID,
				Status:            enums.AssignmentStatusVendorConfirmedPartial,
				ConfirmedQuantity: qty,
			})
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidQuantity), "got %v", err)
		})
	}

	remarks := "  only six in stock "
	view, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{
		AssignmentID:      a.ID,
		VendorID:          vendorID,
		Status:            enums.AssignmentStatusVendorConfirmedPartial,
		ConfirmedQuantity: intPtr(6),
		Remarks:           &remarks,
	})
	require.NoError(t, err)
	require.NotNil(t, view.ConfirmedQuantity)
	assert.Equal(t, 6, *view.ConfirmedQuantity)
	require.NotNil(t, view.VendorRemarks)
	assert.Equal(t, "only six in stock", *view.VendorRemarks)
	assert.Equal(t, []enums.AuditAction{enums.AuditAssignmentPartiallyConfirmed}, h.env.AuditActions(t, enums.AuditEntityAssignment, a.ID))
}

func TestDeclineLeavesOrderUntouched(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	order, a := h.seed(t, "ORD-D", vendorID, 3)

	view, err := h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		AssignmentID: a.ID,
		VendorID:     vendorID,
		Status:       enums.AssignmentStatusVendorDeclined,
	})
	require.NoError(t, err)
	assert.Nil(t, view.ConfirmedQuantity)
	assert.Equal(t, enums.OrderStatusReceived, h.orderStatus(t, order.ID))
	assert.Empty(t, h.env.OutboxEvents(t, enums.EventOrderStatusChanged))

	declined := h.env.Notifier.OfType(enums.NotificationTypeAssignmentDeclined)
	require.Len(t, declined, 1)
	assert.ElementsMatch(t, []enums.Role{enums.RoleAdmin, enums.RoleOperations}, declined[0].Target.Roles)
}

func TestUpdateStatusValidation(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	_, a := h.seed(t, "ORD-V", vendorID, 3)
	ctx := context.Background()

	_, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{AssignmentID: a.ID, VendorID: vendorID, Status: enums.AssignmentStatusInvoiced})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{AssignmentID: a.ID, VendorID: vendorID, Status: "SHIPPED"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestUpdateStatusScopedToVendor(t *testing.T) {
	h := newHarness(t)
	owner := h.env.Vendor(t, "Owner", true)
	other := h.env.Vendor(t, "Other", true)
	_, a := h.seed(t, "ORD-S", owner, 3)

	_, err := h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		AssignmentID: a.ID,
		VendorID:     other,
		Status:       enums.AssignmentStatusVendorConfirmedFull,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = h.svc.GetVendorAssignment(context.Background(), a.ID, other)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestConfirmOnCancelledOrderConflicts(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	order, a := h.seed(t, "ORD-X", vendorID, 3)
	_, err := h.orders.CancelOrder(context.Background(), order.ID, "customer withdrew", h.actor)
	require.NoError(t, err)

	_, err = h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		AssignmentID: a.ID,
		VendorID:     vendorID,
		Status:       enums.AssignmentStatusVendorConfirmedFull,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "got %v", err)
}

func TestUpdateStatusTimesOutWaitingForSlot(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	_, a := h.seed(t, "ORD-BUSY", vendorID, 3)

	impl := h.svc.(*service)
	require.NoError(t, impl.slots.Acquire(context.Background(), testWorkflow().TxSlots))
	defer impl.slots.Release(testWorkflow().TxSlots)

	_, err := h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		AssignmentID: a.ID,
		VendorID:     vendorID,
		Status:       enums.AssignmentStatusVendorConfirmedFull,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConcurrency), "got %v", err)

	var stored models.Assignment
	require.NoError(t, h.env.DB.First(&stored, "id = ?", a.ID).Error)
	assert.Equal(t, enums.AssignmentStatusPendingConfirmation, stored.Status)
}

func TestAttachInvoice(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	_, a := h.seed(t, "ORD-INV", vendorID, 5)
	ctx := context.Background()
	input := AttachInvoiceInput{AssignmentID: a.ID, VendorID: vendorID, FileName: "invoice 42.pdf", Data: pdfBytes}

	_, err := h.svc.AttachInvoice(ctx, input)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "pending assignments cannot be invoiced, got %v", err)
	assert.Empty(t, h.files.objects)

	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{AssignmentID: a.ID, VendorID: vendorID, Status: enums.AssignmentStatusVendorConfirmedFull})
	require.NoError(t, err)

	view, err := h.svc.AttachInvoice(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusInvoiced, view.Status)
	require.NotNil(t, view.InvoiceURL)
	require.Len(t, h.files.objects, 1)
	obj := h.files.objects[0]
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.Contains(t, obj.Path, "invoices/"+vendorID.String()+"/")
	assert.Contains(t, obj.Path, "invoice_42.pdf")
	assert.Equal(t, "https://files.test/"+obj.Path, *view.InvoiceURL)

	assert.Equal(t, []enums.AuditAction{enums.AuditAssignmentConfirmed, enums.AuditAssignmentInvoiced},
		h.env.AuditActions(t, enums.AuditEntityAssignment, a.ID))
	uploaded := h.env.Notifier.OfType(enums.NotificationTypeInvoiceUploaded)
	require.Len(t, uploaded, 1)
	assert.Equal(t, []enums.Role{enums.RoleAccounts}, uploaded[0].Target.Roles)

	_, err = h.svc.AttachInvoice(ctx, input)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeAlreadyProcessed), "got %v", err)
}

func TestAttachInvoiceRejectsContent(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	_, a := h.seed(t, "ORD-BAD", vendorID, 5)
	ctx := context.Background()
	_, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{AssignmentID: a.ID, VendorID: vendorID, Status: enums.AssignmentStatusVendorConfirmedFull})
	require.NoError(t, err)

	_, err = h.svc.AttachInvoice(ctx, AttachInvoiceInput{AssignmentID: a.ID, VendorID: vendorID, FileName: "invoice.pdf", Data: []byte("plain text pretending to be a pdf")})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnsupportedContent), "got %v", err)

	_, err = h.svc.AttachInvoice(ctx, AttachInvoiceInput{AssignmentID: a.ID, VendorID: vendorID, FileName: "invoice.pdf"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)

	h.files.err = errors.New("bucket unavailable")
	_, err = h.svc.AttachInvoice(ctx, AttachInvoiceInput{AssignmentID: a.ID, VendorID: vendorID, FileName: "invoice.pdf", Data: pdfBytes})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency), "got %v", err)

	var stored models.Assignment
	require.NoError(t, h.env.DB.First(&stored, "id = ?", a.ID).Error)
	assert.Equal(t, enums.AssignmentStatusVendorConfirmedFull, stored.Status)
	assert.Nil(t, stored.InvoiceURL)
}

func TestListVendorAssignments(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	other := h.env.Vendor(t, "Other", true)
	_, first := h.seed(t, "ORD-L1", vendorID, 1)
	h.seed(t, "ORD-L2", vendorID, 2)
	h.seed(t, "ORD-L3", vendorID, 3)
	h.seed(t, "ORD-OTHER", other, 1)
	ctx := context.Background()

	_, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{AssignmentID: first.ID, VendorID: vendorID, Status: enums.AssignmentStatusVendorDeclined})
	require.NoError(t, err)

	all, err := h.svc.ListVendorAssignments(ctx, vendorID, nil, pagination.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.Total)
	assert.Len(t, all.Items, 2)
	for _, v := range all.Items {
		assert.Equal(t, vendorID, v.VendorID)
		assert.NotEmpty(t, v.OrderNumber)
		assert.Equal(t, "12.50", v.PricePerUnit.StringFixed(2))
	}

	pending := enums.AssignmentStatusPendingConfirmation
	filtered, err := h.svc.ListVendorAssignments(ctx, vendorID, &pending, pagination.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, filtered.Total)

	bogus := enums.AssignmentStatus("LOST")
	_, err = h.svc.ListVendorAssignments(ctx, vendorID, &bogus, pagination.Page{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)

	view, err := h.svc.GetVendorAssignment(ctx, first.ID, vendorID)
	require.NoError(t, err)
	assert.Equal(t, "ORD-L1", view.OrderNumber)
	assert.Equal(t, enums.AssignmentStatusVendorDeclined, view.Status)
}

func TestStalePendingByVendor(t *testing.T) {
	h := newHarness(t)
	acme := h.env.Vendor(t, "Acme", true)
	beta := h.env.Vendor(t, "Beta", true)
	_, a1 := h.seed(t, "ORD-S1", acme, 1)
	_, a2 := h.seed(t, "ORD-S2", acme, 1)
	_, b1 := h.seed(t, "ORD-S3", beta, 1)
	h.seed(t, "ORD-S4", beta, 1)
	_, decided := h.seed(t, "ORD-S5", beta, 1)

	old := time.Now().UTC().Add(-72 * time.Hour)
	for _, id := range []uuid.UUID{a1.ID, a2.ID, b1.ID, decided.ID} {
		require.NoError(t, h.env.DB.Model(&models.Assignment{}).Where("id = ?", id).Update("assigned_at", old).Error)
	}
	_, err := h.svc.UpdateStatus(context.Background(), UpdateStatusInput{AssignmentID: decided.ID, VendorID: beta, Status: enums.AssignmentStatusVendorDeclined})
	require.NoError(t, err)

	rows, err := NewRepository(h.env.DB).StalePendingByVendor(context.Background(), time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	got := map[uuid.UUID]int64{}
	for _, row := range rows {
		got[row.VendorID] = row.Pending
	}
	assert.Equal(t, map[uuid.UUID]int64{acme: 2, beta: 1}, got)
}
