package dispatches

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/internal/orders"
	"github.com/angelmondragon/vendorflow-backend/internal/workflowtest"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
	"github.com/angelmondragon/vendorflow-backend/pkg/storage"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type memoryUploader struct {
	mu      sync.Mutex
	objects []storage.Object
}

func (u *memoryUploader) Upload(_ context.Context, obj storage.Object) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects = append(u.objects, obj)
	return "mem://" + obj.Path, nil
}

type harness struct {
	env    *workflowtest.Env
	orders orders.Service
	svc    Service
	files  *memoryUploader
	actor  uuid.UUID
	day    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	env := workflowtest.New(t)
	orderSvc, err := orders.NewService(env.Client, orders.NewRepository(env.DB), env.Vendors, env.Audit, env.Outbox, nil, nil, env.Logger)
	require.NoError(t, err)
	files := &memoryUploader{}
	svc, err := NewService(ServiceParams{
		Tx:             env.Client,
		Repo:           NewRepository(env.DB),
		Vendors:        env.Vendors,
		Audit:          env.Audit,
		Outbox:         env.Outbox,
		Notifier:       env.Notifier,
		Files:          files,
		Logger:         env.Logger,
		MaxUploadBytes: 1 << 20,
	})
	require.NoError(t, err)
	return &harness{
		env:    env,
		orders: orderSvc,
		svc:    svc,
		files:  files,
		actor:  uuid.New(),
		day:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

// confirmed creates an order line for vendorID whose assignment the vendor
// has confirmed for qty units.
func (h *harness) confirmed(t *testing.T, number string, vendorID uuid.UUID, assigned, qty int) models.Assignment {
	t.Helper()
	_, err := h.orders.CreateOrder(context.Background(), orders.CreateOrderInput{
		OrderNumber: number,
		Items:       []orders.ItemInput{{ProductName: "Crate", Quantity: assigned, PricePerUnit: decimal.NewFromInt(3)}},
		VendorID:    &vendorID,
		ActorUserID: h.actor,
	})
	require.NoError(t, err)
	var a models.Assignment
	require.NoError(t, h.env.DB.
		Where("order_id = (SELECT id FROM orders WHERE order_number = ?)", number).First(&a).Error)
	status := enums.AssignmentStatusVendorConfirmedFull
	if qty < assigned {
		status = enums.AssignmentStatusVendorConfirmedPartial
	}
	require.NoError(t, h.env.DB.Model(&models.Assignment{}).Where("id = ?", a.ID).
		Updates(map[string]any{"status": status, "confirmed_quantity": qty}).Error)
	a.Status = status
	a.ConfirmedQuantity = &qty
	return a
}

func (h *harness) input(vendorID uuid.UUID, items ...ItemInput) CreateDispatchInput {
	return CreateDispatchInput{
		VendorID:         vendorID,
		Items:            items,
		AWBNumber:        " AWB-100 ",
		LogisticsPartner: "BlueDart",
		DispatchDate:     h.day,
		ActorUserID:      h.actor,
	}
}

func (h *harness) assignmentStatus(t *testing.T, id uuid.UUID) enums.AssignmentStatus {
	t.Helper()
	var a models.Assignment
	require.NoError(t, h.env.DB.First(&a, "id = ?", id).Error)
	return a.Status
}

func TestCreateDispatchCompletesAssignment(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	a := h.confirmed(t, "ORD-1", vendorID, 10, 10)

	dispatch, err := h.svc.CreateDispatch(context.Background(), h.input(vendorID, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 10}))
	require.NoError(t, err)
	assert.Equal(t, enums.DispatchStatusDispatched, dispatch.Status)
	assert.Equal(t, "AWB-100", dispatch.AWBNumber)
	require.Len(t, dispatch.Items, 1)
	assert.Equal(t, enums.AssignmentStatusDispatched, h.assignmentStatus(t, a.ID))

	assert.Equal(t, []enums.AuditAction{enums.AuditDispatchCreated}, h.env.AuditActions(t, enums.AuditEntityDispatch, dispatch.ID))
	assert.Len(t, h.env.OutboxEvents(t, enums.EventDispatchCreated), 1)
	created := h.env.Notifier.OfType(enums.NotificationTypeDispatchCreated)
	require.Len(t, created, 1)
	assert.Equal(t, []enums.Role{enums.RoleOperations}, created[0].Target.Roles)
	assert.Contains(t, created[0].Payload.Message, "Acme")
}

func TestCreateDispatchTracksPartialShipments(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	a := h.confirmed(t, "ORD-2", vendorID, 10, 6)
	ctx := context.Background()

	first, err := h.svc.CreateDispatch(ctx, h.input(vendorID, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 4}))
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusVendorConfirmedPartial, h.assignmentStatus(t, a.ID))

	_, err = h.svc.CreateDispatch(ctx, h.input(vendorID, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 3}))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidQuantity), "got %v", err)

	// A failed dispatch no longer counts against the confirmed quantity.
	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{DispatchID: first.ID, Status: enums.DispatchStatusFailed, ActorUserID: h.actor})
	require.NoError(t, err)
	_, err = h.svc.CreateDispatch(ctx, h.input(vendorID, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 6}))
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusDispatched, h.assignmentStatus(t, a.ID))
}

func TestFailedDispatchReopensShippedAssignments(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	ctx := context.Background()

	full := h.confirmed(t, "ORD-RF", vendorID, 5, 5)
	partial := h.confirmed(t, "ORD-RP", vendorID, 10, 4)
	invoiced := h.confirmed(t, "ORD-RI", vendorID, 3, 3)
	require.NoError(t, h.env.DB.Model(&models.Assignment{}).Where("id = ?", invoiced.ID).
		Updates(map[string]any{"status": enums.AssignmentStatusInvoiced, "invoice_url": "mem://invoices/ri.pdf"}).Error)

	dispatch, err := h.svc.CreateDispatch(ctx, h.input(vendorID,
		ItemInput{AssignmentID: full.ID, DispatchedQuantity: 5},
		ItemInput{AssignmentID: partial.ID, DispatchedQuantity: 4},
		ItemInput{AssignmentID: invoiced.ID, DispatchedQuantity: 3},
	))
	require.NoError(t, err)
	for _, id := range []uuid.UUID{full.ID, partial.ID, invoiced.ID} {
		require.Equal(t, enums.AssignmentStatusDispatched, h.assignmentStatus(t, id))
	}

	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{DispatchID: dispatch.ID, Status: enums.DispatchStatusFailed, ActorUserID: h.actor})
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusVendorConfirmedFull, h.assignmentStatus(t, full.ID))
	assert.Equal(t, enums.AssignmentStatusVendorConfirmedPartial, h.assignmentStatus(t, partial.ID))
	assert.Equal(t, enums.AssignmentStatusInvoiced, h.assignmentStatus(t, invoiced.ID))
	assert.Equal(t, []enums.AuditAction{enums.AuditAssignmentReopened}, h.env.AuditActions(t, enums.AuditEntityAssignment, full.ID))

	// The goods can be shipped again in full.
	again, err := h.svc.CreateDispatch(ctx, h.input(vendorID,
		ItemInput{AssignmentID: full.ID, DispatchedQuantity: 5},
		ItemInput{AssignmentID: partial.ID, DispatchedQuantity: 4},
		ItemInput{AssignmentID: invoiced.ID, DispatchedQuantity: 3},
	))
	require.NoError(t, err)
	assert.Equal(t, enums.DispatchStatusDispatched, again.Status)
	for _, id := range []uuid.UUID{full.ID, partial.ID, invoiced.ID} {
		assert.Equal(t, enums.AssignmentStatusDispatched, h.assignmentStatus(t, id))
	}
}

func TestFailedSplitShipmentReopensOnlyTheShortfall(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	ctx := context.Background()
	a := h.confirmed(t, "ORD-RS", vendorID, 6, 6)

	first, err := h.svc.CreateDispatch(ctx, h.input(vendorID, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 2}))
	require.NoError(t, err)
	_, err = h.svc.CreateDispatch(ctx, h.input(vendorID, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 4}))
	require.NoError(t, err)
	require.Equal(t, enums.AssignmentStatusDispatched, h.assignmentStatus(t, a.ID))

	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{DispatchID: first.ID, Status: enums.DispatchStatusFailed, ActorUserID: h.actor})
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusVendorConfirmedFull, h.assignmentStatus(t, a.ID))

	_, err = h.svc.CreateDispatch(ctx, h.input(vendorID, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 3}))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidQuantity), "got %v", err)
	_, err = h.svc.CreateDispatch(ctx, h.input(vendorID, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 2}))
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusDispatched, h.assignmentStatus(t, a.ID))
}

func TestFailedFullDispatchDoesNotFulfillOrder(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	ctx := context.Background()
	a := h.confirmed(t, "ORD-FF", vendorID, 5, 5)
	require.NoError(t, h.env.DB.Model(&models.Order{}).Where("id = ?", a.OrderID).Update("status", enums.OrderStatusProcessing).Error)

	recompute := func() enums.OrderStatus {
		var status enums.OrderStatus
		require.NoError(t, h.env.Client.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			status, err = h.orders.RecomputeFulfillment(ctx, tx, a.OrderID, h.actor)
			return err
		}))
		return status
	}

	dispatch, err := h.svc.CreateDispatch(ctx, h.input(vendorID, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 5}))
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{DispatchID: dispatch.ID, Status: enums.DispatchStatusFailed, ActorUserID: h.actor})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPartiallyFulfilled, recompute())

	_, err = h.svc.CreateDispatch(ctx, h.input(vendorID, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 5}))
	require.NoError(t, err)
	// Shipped again but not yet received.
	assert.Equal(t, enums.OrderStatusPartiallyFulfilled, recompute())
}

func TestVendorCannotMarkDelivered(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	a := h.confirmed(t, "ORD-VD", vendorID, 5, 5)
	ctx := context.Background()
	dispatch, err := h.svc.CreateDispatch(ctx, h.input(vendorID, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 5}))
	require.NoError(t, err)

	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{DispatchID: dispatch.ID, VendorID: &vendorID, Status: enums.DispatchStatusDelivered, ActorUserID: h.actor})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden), "got %v", err)

	stored, err := h.svc.GetDispatch(ctx, dispatch.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.DispatchStatusDispatched, stored.Status)

	// The vendor still reports carrier progress and failures.
	moved, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{DispatchID: dispatch.ID, VendorID: &vendorID, Status: enums.DispatchStatusFailed, ActorUserID: h.actor})
	require.NoError(t, err)
	assert.Equal(t, enums.DispatchStatusFailed, moved.Status)
}

func TestCreateDispatchValidation(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	a := h.confirmed(t, "ORD-3", vendorID, 5, 5)
	ctx := context.Background()
	eta := h.day.Add(-time.Hour)

	cases := map[string]struct {
		mutate func(*CreateDispatchInput)
		code   pkgerrors.Code
	}{
		"no items":        {func(in *CreateDispatchInput) { in.Items = nil }, pkgerrors.CodeValidation},
		"missing awb":     {func(in *CreateDispatchInput) { in.AWBNumber = "  " }, pkgerrors.CodeValidation},
		"missing partner": {func(in *CreateDispatchInput) { in.LogisticsPartner = "" }, pkgerrors.CodeValidation},
		"eta before date": {func(in *CreateDispatchInput) { in.EstimatedDeliveryDate = &eta }, pkgerrors.CodeValidation},
		"zero quantity":   {func(in *CreateDispatchInput) { in.Items[0].DispatchedQuantity = 0 }, pkgerrors.CodeInvalidQuantity},
		"duplicate assignment": {func(in *CreateDispatchInput) {
			in.Items = append(in.Items, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 1})
		}, pkgerrors.CodeValidation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			input := h.input(vendorID, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 1})
			tc.mutate(&input)
			_, err := h.svc.CreateDispatch(ctx, input)
			assert.True(t, pkgerrors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func TestCreateDispatchRejectsForeignAndUnconfirmed(t *testing.T) {
	h := newHarness(t)
	owner := h.env.Vendor(t, "Owner", true)
	other := h.env.Vendor(t, "Other", true)
	a := h.confirmed(t, "ORD-4", owner, 5, 5)
	ctx := context.Background()

	_, err := h.svc.CreateDispatch(ctx, h.input(other, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 1}))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)

	require.NoError(t, h.env.DB.Model(&models.Assignment{}).Where("id = ?", a.ID).
		Update("status", enums.AssignmentStatusPendingConfirmation).Error)
	_, err = h.svc.CreateDispatch(ctx, h.input(owner, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 1}))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	var count int64
	require.NoError(t, h.env.DB.Model(&models.Dispatch{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdateStatusIsMonotonic(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	a := h.confirmed(t, "ORD-5", vendorID, 5, 5)
	ctx := context.Background()
	dispatch, err := h.svc.CreateDispatch(ctx, h.input(vendorID, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 5}))
	require.NoError(t, err)

	moved, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{DispatchID: dispatch.ID, VendorID: &vendorID, Status: enums.DispatchStatusInTransit})
	require.NoError(t, err)
	assert.Equal(t, enums.DispatchStatusInTransit, moved.Status)

	for _, back := range []enums.DispatchStatus{enums.DispatchStatusDispatched, enums.DispatchStatusPending, enums.DispatchStatusInTransit} {
		_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{DispatchID: dispatch.ID, Status: back})
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "%s: got %v", back, err)
	}

	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{DispatchID: dispatch.ID, Status: "LOST"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)

	stranger := uuid.New()
	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{DispatchID: dispatch.ID, VendorID: &stranger, Status: enums.DispatchStatusDelivered})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)

	assert.Equal(t, []enums.AuditAction{enums.AuditDispatchCreated, enums.AuditDispatchStatusUpdated},
		h.env.AuditActions(t, enums.AuditEntityDispatch, dispatch.ID))
	assert.Len(t, h.env.OutboxEvents(t, enums.EventDispatchStatusChanged), 1)
}

func TestUploadProof(t *testing.T) {
	h := newHarness(t)
	vendorID := h.env.Vendor(t, "Acme", true)
	a := h.confirmed(t, "ORD-6", vendorID, 5, 5)
	ctx := context.Background()
	dispatch, err := h.svc.CreateDispatch(ctx, h.input(vendorID, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 5}))
	require.NoError(t, err)

	attachment, err := h.svc.UploadProof(ctx, UploadProofInput{
		DispatchID:  dispatch.ID,
		VendorID:    &vendorID,
		ActorUserID: h.actor,
		FileName:    "../waybill photo.png",
		Data:        pngBytes,
	})
	require.NoError(t, err)
	assert.Equal(t, "image/png", attachment.ContentType)
	assert.Equal(t, "waybill_photo.png", attachment.FileName)
	assert.EqualValues(t, len(pngBytes), attachment.SizeBytes)
	require.Len(t, h.files.objects, 1)
	assert.Contains(t, h.files.objects[0].Path, "dispatch-proofs/"+vendorID.String()+"/")

	stored, err := h.svc.GetDispatch(ctx, dispatch.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.DispatchStatusDispatched, stored.Status)
	require.Len(t, stored.Attachments, 1)
	assert.Equal(t, attachment.FileURL, stored.Attachments[0].FileURL)

	_, err = h.svc.UploadProof(ctx, UploadProofInput{DispatchID: dispatch.ID, FileName: "notes.txt", Data: []byte("hello there")})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnsupportedContent), "got %v", err)

	stranger := uuid.New()
	_, err = h.svc.UploadProof(ctx, UploadProofInput{DispatchID: dispatch.ID, VendorID: &stranger, FileName: "a.png", Data: pngBytes})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "got %v", err)
	assert.Len(t, h.files.objects, 1)
}

func TestListDispatches(t *testing.T) {
	h := newHarness(t)
	acme := h.env.Vendor(t, "Acme", true)
	other := h.env.Vendor(t, "Other", true)
	ctx := context.Background()
	for i, number := range []string{"ORD-L1", "ORD-L2"} {
		a := h.confirmed(t, number, acme, 2, 2)
		input := h.input(acme, ItemInput{AssignmentID: a.ID, DispatchedQuantity: 2})
		input.DispatchDate = h.day.AddDate(0, 0, i)
		_, err := h.svc.CreateDispatch(ctx, input)
		require.NoError(t, err)
	}
	b := h.confirmed(t, "ORD-L3", other, 1, 1)
	_, err := h.svc.CreateDispatch(ctx, h.input(other, ItemInput{AssignmentID: b.ID, DispatchedQuantity: 1}))
	require.NoError(t, err)

	mine, err := h.svc.ListDispatches(ctx, ListFilters{VendorID: &acme}, pagination.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 2, mine.Total)
	assert.True(t, mine.Items[0].DispatchDate.After(mine.Items[1].DispatchDate), "newest first")

	all, err := h.svc.ListDispatches(ctx, ListFilters{}, pagination.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.Total)

	failed := enums.DispatchStatusFailed
	none, err := h.svc.ListDispatches(ctx, ListFilters{Status: &failed}, pagination.Page{})
	require.NoError(t, err)
	assert.Zero(t, none.Total)
	assert.NotNil(t, none.Items)
}
