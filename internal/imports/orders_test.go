package imports

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/angelmondragon/vendorflow-backend/internal/orders"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

type fakeCreator struct {
	inputs []orders.CreateOrderInput
	fail   map[string]error
}

func (f *fakeCreator) CreateOrder(_ context.Context, input orders.CreateOrderInput) (*models.Order, error) {
	f.inputs = append(f.inputs, input)
	if err, ok := f.fail[input.OrderNumber]; ok {
		return nil, err
	}
	return &models.Order{ID: uuid.New(), OrderNumber: input.OrderNumber}, nil
}

func workbook(t *testing.T, sheet string, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if sheet != "Sheet1" {
		require.NoError(t, f.SetSheetName("Sheet1", sheet))
	}
	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, ref, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func newImporter(t *testing.T, creator *fakeCreator) *Importer {
	t.Helper()
	imp, err := NewImporter(creator, logger.New(logger.Options{ServiceName: "imports-test", Output: io.Discard}))
	require.NoError(t, err)
	return imp
}

var header = []any{"Order_Number", "product_name", "sku", "quantity", "price_per_unit", "vendor_id"}

func TestImportOrdersGroupsRowsByOrderNumber(t *testing.T) {
	vendorID := uuid.New()
	creator := &fakeCreator{fail: map[string]error{
		"ORD-DUP": pkgerrors.New(pkgerrors.CodeDuplicate, "order number already exists"),
	}}
	imp := newImporter(t, creator)
	buf := workbook(t, "Orders",
		header,
		[]any{"ORD-1", "Bolt", "B-1", 10, "0.25", vendorID.String()},
		[]any{"ORD-2", "Nut", "", 4, "1.10", ""},
		[]any{"ORD-1", "Washer", "W-9", 20, "0.05", vendorID.String()},
		[]any{},
		[]any{"ORD-DUP", "Gear", "G-1", 1, "9.99", ""},
	)

	result, err := imp.ImportOrders(context.Background(), buf, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "Orders", result.Sheet)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Failed)
	assert.Empty(t, result.RowErrors)

	require.Len(t, result.Orders, 3)
	first := result.Orders[0]
	assert.Equal(t, "ORD-1", first.OrderNumber)
	assert.Equal(t, StatusCreated, first.Status)
	assert.Equal(t, []int{2, 4}, first.Rows)
	assert.NotNil(t, first.OrderID)

	dup := result.Orders[2]
	assert.Equal(t, StatusFailed, dup.Status)
	assert.Equal(t, string(pkgerrors.CodeDuplicate), dup.ErrorCode)

	require.Len(t, creator.inputs, 3)
	in := creator.inputs[0]
	require.Len(t, in.Items, 2)
	assert.Equal(t, "Washer", in.Items[1].ProductName)
	assert.Equal(t, "0.05", in.Items[1].PricePerUnit.String())
	require.NotNil(t, in.VendorID)
	assert.Equal(t, vendorID, *in.VendorID)
	assert.Nil(t, creator.inputs[1].VendorID)
	assert.Nil(t, creator.inputs[1].Items[0].SKU)
}

func TestImportOrdersReportsRowErrors(t *testing.T) {
	creator := &fakeCreator{}
	imp := newImporter(t, creator)
	buf := workbook(t, "Sheet1",
		header,
		[]any{"ORD-A", "Bolt", "B-1", "ten", "0.25", ""},
		[]any{"ORD-A", "Nut", "N-1", 2, "1", ""},
		[]any{"", "Orphan", "O-1", 1, "1", ""},
		[]any{"ORD-B", "Gear", "G-1", 1, "-3", ""},
		[]any{"ORD-C", "Cog", "C-1", 1, "2", "not-a-uuid"},
		[]any{"ORD-D", "Pin", "P-1", 1, "2", uuid.NewString()},
		[]any{"ORD-D", "Pin", "P-2", 1, "2", uuid.NewString()},
		[]any{"ORD-E", "Spring", "S-1", 3, "0.5", ""},
	)

	result, err := imp.ImportOrders(context.Background(), buf, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", result.Sheet)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 4, result.Failed)

	rows := make([]int, 0, len(result.RowErrors))
	for _, re := range result.RowErrors {
		rows = append(rows, re.Row)
	}
	assert.Equal(t, []int{2, 4, 5, 6, 8}, rows)

	for _, o := range result.Orders[:4] {
		assert.Equal(t, StatusFailed, o.Status, o.OrderNumber)
		assert.Equal(t, string(pkgerrors.CodeValidation), o.ErrorCode)
	}
	require.Len(t, creator.inputs, 1, "orders with bad rows are never submitted")
	assert.Equal(t, "ORD-E", creator.inputs[0].OrderNumber)
}

func TestImportOrdersRejectsBadWorkbooks(t *testing.T) {
	imp := newImporter(t, &fakeCreator{})

	_, err := imp.ImportOrders(context.Background(), bytes.NewBufferString("not a zip"), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)

	buf := workbook(t, "Orders", []any{"order_number", "product_name"})
	_, err = imp.ImportOrders(context.Background(), buf, uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
	assert.Contains(t, err.Error(), "quantity")
}

func TestNewImporterRequiresDependencies(t *testing.T) {
	_, err := NewImporter(nil, logger.New(logger.Options{Output: io.Discard}))
	assert.Error(t, err)
	_, err = NewImporter(&fakeCreator{}, nil)
	assert.Error(t, err)
}
