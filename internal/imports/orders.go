// Package imports bulk-loads orders from spreadsheets.
package imports

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/angelmondragon/vendorflow-backend/internal/orders"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

const (
	preferredSheet = "Orders"
	maxDataRows    = 5000

	StatusCreated = "created"
	StatusFailed  = "failed"
)

var requiredColumns = []string{"order_number", "product_name", "quantity", "price_per_unit"}

type orderCreator interface {
	CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error)
}

// RowError reports a spreadsheet row that could not be parsed. Row numbers
// are 1-based and include the header row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// OrderResult is the outcome for one order number found in the sheet.
type OrderResult struct {
	OrderNumber string     `json:"orderNumber"`
	Status      string     `json:"status"`
	OrderID     *uuid.UUID `json:"orderId,omitempty"`
	ErrorCode   string     `json:"errorCode,omitempty"`
	Error       string     `json:"error,omitempty"`
	Rows        []int      `json:"rows"`
}

// Result summarizes an import.
type Result struct {
	Sheet     string        `json:"sheet"`
	Created   int           `json:"created"`
	Failed    int           `json:"failed"`
	Orders    []OrderResult `json:"orders"`
	RowErrors []RowError    `json:"rowErrors"`
}

// Importer turns spreadsheet rows into orders through the order service.
type Importer struct {
	orders orderCreator
	logg   *logger.Logger
}

// NewImporter wires an importer around the order service.
func NewImporter(creator orderCreator, logg *logger.Logger) (*Importer, error) {
	if creator == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Importer{orders: creator, logg: logg}, nil
}

type group struct {
	number   string
	rows     []int
	items    []orders.ItemInput
	vendorID *uuid.UUID
	problem  string
}

// ImportOrders reads the Orders sheet (or the first sheet) and creates one
// order per distinct order_number. Each order is created in its own
// transaction, so a failure never affects the other orders of the file.
func (i *Importer) ImportOrders(ctx context.Context, r io.Reader, actorUserID uuid.UUID) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is not a readable xlsx workbook")
	}
	defer func() { _ = f.Close() }()

	sheet := pickSheet(f)
	if sheet == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read sheet")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sheet is empty")
	}
	if len(rows)-1 > maxDataRows {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("sheet has more than %d rows", maxDataRows))
	}
	cols, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	result := &Result{Sheet: sheet, Orders: []OrderResult{}, RowErrors: []RowError{}}
	groups, order := i.groupRows(rows[1:], cols, result)

	for _, number := range order {
		g := groups[number]
		out := OrderResult{OrderNumber: number, Rows: g.rows}
		if g.problem != "" {
			out.Status = StatusFailed
			out.ErrorCode = string(pkgerrors.CodeValidation)
			out.Error = g.problem
			result.Failed++
			result.Orders = append(result.Orders, out)
			continue
		}
		created, err := i.orders.CreateOrder(ctx, orders.CreateOrderInput{
			OrderNumber: number,
			Items:       g.items,
			VendorID:    g.vendorID,
			ActorUserID: actorUserID,
		})
		if err != nil {
			out.Status = StatusFailed
			out.ErrorCode = string(pkgerrors.CodeInternal)
			out.Error = err.Error()
			if typed := pkgerrors.As(err); typed != nil {
				out.ErrorCode = string(typed.Code())
				out.Error = typed.Message()
			}
			result.Failed++
		} else {
			out.Status = StatusCreated
			out.OrderID = &created.ID
			result.Created++
		}
		result.Orders = append(result.Orders, out)
	}

	i.logg.Info(i.logg.WithFields(ctx, map[string]any{
		"sheet":      sheet,
		"created":    result.Created,
		"failed":     result.Failed,
		"row_errors": len(result.RowErrors),
	}), "order import finished")
	return result, nil
}

// groupRows parses data rows and groups them by order number, preserving the
// order in which order numbers first appear.
func (i *Importer) groupRows(rows [][]string, cols map[string]int, result *Result) (map[string]*group, []string) {
	groups := make(map[string]*group)
	var order []string
	for idx, row := range rows {
		rowNo := idx + 2
		if blank(row) {
			continue
		}
		number := cell(row, cols, "order_number")
		if number == "" {
			result.RowErrors = append(result.RowErrors, RowError{Row: rowNo, Message: "order_number is required"})
			continue
		}
		g, ok := groups[number]
		if !ok {
			g = &group{number: number}
			groups[number] = g
			order = append(order, number)
		}
		g.rows = append(g.rows, rowNo)

		item, vendorID, err := parseRow(row, cols)
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{Row: rowNo, Message: err.Error()})
			if g.problem == "" {
				g.problem = fmt.Sprintf("row %d: %s", rowNo, err.Error())
			}
			continue
		}
		switch {
		case len(g.items) == 0:
			g.vendorID = vendorID
		case !sameVendor(g.vendorID, vendorID):
			msg := "rows of one order must name the same vendor_id"
			result.RowErrors = append(result.RowErrors, RowError{Row: rowNo, Message: msg})
			if g.problem == "" {
				g.problem = fmt.Sprintf("row %d: %s", rowNo, msg)
			}
			continue
		}
		g.items = append(g.items, item)
	}
	return groups, order
}

func parseRow(row []string, cols map[string]int) (orders.ItemInput, *uuid.UUID, error) {
	var item orders.ItemInput
	item.ProductName = cell(row, cols, "product_name")
	if item.ProductName == "" {
		return item, nil, fmt.Errorf("product_name is required")
	}
	if sku := cell(row, cols, "sku"); sku != "" {
		item.SKU = &sku
	}

	qty, err := strconv.Atoi(cell(row, cols, "quantity"))
	if err != nil || qty <= 0 {
		return item, nil, fmt.Errorf("quantity must be a positive whole number")
	}
	item.Quantity = qty

	price, err := decimal.NewFromString(cell(row, cols, "price_per_unit"))
	if err != nil || !price.IsPositive() {
		return item, nil, fmt.Errorf("price_per_unit must be a positive number")
	}
	item.PricePerUnit = price

	var vendorID *uuid.UUID
	if raw := cell(row, cols, "vendor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return item, nil, fmt.Errorf("vendor_id is not a valid uuid")
		}
		vendorID = &id
	}
	return item, vendorID, nil
}

func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for idx, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := cols[key]; !dup {
			cols[key] = idx
		}
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing required columns: "+strings.Join(missing, ", ")).
			WithDetails(map[string]any{"missing": missing})
	}
	return cols, nil
}

func pickSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	for _, name := range sheets {
		if strings.EqualFold(name, preferredSheet) {
			return name
		}
	}
	if len(sheets) == 0 {
		return ""
	}
	return sheets[0]
}

func cell(row []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func sameVendor(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
