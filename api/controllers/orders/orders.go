package orders

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorflow-backend/api/controllers/vendorcontext"
	"github.com/angelmondragon/vendorflow-backend/api/responses"
	"github.com/angelmondragon/vendorflow-backend/api/validators"
	"github.com/angelmondragon/vendorflow-backend/internal/audit"
	"github.com/angelmondragon/vendorflow-backend/internal/imports"
	internalorders "github.com/angelmondragon/vendorflow-backend/internal/orders"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

const maxNotesLength = 2000

type orderImporter interface {
	ImportOrders(ctx context.Context, r io.Reader, actorUserID uuid.UUID) (*imports.Result, error)
}

type createOrderRequest struct {
	OrderNumber string                     `json:"orderNumber" validate:"required,max=64"`
	Items       []internalorders.ItemInput `json:"items" validate:"required,min=1,dive"`
	VendorID    *uuid.UUID                 `json:"vendorId,omitempty"`
	Notes       *string                    `json:"notes,omitempty"`
}

type updateOrderRequest struct {
	Items    []internalorders.ItemInput `json:"items" validate:"required,min=1,dive"`
	VendorID *uuid.UUID                 `json:"vendorId,omitempty"`
	Notes    *string                    `json:"notes,omitempty"`
}

type assignVendorRequest struct {
	VendorID uuid.UUID `json:"vendorId"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// Create registers a new order and, with a vendor, its pending assignments.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := vendorcontext.Caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), internalorders.CreateOrderInput{
			OrderNumber: validators.SanitizeLine(req.OrderNumber, 64),
			Items:       req.Items,
			VendorID:    req.VendorID,
			Notes:       sanitizeNotes(req.Notes),
			ActorUserID: caller.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// List returns an offset page of orders matching the query filters.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := buildListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListOrders(r.Context(), filters, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Get returns one order with its items and assignments.
func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrderByID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Update replaces the lines and vendor of an order no vendor has acted on.
func Update(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := vendorcontext.Caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateOrder(r.Context(), internalorders.UpdateOrderInput{
			OrderID:     orderID,
			Items:       req.Items,
			VendorID:    req.VendorID,
			Notes:       sanitizeNotes(req.Notes),
			ActorUserID: caller.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func Delete(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := vendorcontext.Caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteOrder(r.Context(), orderID, caller.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// AssignVendor hands every line of the order to the requested vendor.
func AssignVendor(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := vendorcontext.Caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req assignVendorRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.VendorID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "vendorId is required"))
			return
		}

		order, err := svc.AssignVendor(r.Context(), internalorders.AssignVendorInput{
			OrderID:     orderID,
			VendorID:    req.VendorID,
			ActorUserID: caller.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := vendorcontext.Caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CancelOrder(r.Context(), orderID, validators.SanitizeString(req.Reason, 500), caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func Close(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := vendorcontext.Caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.CloseOrder(r.Context(), orderID, caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AuditTrail lists the ledger entries recorded against an order.
func AuditTrail(svc internalorders.Service, ledger audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := svc.GetOrderByID(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := ledger.ListByEntity(r.Context(), enums.AuditEntityOrder, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

// Import creates orders from an uploaded xlsx workbook.
func Import(importer orderImporter, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := vendorcontext.Caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		upload, err := validators.ReadUpload(w, r, "file", maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !strings.HasSuffix(strings.ToLower(upload.FileName), ".xlsx") {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnsupportedContent, "only .xlsx workbooks are supported"))
			return
		}

		result, err := importer.ImportOrders(r.Context(), bytes.NewReader(upload.Data), caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if result.Created > 0 {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

func buildListFilters(r *http.Request) (internalorders.ListFilters, error) {
	var filters internalorders.ListFilters
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(strings.ToUpper(raw))
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		filters.Status = &status
	}
	vendorID, err := validators.ParseQueryUUID(r, "vendorId")
	if err != nil {
		return filters, err
	}
	filters.VendorID = vendorID
	filters.Search = validators.SanitizeLine(r.URL.Query().Get("search"), 100)
	if filters.CreatedFrom, err = validators.ParseQueryTime(r, "createdFrom"); err != nil {
		return filters, err
	}
	if filters.CreatedTo, err = validators.ParseQueryTime(r, "createdTo"); err != nil {
		return filters, err
	}
	return filters, nil
}

func sanitizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	cleaned := validators.SanitizeString(*notes, maxNotesLength)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
