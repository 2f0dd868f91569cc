package dispatches

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/vendorflow-backend/api/controllers/vendorcontext"
	"github.com/angelmondragon/vendorflow-backend/api/responses"
	"github.com/angelmondragon/vendorflow-backend/api/validators"
	internaldispatches "github.com/angelmondragon/vendorflow-backend/internal/dispatches"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

type createDispatchRequest struct {
	Items                 []internaldispatches.ItemInput `json:"items" validate:"required,min=1"`
	AWBNumber             string                         `json:"awbNumber" validate:"required,max=64"`
	LogisticsPartner      string                         `json:"logisticsPartner" validate:"required,max=128"`
	DispatchDate          time.Time                      `json:"dispatchDate"`
	EstimatedDeliveryDate *time.Time                     `json:"estimatedDeliveryDate,omitempty"`
	Remarks               *string                        `json:"remarks,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Create hands confirmed assignments of the calling vendor to a carrier.
func Create(svc internaldispatches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, caller, err := vendorcontext.ResolveVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createDispatchRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var remarks *string
		if req.Remarks != nil {
			cleaned := validators.SanitizeString(*req.Remarks, 1000)
			remarks = &cleaned
		}

		dispatch, err := svc.CreateDispatch(r.Context(), internaldispatches.CreateDispatchInput{
			VendorID:              vendorID,
			Items:                 req.Items,
			AWBNumber:             req.AWBNumber,
			LogisticsPartner:      req.LogisticsPartner,
			DispatchDate:          req.DispatchDate,
			EstimatedDeliveryDate: req.EstimatedDeliveryDate,
			Remarks:               remarks,
			ActorUserID:           caller.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dispatch)
	}
}

// List pages dispatches. Vendors only ever see their own; staff may filter
// by ?vendorId.
func List(svc internaldispatches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := vendorcontext.Scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := internaldispatches.ListFilters{VendorID: scope}
		if scope == nil {
			if filters.VendorID, err = validators.ParseQueryUUID(r, "vendorId"); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseDispatchStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filters.Status = &status
		}

		result, err := svc.ListDispatches(r.Context(), filters, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func Get(svc internaldispatches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := vendorcontext.Scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dispatchID, err := validators.ParsePathUUID(r, "dispatchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dispatch, err := svc.GetDispatch(r.Context(), dispatchID, scope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispatch)
	}
}

// UploadProof attaches a proof-of-dispatch document.
func UploadProof(svc internaldispatches.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, caller, err := vendorcontext.Scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dispatchID, err := validators.ParsePathUUID(r, "dispatchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		upload, err := validators.ReadUpload(w, r, "file", maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attachment, err := svc.UploadProof(r.Context(), internaldispatches.UploadProofInput{
			DispatchID:  dispatchID,
			VendorID:    scope,
			ActorUserID: caller.UserID,
			FileName:    upload.FileName,
			Data:        upload.Data,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, attachment)
	}
}

// UpdateStatus moves a dispatch forward through the carrier lifecycle.
func UpdateStatus(svc internaldispatches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, caller, err := vendorcontext.Scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dispatchID, err := validators.ParsePathUUID(r, "dispatchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseDispatchStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		dispatch, err := svc.UpdateStatus(r.Context(), internaldispatches.UpdateStatusInput{
			DispatchID:  dispatchID,
			VendorID:    scope,
			Status:      status,
			ActorUserID: caller.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispatch)
	}
}
