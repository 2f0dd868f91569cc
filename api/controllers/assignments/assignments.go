package assignments

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/vendorflow-backend/api/controllers/vendorcontext"
	"github.com/angelmondragon/vendorflow-backend/api/responses"
	"github.com/angelmondragon/vendorflow-backend/api/validators"
	internalassignments "github.com/angelmondragon/vendorflow-backend/internal/assignments"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

type updateStatusRequest struct {
	Status            string  `json:"status" validate:"required"`
	ConfirmedQuantity *int    `json:"confirmedQuantity,omitempty"`
	Remarks           *string `json:"remarks,omitempty"`
}

// List returns the calling vendor's assignments.
func List(svc internalassignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, _, err := vendorcontext.ResolveVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.AssignmentStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseAssignmentStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}

		result, err := svc.ListVendorAssignments(r.Context(), vendorID, status, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// UpdateStatus records the vendor's confirm, partial or decline decision.
func UpdateStatus(svc internalassignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, caller, err := vendorcontext.ResolveVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignmentID, err := validators.ParsePathUUID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseAssignmentStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		var remarks *string
		if req.Remarks != nil {
			cleaned := validators.SanitizeString(*req.Remarks, 1000)
			remarks = &cleaned
		}

		updated, err := svc.UpdateStatus(r.Context(), internalassignments.UpdateStatusInput{
			AssignmentID:      assignmentID,
			VendorID:          vendorID,
			Status:            status,
			ConfirmedQuantity: req.ConfirmedQuantity,
			Remarks:           remarks,
			ActorUserID:       caller.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// AttachInvoice uploads the vendor invoice for a confirmed assignment.
func AttachInvoice(svc internalassignments.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, caller, err := vendorcontext.ResolveVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignmentID, err := validators.ParsePathUUID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		upload, err := validators.ReadUpload(w, r, "file", maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.AttachInvoice(r.Context(), internalassignments.AttachInvoiceInput{
			AssignmentID: assignmentID,
			VendorID:     vendorID,
			ActorUserID:  caller.UserID,
			FileName:     upload.FileName,
			Data:         upload.Data,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}
