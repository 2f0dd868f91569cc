package grn

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/vendorflow-backend/api/controllers/vendorcontext"
	"github.com/angelmondragon/vendorflow-backend/api/responses"
	"github.com/angelmondragon/vendorflow-backend/api/validators"
	internalgrn "github.com/angelmondragon/vendorflow-backend/internal/grn"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

type recordRequest struct {
	Items           []internalgrn.ItemInput `json:"items" validate:"required,min=1"`
	OperatorRemarks *string                 `json:"operatorRemarks,omitempty"`
}

type resolveTicketRequest struct {
	Resolution string `json:"resolution" validate:"required,max=2000"`
}

// Record verifies a delivered dispatch against the warehouse count.
func Record(svc internalgrn.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := vendorcontext.Caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dispatchID, err := validators.ParsePathUUID(r, "dispatchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req recordRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var remarks *string
		if req.OperatorRemarks != nil {
			cleaned := validators.SanitizeString(*req.OperatorRemarks, 1000)
			remarks = &cleaned
		}

		note, err := svc.RecordGRN(r.Context(), internalgrn.RecordInput{
			DispatchID:      dispatchID,
			Items:           req.Items,
			OperatorRemarks: remarks,
			ActorUserID:     caller.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, note)
	}
}

func Get(svc internalgrn.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grnID, err := validators.ParsePathUUID(r, "grnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		note, err := svc.GetGRN(r.Context(), grnID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, note)
	}
}

// ListTickets pages discrepancy tickets, optionally by ?status.
func ListTickets(svc internalgrn.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var status *enums.TicketStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseTicketStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}

		result, err := svc.ListTickets(r.Context(), status, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ResolveTicket(svc internalgrn.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := vendorcontext.Caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ticketID, err := validators.ParsePathUUID(r, "ticketId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req resolveTicketRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ticket, err := svc.ResolveTicket(r.Context(), internalgrn.ResolveTicketInput{
			TicketID:    ticketID,
			Resolution:  validators.SanitizeString(req.Resolution, 2000),
			ActorUserID: caller.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ticket)
	}
}
