package controllers

import (
	"net/http"

	"github.com/angelmondragon/vendorflow-backend/api/responses"
	"github.com/angelmondragon/vendorflow-backend/api/validators"
	"github.com/angelmondragon/vendorflow-backend/internal/audit"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

// ListAuditByActor pages every ledger entry written by ?actorUserId.
func ListAuditByActor(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := validators.ParseQueryUUID(r, "actorUserId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actorID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "actorUserId is required"))
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListByActor(r.Context(), *actorID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
