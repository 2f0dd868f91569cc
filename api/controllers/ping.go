package controllers

import (
	"net/http"

	"github.com/angelmondragon/vendorflow-backend/api/controllers/vendorcontext"
	"github.com/angelmondragon/vendorflow-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

// Me echoes the identity the API derived from the bearer token.
func Me(w http.ResponseWriter, r *http.Request) {
	caller, err := vendorcontext.Caller(r)
	if err != nil {
		responses.WriteError(r.Context(), nil, w, err)
		return
	}
	payload := map[string]any{
		"userId": caller.UserID,
		"roles":  caller.Roles,
	}
	if caller.VendorID != nil {
		payload["vendorId"] = caller.VendorID
	}
	responses.WriteSuccess(w, payload)
}
