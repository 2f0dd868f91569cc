// Package vendorcontext resolves who is calling and which vendor they act for.
package vendorcontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorflow-backend/api/middleware"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
)

// Caller returns the authenticated identity.
func Caller(r *http.Request) (middleware.Identity, error) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok || id.UserID == uuid.Nil {
		return middleware.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return id, nil
}

// ResolveVendorID extracts the caller's vendor and enforces vendor access.
func ResolveVendorID(r *http.Request) (uuid.UUID, middleware.Identity, error) {
	id, err := Caller(r)
	if err != nil {
		return uuid.Nil, id, err
	}
	if !id.HasRole(enums.RoleVendor) || id.VendorID == nil {
		return uuid.Nil, id, pkgerrors.New(pkgerrors.CodeForbidden, "vendor access required")
	}
	return *id.VendorID, id, nil
}

// Scope returns nil for staff callers, who see every vendor, and the caller's
// own vendor id otherwise.
func Scope(r *http.Request) (*uuid.UUID, middleware.Identity, error) {
	id, err := Caller(r)
	if err != nil {
		return nil, id, err
	}
	if id.IsStaff() {
		return nil, id, nil
	}
	if id.VendorID == nil {
		return nil, id, pkgerrors.New(pkgerrors.CodeForbidden, "vendor access required")
	}
	vendorID := *id.VendorID
	return &vendorID, id, nil
}
