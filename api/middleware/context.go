package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// Identity is the authenticated caller as asserted by the bearer token.
type Identity struct {
	UserID   uuid.UUID
	Roles    []enums.Role
	VendorID *uuid.UUID
}

// HasRole reports whether the caller holds any of roles.
func (i Identity) HasRole(roles ...enums.Role) bool {
	return enums.HasAnyRole(i.Roles, roles...)
}

// IsStaff is true for the buyer-side roles.
func (i Identity) IsStaff() bool {
	return i.HasRole(enums.RoleAdmin, enums.RoleOperations, enums.RoleAccounts)
}

// WithIdentity injects the caller into the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, id)
}

// IdentityFromContext returns the caller and whether one was set.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(ctxIdentity).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) string {
	if id, ok := IdentityFromContext(ctx); ok {
		return id.UserID.String()
	}
	return ""
}

func VendorIDFromContext(ctx context.Context) string {
	if id, ok := IdentityFromContext(ctx); ok && id.VendorID != nil {
		return id.VendorID.String()
	}
	return ""
}
