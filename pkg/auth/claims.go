package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Roles    []enums.Role
	VendorID *uuid.UUID
	JTI      string
}

// AccessTokenClaims represents the typed JWT presented by callers. The
// identity provider owns issuance; this service only trusts and reads it.
type AccessTokenClaims struct {
	UserID   uuid.UUID    `json:"user_id"`
	Roles    []enums.Role `json:"roles"`
	VendorID *uuid.UUID   `json:"vendor_id,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token grants any of roles.
func (c *AccessTokenClaims) HasRole(roles ...enums.Role) bool {
	return enums.HasAnyRole(c.Roles, roles...)
}

// Validate checks the claims this service relies on.
func (c *AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errMissingUser
	}
	if len(c.Roles) == 0 {
		return errMissingRoles
	}
	for _, role := range c.Roles {
		if !role.IsValid() {
			return invalidRoleError(role)
		}
	}
	if c.HasRole(enums.RoleVendor) && c.VendorID == nil {
		return errVendorWithoutID
	}
	return nil
}
