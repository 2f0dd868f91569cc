package enums

import "fmt"

// Role is a capability granted to a user by the identity provider.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleOperations Role = "OPERATIONS"
	RoleAccounts   Role = "ACCOUNTS"
	RoleVendor     Role = "VENDOR"
)

var validRoles = []Role{
	RoleAdmin,
	RoleOperations,
	RoleAccounts,
	RoleVendor,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

// HasAnyRole reports whether granted intersects wanted.
func HasAnyRole(granted []Role, wanted ...Role) bool {
	for _, g := range granted {
		for _, w := range wanted {
			if g == w {
				return true
			}
		}
	}
	return false
}
