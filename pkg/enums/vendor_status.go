package enums

import "fmt"

// VendorStatus tracks whether a supplier may receive new work.
type VendorStatus string

const (
	VendorStatusActive    VendorStatus = "ACTIVE"
	VendorStatusInactive  VendorStatus = "INACTIVE"
	VendorStatusSuspended VendorStatus = "SUSPENDED"
)

var validVendorStatuses = []VendorStatus{
	VendorStatusActive,
	VendorStatusInactive,
	VendorStatusSuspended,
}

// IsValid reports whether the value is a known VendorStatus.
func (s VendorStatus) IsValid() bool {
	for _, candidate := range validVendorStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseVendorStatus converts raw input into a VendorStatus.
func ParseVendorStatus(value string) (VendorStatus, error) {
	for _, candidate := range validVendorStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vendor status %q", value)
}
