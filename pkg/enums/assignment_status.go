package enums

import "fmt"

// AssignmentStatus tracks a vendor's handling of one order item.
type AssignmentStatus string

const (
	AssignmentStatusPendingConfirmation    AssignmentStatus = "PENDING_CONFIRMATION"
	AssignmentStatusVendorConfirmedFull    AssignmentStatus = "VENDOR_CONFIRMED_FULL"
	AssignmentStatusVendorConfirmedPartial AssignmentStatus = "VENDOR_CONFIRMED_PARTIAL"
	AssignmentStatusVendorDeclined         AssignmentStatus = "VENDOR_DECLINED"
	AssignmentStatusInvoiced               AssignmentStatus = "INVOICED"
	AssignmentStatusDispatched             AssignmentStatus = "DISPATCHED"
)

var validAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusPendingConfirmation,
	AssignmentStatusVendorConfirmedFull,
	AssignmentStatusVendorConfirmedPartial,
	AssignmentStatusVendorDeclined,
	AssignmentStatusInvoiced,
	AssignmentStatusDispatched,
}

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentStatusPendingConfirmation: {
		AssignmentStatusVendorConfirmedFull,
		AssignmentStatusVendorConfirmedPartial,
		AssignmentStatusVendorDeclined,
	},
	AssignmentStatusVendorConfirmedFull:    {AssignmentStatusInvoiced, AssignmentStatusDispatched},
	AssignmentStatusVendorConfirmedPartial: {AssignmentStatusInvoiced, AssignmentStatusDispatched},
	AssignmentStatusInvoiced:               {AssignmentStatusDispatched},
}

// String implements fmt.Stringer.
func (s AssignmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AssignmentStatus.
func (s AssignmentStatus) IsValid() bool {
	for _, candidate := range validAssignmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	for _, candidate := range assignmentTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsVendorDecision reports whether the status is one of the three outcomes a
// vendor may choose while the assignment is pending.
func (s AssignmentStatus) IsVendorDecision() bool {
	return AssignmentStatusPendingConfirmation.CanTransitionTo(s)
}

// IsConfirmed reports whether the vendor committed to supplying stock.
func (s AssignmentStatus) IsConfirmed() bool {
	switch s {
	case AssignmentStatusVendorConfirmedFull,
		AssignmentStatusVendorConfirmedPartial,
		AssignmentStatusInvoiced,
		AssignmentStatusDispatched:
		return true
	}
	return false
}

// IsDispatchable reports whether goods may still be shipped against the assignment.
func (s AssignmentStatus) IsDispatchable() bool {
	return s.CanTransitionTo(AssignmentStatusDispatched)
}

// ParseAssignmentStatus converts raw input into an AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	for _, candidate := range validAssignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment status %q", value)
}
