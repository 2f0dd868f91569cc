package enums

import "fmt"

// DispatchStatus tracks a shipment after it leaves the vendor.
type DispatchStatus string

const (
	DispatchStatusPending    DispatchStatus = "PENDING"
	DispatchStatusProcessing DispatchStatus = "PROCESSING"
	DispatchStatusDispatched DispatchStatus = "DISPATCHED"
	DispatchStatusInTransit  DispatchStatus = "IN_TRANSIT"
	DispatchStatusDelivered  DispatchStatus = "DELIVERED"
	DispatchStatusFailed     DispatchStatus = "FAILED"
)

// dispatchProgression is ordered; a dispatch may only move forward along it.
var dispatchProgression = []DispatchStatus{
	DispatchStatusPending,
	DispatchStatusProcessing,
	DispatchStatusDispatched,
	DispatchStatusInTransit,
	DispatchStatusDelivered,
}

var validDispatchStatuses = append(append([]DispatchStatus{}, dispatchProgression...), DispatchStatusFailed)

// String implements fmt.Stringer.
func (s DispatchStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DispatchStatus.
func (s DispatchStatus) IsValid() bool {
	for _, candidate := range validDispatchStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the dispatch can no longer change.
func (s DispatchStatus) IsTerminal() bool {
	return s == DispatchStatusDelivered || s == DispatchStatusFailed
}

// CanTransitionTo reports whether next lies strictly ahead of s. FAILED is
// reachable from every non-terminal status.
func (s DispatchStatus) CanTransitionTo(next DispatchStatus) bool {
	if s.IsTerminal() || !next.IsValid() {
		return false
	}
	if next == DispatchStatusFailed {
		return true
	}
	return dispatchRank(next) > dispatchRank(s)
}

func dispatchRank(s DispatchStatus) int {
	for i, candidate := range dispatchProgression {
		if candidate == s {
			return i
		}
	}
	return -1
}

// ParseDispatchStatus converts raw input into a DispatchStatus.
func ParseDispatchStatus(value string) (DispatchStatus, error) {
	for _, candidate := range validDispatchStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispatch status %q", value)
}
