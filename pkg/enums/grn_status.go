package enums

import "fmt"

// GRNStatus summarises a goods receipt note across all of its items.
type GRNStatus string

const (
	GRNStatusPendingVerification GRNStatus = "PENDING_VERIFICATION"
	GRNStatusVerifiedOK          GRNStatus = "VERIFIED_OK"
	GRNStatusVerifiedMismatch    GRNStatus = "VERIFIED_MISMATCH"
	GRNStatusPartiallyVerified   GRNStatus = "PARTIALLY_VERIFIED"
)

var validGRNStatuses = []GRNStatus{
	GRNStatusPendingVerification,
	GRNStatusVerifiedOK,
	GRNStatusVerifiedMismatch,
	GRNStatusPartiallyVerified,
}

// IsValid reports whether the value is a known GRNStatus.
func (s GRNStatus) IsValid() bool {
	for _, candidate := range validGRNStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseGRNStatus converts raw input into a GRNStatus.
func ParseGRNStatus(value string) (GRNStatus, error) {
	for _, candidate := range validGRNStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid grn status %q", value)
}

// GRNItemStatus is the verification outcome of a single received line.
type GRNItemStatus string

const (
	GRNItemStatusVerifiedOK       GRNItemStatus = "VERIFIED_OK"
	GRNItemStatusVerifiedMismatch GRNItemStatus = "VERIFIED_MISMATCH"
)

// IsValid reports whether the value is a known GRNItemStatus.
func (s GRNItemStatus) IsValid() bool {
	return s == GRNItemStatusVerifiedOK || s == GRNItemStatusVerifiedMismatch
}

// AggregateGRNStatus folds item outcomes into the note-level status.
func AggregateGRNStatus(items []GRNItemStatus) GRNStatus {
	if len(items) == 0 {
		return GRNStatusPendingVerification
	}
	ok, mismatched := 0, 0
	for _, item := range items {
		switch item {
		case GRNItemStatusVerifiedOK:
			ok++
		case GRNItemStatusVerifiedMismatch:
			mismatched++
		}
	}
	switch {
	case ok == len(items):
		return GRNStatusVerifiedOK
	case mismatched == len(items):
		return GRNStatusVerifiedMismatch
	default:
		return GRNStatusPartiallyVerified
	}
}
