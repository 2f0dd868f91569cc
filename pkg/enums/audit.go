package enums

import "fmt"

// AuditEntityType names the aggregate an audit entry refers to.
type AuditEntityType string

const (
	AuditEntityOrder      AuditEntityType = "order"
	AuditEntityAssignment AuditEntityType = "assignment"
	AuditEntityDispatch   AuditEntityType = "dispatch"
	AuditEntityGRN        AuditEntityType = "grn"
	AuditEntityTicket     AuditEntityType = "ticket"
)

var validAuditEntityTypes = []AuditEntityType{
	AuditEntityOrder,
	AuditEntityAssignment,
	AuditEntityDispatch,
	AuditEntityGRN,
	AuditEntityTicket,
}

// IsValid reports whether the value is a known AuditEntityType.
func (e AuditEntityType) IsValid() bool {
	for _, candidate := range validAuditEntityTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseAuditEntityType converts raw input into an AuditEntityType.
func ParseAuditEntityType(value string) (AuditEntityType, error) {
	for _, candidate := range validAuditEntityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit entity type %q", value)
}

// AuditAction is the closed set of actions recorded in the audit log.
type AuditAction string

const (
	AuditOrderCreated        AuditAction = "order:created"
	AuditOrderUpdated        AuditAction = "order:updated"
	AuditOrderDeleted        AuditAction = "order:deleted"
	AuditOrderVendorAssigned AuditAction = "order:vendor_assigned"
	AuditOrderCancelled      AuditAction = "order:cancelled"
	AuditOrderClosed         AuditAction = "order:closed"

	AuditAssignmentConfirmed          AuditAction = "assignment:confirmed"
	AuditAssignmentPartiallyConfirmed AuditAction = "assignment:partially_confirmed"
	AuditAssignmentDeclined           AuditAction = "assignment:declined"
	AuditAssignmentInvoiced           AuditAction = "assignment:invoiced"
	AuditAssignmentReopened           AuditAction = "assignment:reopened"

	AuditDispatchCreated       AuditAction = "dispatch:created"
	AuditDispatchProofUploaded AuditAction = "dispatch:proof_uploaded"
	AuditDispatchStatusUpdated AuditAction = "dispatch:status_updated"

	AuditGRNCreated          AuditAction = "grn:created"
	AuditGRNVerifiedOK       AuditAction = "grn:verified_ok"
	AuditGRNVerifiedMismatch AuditAction = "grn:verified_mismatch"

	AuditTicketCreated  AuditAction = "ticket:created"
	AuditTicketResolved AuditAction = "ticket:resolved"
)

var validAuditActions = []AuditAction{
	AuditOrderCreated,
	AuditOrderUpdated,
	AuditOrderDeleted,
	AuditOrderVendorAssigned,
	AuditOrderCancelled,
	AuditOrderClosed,
	AuditAssignmentConfirmed,
	AuditAssignmentPartiallyConfirmed,
	AuditAssignmentDeclined,
	AuditAssignmentInvoiced,
	AuditAssignmentReopened,
	AuditDispatchCreated,
	AuditDispatchProofUploaded,
	AuditDispatchStatusUpdated,
	AuditGRNCreated,
	AuditGRNVerifiedOK,
	AuditGRNVerifiedMismatch,
	AuditTicketCreated,
	AuditTicketResolved,
}

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditAction.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into an AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}

// AssignmentAuditAction maps a vendor decision onto its audit action.
func AssignmentAuditAction(status AssignmentStatus) (AuditAction, bool) {
	switch status {
	case AssignmentStatusVendorConfirmedFull:
		return AuditAssignmentConfirmed, true
	case AssignmentStatusVendorConfirmedPartial:
		return AuditAssignmentPartiallyConfirmed, true
	case AssignmentStatusVendorDeclined:
		return AuditAssignmentDeclined, true
	case AssignmentStatusInvoiced:
		return AuditAssignmentInvoiced, true
	}
	return "", false
}
