package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder      OutboxAggregateType = "order"
	AggregateAssignment OutboxAggregateType = "assignment"
	AggregateDispatch   OutboxAggregateType = "dispatch"
	AggregateGRN        OutboxAggregateType = "grn"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateAssignment,
	AggregateDispatch,
	AggregateGRN,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated            OutboxEventType = "order_created"
	EventOrderUpdated            OutboxEventType = "order_updated"
	EventOrderDeleted            OutboxEventType = "order_deleted"
	EventOrderVendorAssigned     OutboxEventType = "order_vendor_assigned"
	EventOrderStatusChanged      OutboxEventType = "order_status_changed"
	EventAssignmentStatusChanged OutboxEventType = "assignment_status_changed"
	EventDispatchCreated         OutboxEventType = "dispatch_created"
	EventDispatchStatusChanged   OutboxEventType = "dispatch_status_changed"
	EventGRNRecorded             OutboxEventType = "grn_recorded"
)

var validEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderUpdated,
	EventOrderDeleted,
	EventOrderVendorAssigned,
	EventOrderStatusChanged,
	EventAssignmentStatusChanged,
	EventDispatchCreated,
	EventDispatchStatusChanged,
	EventGRNRecorded,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
