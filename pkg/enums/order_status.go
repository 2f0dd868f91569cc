package enums

import "fmt"

// OrderStatus tracks the lifecycle of a purchase order.
type OrderStatus string

const (
	OrderStatusReceived           OrderStatus = "RECEIVED"
	OrderStatusAssigned           OrderStatus = "ASSIGNED"
	OrderStatusProcessing         OrderStatus = "PROCESSING"
	OrderStatusPartiallyFulfilled OrderStatus = "PARTIALLY_FULFILLED"
	OrderStatusFulfilled          OrderStatus = "FULFILLED"
	OrderStatusClosed             OrderStatus = "CLOSED"
	OrderStatusCancelled          OrderStatus = "CANCELLED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusReceived,
	OrderStatusAssigned,
	OrderStatusProcessing,
	OrderStatusPartiallyFulfilled,
	OrderStatusFulfilled,
	OrderStatusClosed,
	OrderStatusCancelled,
}

// orderTransitions lists the statuses reachable from each status. Self edges
// are listed explicitly where a repeated write is legal (vendor reassignment,
// repeated partial receipts).
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusReceived:           {OrderStatusAssigned, OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusAssigned:           {OrderStatusAssigned, OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:         {OrderStatusPartiallyFulfilled, OrderStatusFulfilled},
	OrderStatusPartiallyFulfilled: {OrderStatusPartiallyFulfilled, OrderStatusFulfilled},
	OrderStatusFulfilled:          {OrderStatusClosed},
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
