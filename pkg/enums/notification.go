package enums

import "fmt"

// NotificationType maps to the notification_type column.
type NotificationType string

const (
	NotificationTypeOrderAssigned       NotificationType = "order_assigned"
	NotificationTypeOrderCreated        NotificationType = "order_created"
	NotificationTypeAssignmentConfirmed NotificationType = "assignment_confirmed"
	NotificationTypeAssignmentDeclined  NotificationType = "assignment_declined"
	NotificationTypeAssignmentReminder  NotificationType = "assignment_reminder"
	NotificationTypeInvoiceUploaded     NotificationType = "invoice_uploaded"
	NotificationTypeDispatchCreated     NotificationType = "dispatch_created"
	NotificationTypeReceiptMismatch     NotificationType = "receipt_mismatch"
	NotificationTypeDispatchFailed      NotificationType = "dispatch_failed"
	NotificationTypeOrderFulfilled      NotificationType = "order_fulfilled"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderAssigned,
	NotificationTypeOrderCreated,
	NotificationTypeAssignmentConfirmed,
	NotificationTypeAssignmentDeclined,
	NotificationTypeAssignmentReminder,
	NotificationTypeInvoiceUploaded,
	NotificationTypeDispatchCreated,
	NotificationTypeReceiptMismatch,
	NotificationTypeDispatchFailed,
	NotificationTypeOrderFulfilled,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationPriority controls how loudly a channel surfaces a message.
type NotificationPriority string

const (
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityUrgent NotificationPriority = "urgent"
)

// IsValid checks whether the priority is known.
func (p NotificationPriority) IsValid() bool {
	return p == NotificationPriorityNormal || p == NotificationPriorityUrgent
}

func ParseNotificationPriority(value string) (NotificationPriority, error) {
	p := NotificationPriority(value)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid notification priority %q", value)
	}
	return p, nil
}

// NotificationChannel names a delivery mechanism.
type NotificationChannel string

const (
	NotificationChannelInApp  NotificationChannel = "in_app"
	NotificationChannelPubSub NotificationChannel = "pubsub"
)
