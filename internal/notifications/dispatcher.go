package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

// Target names the recipients of a notification. Roles and vendors are
// expanded through the user directory and merged with UserIDs.
type Target struct {
	UserIDs   []uuid.UUID
	Roles     []enums.Role
	VendorIDs []uuid.UUID
}

// Payload is the channel-independent notification content.
type Payload struct {
	Type     enums.NotificationType
	Priority enums.NotificationPriority
	Title    string
	Message  string
	Link     *string
	Metadata map[string]any
}

// Delivery reports the outcome for one recipient on one channel.
type Delivery struct {
	UserID    uuid.UUID                 `json:"userId"`
	Channel   enums.NotificationChannel `json:"channel"`
	Delivered bool                      `json:"delivered"`
	Error     string                    `json:"error,omitempty"`
}

// Result summarizes a Notify call. Success is true when every delivery succeeded.
type Result struct {
	Success    bool       `json:"success"`
	Recipients []Delivery `json:"recipients"`
}

// Channel delivers a payload to one user.
type Channel interface {
	Name() enums.NotificationChannel
	Deliver(ctx context.Context, userID uuid.UUID, payload Payload) error
}

// Directory resolves role and vendor targets to user ids.
type Directory interface {
	UserIDsForRoles(ctx context.Context, roles ...enums.Role) ([]uuid.UUID, error)
	UserIDsForVendor(ctx context.Context, vendorID uuid.UUID) ([]uuid.UUID, error)
}

// Notifier is the dependency workflow services hold.
type Notifier interface {
	Notify(ctx context.Context, target Target, payload Payload) (Result, error)
}

// Dispatcher fans a payload out to every recipient over every channel.
type Dispatcher struct {
	directory Directory
	channels  []Channel
}

// NewDispatcher requires a directory and at least one channel.
func NewDispatcher(directory Directory, channels ...Channel) (*Dispatcher, error) {
	if directory == nil {
		return nil, fmt.Errorf("user directory required")
	}
	active := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch != nil {
			active = append(active, ch)
		}
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("at least one notification channel required")
	}
	return &Dispatcher{directory: directory, channels: active}, nil
}

// Notify resolves the target and delivers on every channel. The returned error
// aggregates every failure; partial delivery still reports the successes.
func (d *Dispatcher) Notify(ctx context.Context, target Target, payload Payload) (Result, error) {
	if payload.Priority == "" {
		payload.Priority = enums.NotificationPriorityNormal
	}
	if !payload.Type.IsValid() {
		return Result{}, fmt.Errorf("invalid notification type %q", payload.Type)
	}

	recipients, err := d.resolve(ctx, target)
	if err != nil {
		return Result{}, err
	}

	result := Result{Success: true, Recipients: make([]Delivery, 0, len(recipients)*len(d.channels))}
	var errs error
	for _, userID := range recipients {
		for _, ch := range d.channels {
			delivery := Delivery{UserID: userID, Channel: ch.Name(), Delivered: true}
			if err := ch.Deliver(ctx, userID, payload); err != nil {
				delivery.Delivered = false
				delivery.Error = err.Error()
				result.Success = false
				errs = multierr.Append(errs, fmt.Errorf("%s to %s: %w", ch.Name(), userID, err))
			}
			result.Recipients = append(result.Recipients, delivery)
		}
	}
	return result, errs
}

func (d *Dispatcher) resolve(ctx context.Context, target Target) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	var ordered []uuid.UUID
	add := func(ids []uuid.UUID) {
		for _, id := range ids {
			if id == uuid.Nil {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ordered = append(ordered, id)
		}
	}

	add(target.UserIDs)
	if len(target.Roles) > 0 {
		ids, err := d.directory.UserIDsForRoles(ctx, target.Roles...)
		if err != nil {
			return nil, fmt.Errorf("resolve roles: %w", err)
		}
		add(ids)
	}
	for _, vendorID := range target.VendorIDs {
		ids, err := d.directory.UserIDsForVendor(ctx, vendorID)
		if err != nil {
			return nil, fmt.Errorf("resolve vendor %s: %w", vendorID, err)
		}
		add(ids)
	}
	return ordered, nil
}

// BestEffort sends a notification and only logs failures. It must be called
// after the surrounding transaction committed.
func BestEffort(ctx context.Context, logg *logger.Logger, notifier Notifier, target Target, payload Payload) {
	if notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if _, err := notifier.Notify(ctx, target, payload); err != nil && logg != nil {
		logg.WarnErr(logg.WithField(ctx, "notification_type", string(payload.Type)), "notification delivery failed", err)
	}
}
