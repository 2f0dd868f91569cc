package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/vendorflow-backend/pkg/db/types"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/pubsub"
)

const publishTimeout = 10 * time.Second

// InAppChannel stores notifications for the in-app inbox.
type InAppChannel struct {
	repo Repository
}

func NewInAppChannel(repo Repository) *InAppChannel {
	return &InAppChannel{repo: repo}
}

func (c *InAppChannel) Name() enums.NotificationChannel {
	return enums.NotificationChannelInApp
}

func (c *InAppChannel) Deliver(ctx context.Context, userID uuid.UUID, payload Payload) error {
	metadata, err := dbtypes.NewJSONB(payload.Metadata)
	if err != nil {
		return err
	}
	return c.repo.Create(ctx, &models.Notification{
		UserID:   userID,
		Type:     payload.Type,
		Priority: payload.Priority,
		Title:    payload.Title,
		Message:  payload.Message,
		Link:     payload.Link,
		Metadata: metadata,
	})
}

// PubSubChannel publishes notifications for external delivery (email, push).
type PubSubChannel struct {
	publisher pubsub.Publisher
}

// NewPubSubChannel returns nil when no publisher is configured, which
// NewDispatcher skips.
func NewPubSubChannel(publisher pubsub.Publisher) Channel {
	if publisher == nil {
		return nil
	}
	return &PubSubChannel{publisher: publisher}
}

func (c *PubSubChannel) Name() enums.NotificationChannel {
	return enums.NotificationChannelPubSub
}

type pubsubNotification struct {
	UserID   uuid.UUID                  `json:"userId"`
	Type     enums.NotificationType     `json:"type"`
	Priority enums.NotificationPriority `json:"priority"`
	Title    string                     `json:"title"`
	Message  string                     `json:"message"`
	Link     *string                    `json:"link,omitempty"`
	Metadata map[string]any             `json:"metadata,omitempty"`
}

func (c *PubSubChannel) Deliver(ctx context.Context, userID uuid.UUID, payload Payload) error {
	data, err := json.Marshal(pubsubNotification{
		UserID:   userID,
		Type:     payload.Type,
		Priority: payload.Priority,
		Title:    payload.Title,
		Message:  payload.Message,
		Link:     payload.Link,
		Metadata: payload.Metadata,
	})
	if err != nil {
		return err
	}
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	res := c.publisher.Publish(publishCtx, &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"notification_type": string(payload.Type),
			"priority":          string(payload.Priority),
			"user_id":           userID.String(),
		},
	})
	if res == nil {
		return fmt.Errorf("publisher returned no result")
	}
	_, err = res.Get(publishCtx)
	return err
}
