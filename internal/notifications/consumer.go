package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox/payloads"
)

const domainAlertsConsumer = "domain-alerts"

// Receiver is satisfied by *pubsub.Subscriber.
type Receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

// Consumer watches the domain subscription and turns failed dispatches and
// fulfilled orders into notifications. Other events are acked untouched.
type Consumer struct {
	notifier     Notifier
	subscription Receiver
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the domain alert consumer.
func NewConsumer(notifier Notifier, subscription Receiver, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		notifier:     notifier,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if eventType != enums.EventDispatchStatusChanged && eventType != enums.EventOrderStatusChanged {
		c.logg.Debug(logCtx, "skipping event without alerts")
		return processResult{}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, domainAlertsConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	if err := c.handle(ctx, logCtx, eventType, envelope.Data); err != nil {
		c.logg.Error(logCtx, "alert handling failed", err)
		if relErr := c.idempotency.Release(ctx, domainAlertsConsumer, eventID); relErr != nil {
			c.logg.WarnErr(logCtx, "failed to release event claim", relErr)
		}
		return processResult{nack: true}
	}
	return processResult{}
}

func (c *Consumer) handle(ctx, logCtx context.Context, eventType enums.OutboxEventType, data json.RawMessage) error {
	switch eventType {
	case enums.EventDispatchStatusChanged:
		var payload payloads.DispatchEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse dispatch payload: %w", err)
		}
		if payload.Status != enums.DispatchStatusFailed {
			return nil
		}
		return c.dispatchFailed(ctx, logCtx, payload)
	case enums.EventOrderStatusChanged:
		var payload payloads.OrderStatusChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order payload: %w", err)
		}
		if payload.Status != enums.OrderStatusFulfilled {
			return nil
		}
		return c.orderFulfilled(ctx, logCtx, payload)
	}
	return nil
}

func (c *Consumer) dispatchFailed(ctx, logCtx context.Context, payload payloads.DispatchEvent) error {
	if payload.DispatchID == uuid.Nil {
		return fmt.Errorf("dispatch id missing")
	}
	link := "/dispatches/" + payload.DispatchID.String()
	message := fmt.Sprintf("Dispatch %s via %s failed.", payload.AWBNumber, payload.LogisticsPartner)
	if n := len(payload.AssignmentIDs); n > 0 {
		message = fmt.Sprintf("Dispatch %s via %s failed. %d line(s) can be shipped again.", payload.AWBNumber, payload.LogisticsPartner, n)
	}
	target := Target{Roles: []enums.Role{enums.RoleOperations}}
	if payload.VendorID != uuid.Nil {
		target.VendorIDs = []uuid.UUID{payload.VendorID}
	}
	if _, err := c.notifier.Notify(ctx, target, Payload{
		Type:     enums.NotificationTypeDispatchFailed,
		Priority: enums.NotificationPriorityUrgent,
		Title:    "Dispatch failed",
		Message:  message,
		Link:     &link,
		Metadata: map[string]any{"dispatchId": payload.DispatchID.String(), "vendorId": payload.VendorID.String()},
	}); err != nil {
		return err
	}
	c.logg.Info(c.logg.WithField(logCtx, "dispatch_id", payload.DispatchID.String()), "dispatch failure announced")
	return nil
}

func (c *Consumer) orderFulfilled(ctx, logCtx context.Context, payload payloads.OrderStatusChangedEvent) error {
	if payload.OrderID == uuid.Nil {
		return fmt.Errorf("order id missing")
	}
	link := "/orders/" + payload.OrderID.String()
	if _, err := c.notifier.Notify(ctx, Target{Roles: []enums.Role{enums.RoleAdmin, enums.RoleOperations}}, Payload{
		Type:     enums.NotificationTypeOrderFulfilled,
		Priority: enums.NotificationPriorityNormal,
		Title:    "Order fulfilled",
		Message:  fmt.Sprintf("Order %s has been fully received.", payload.OrderNumber),
		Link:     &link,
		Metadata: map[string]any{"orderId": payload.OrderID.String()},
	}); err != nil {
		return err
	}
	c.logg.Info(c.logg.WithField(logCtx, "order_id", payload.OrderID.String()), "order fulfilment announced")
	return nil
}
