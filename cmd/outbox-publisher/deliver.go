package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox/registry"
	pkgpubsub "github.com/angelmondragon/vendorflow-backend/pkg/pubsub"
)

const (
	reasonNonRetryable = "non_retryable"
	reasonMaxAttempts  = "max_attempts"
)

// inflight is one event whose publish was issued but not yet confirmed.
type inflight struct {
	event  models.OutboxEvent
	topic  string
	result pkgpubsub.PublishResult
	err    error
}

// processBatch claims a batch, issues every publish before awaiting any
// result so the client can batch them, then settles each row. Only
// bookkeeping failures are returned; they roll back the whole batch.
func (s *Service) processBatch(ctx context.Context) (int, error) {
	handled := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		handled = len(events)

		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		pending := make([]inflight, 0, len(events))
		for _, event := range events {
			resolved, err := s.registry.Resolve(event)
			if err != nil {
				if err := s.park(ctx, tx, event, reasonNonRetryable, err); err != nil {
					return err
				}
				continue
			}
			pending = append(pending, s.issue(publishCtx, event, resolved))
		}
		for _, p := range pending {
			if err := s.settle(publishCtx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return handled, nil
}

func (s *Service) issue(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) inflight {
	p := inflight{event: event, topic: resolved.Descriptor.Topic}
	pub := s.publisherFactory(p.topic)
	if pub == nil {
		p.err = registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", p.topic))
		return p
	}
	p.result = pub.Publish(ctx, message(event, resolved.Envelope.EventID))
	if p.result == nil {
		p.err = registry.NewNonRetryableError(fmt.Errorf("publisher for topic %q returned no result", p.topic))
	}
	return p
}

func message(event models.OutboxEvent, eventID string) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

// settle awaits one publish and records the outcome on the row.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, p inflight) error {
	pubErr := p.err
	if pubErr == nil {
		_, pubErr = p.result.Get(ctx)
	}
	event := p.event
	logCtx := s.logg.WithFields(ctx, eventFields(event, p.topic))

	if pubErr == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.Published(string(event.EventType), event.CreatedAt)
		s.logg.Info(logCtx, "outbox event published")
		return nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(pubErr, &nonRetryable) {
		return s.park(ctx, tx, event, reasonNonRetryable, pubErr)
	}
	if event.AttemptCount+1 >= s.maxAttempts {
		return s.park(ctx, tx, event, reasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", pubErr))
	}

	s.logg.WarnErr(logCtx, "outbox publish failed", pubErr)
	if err := s.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	s.metrics.Retried(string(event.EventType))
	return nil
}

// park sets the row to the terminal attempt count so fetches skip it.
func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason string, cause error) error {
	fields := eventFields(event, "")
	fields["terminal_reason"] = reason
	s.logg.WarnErr(s.logg.WithFields(ctx, fields), "outbox event parked", cause)

	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.Parked(string(event.EventType), reason)
	return nil
}

func eventFields(event models.OutboxEvent, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt":        event.AttemptCount + 1,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	return fields
}
