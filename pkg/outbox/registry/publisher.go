// Package registry decodes outbox rows into typed domain events and names the
// topic each one is published on.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorflow-backend/pkg/config"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that can never be published as stored.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		PayloadFactory: func() any { return new(T) },
	}
}

// NewEventRegistry registers every workflow event on the domain topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.DomainTopic == "" {
		return nil, errors.New("domain topic is required")
	}
	descriptors := []EventDescriptor{
		describe[payloads.OrderEvent](enums.EventOrderCreated, enums.AggregateOrder),
		describe[payloads.OrderEvent](enums.EventOrderUpdated, enums.AggregateOrder),
		describe[payloads.OrderEvent](enums.EventOrderDeleted, enums.AggregateOrder),
		describe[payloads.OrderEvent](enums.EventOrderVendorAssigned, enums.AggregateOrder),
		describe[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder),
		describe[payloads.AssignmentStatusChangedEvent](enums.EventAssignmentStatusChanged, enums.AggregateAssignment),
		describe[payloads.DispatchEvent](enums.EventDispatchCreated, enums.AggregateDispatch),
		describe[payloads.DispatchEvent](enums.EventDispatchStatusChanged, enums.AggregateDispatch),
		describe[payloads.GRNRecordedEvent](enums.EventGRNRecorded, enums.AggregateGRN),
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, desc := range descriptors {
		if _, dup := reg.entries[desc.EventType]; dup {
			return nil, fmt.Errorf("event type %s registered twice", desc.EventType)
		}
		desc.Topic = cfg.DomainTopic
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Topics lists the distinct topics events are published on.
func (r *EventRegistry) Topics() []string {
	seen := map[string]bool{}
	var topics []string
	for _, desc := range r.entries {
		if !seen[desc.Topic] {
			seen[desc.Topic] = true
			topics = append(topics, desc.Topic)
		}
	}
	sort.Strings(topics)
	return topics
}

// Resolve validates the row and decodes its typed payload. Every failure is
// non-retryable: the row content will not change between attempts.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	case desc.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: %s belongs to %s, row has %s",
			event.EventType, desc.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	if envelope.Version < 1 || envelope.Version > outbox.EnvelopeVersion {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported envelope version %d", envelope.Version))
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
