package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorflow-backend/pkg/config"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox/payloads"
)

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "vf-domain"})
	require.NoError(t, err)
	return reg
}

func mustEnvelope(t *testing.T, data []byte) []byte {
	t.Helper()
	return envelopeVersion(t, outbox.EnvelopeVersion, data)
}

func envelopeVersion(t *testing.T, version int, data []byte) []byte {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return raw
}

func TestNewEventRegistryRequiresDomainTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	assert.Error(t, err)
}

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()
	data, err := json.Marshal(payloads.OrderEvent{
		OrderID:     orderID,
		OrderNumber: "PO-1",
		Status:      enums.OrderStatusReceived,
		TotalValue:  decimal.RequireFromString("300.00"),
		ItemCount:   2,
	})
	require.NoError(t, err)

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       mustEnvelope(t, data),
	})
	require.NoError(t, err)
	assert.Equal(t, "vf-domain", resolved.Descriptor.Topic)
	payload, ok := resolved.Payload.(*payloads.OrderEvent)
	require.True(t, ok)
	assert.Equal(t, "PO-1", payload.OrderNumber)
	assert.True(t, payload.TotalValue.Equal(decimal.NewFromInt(300)))
	assert.NotEmpty(t, resolved.Envelope.EventID)
}

func TestEventRegistryResolveRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("mystery"),
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventGRNRecorded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventDispatchCreated,
			AggregateType: enums.AggregateDispatch,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null data": {
			EventType:     enums.EventDispatchCreated,
			AggregateType: enums.AggregateDispatch,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`null`)),
		},
		"future envelope version": {
			EventType:     enums.EventDispatchCreated,
			AggregateType: enums.AggregateDispatch,
			AggregateID:   uuid.New(),
			Payload:       envelopeVersion(t, outbox.EnvelopeVersion+1, []byte(`{}`)),
		},
		"zero envelope version": {
			EventType:     enums.EventDispatchCreated,
			AggregateType: enums.AggregateDispatch,
			AggregateID:   uuid.New(),
			Payload:       envelopeVersion(t, 0, []byte(`{}`)),
		},
		"broken envelope": {
			EventType:     enums.EventDispatchCreated,
			AggregateType: enums.AggregateDispatch,
			AggregateID:   uuid.New(),
			Payload:       []byte(`{"data":`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry))
		})
	}
}

func TestEventRegistryTopics(t *testing.T) {
	reg := newTestEventRegistry(t)
	assert.Equal(t, []string{"vf-domain"}, reg.Topics())
}

func TestEventRegistryResolvesEveryWorkflowEvent(t *testing.T) {
	reg := newTestEventRegistry(t)
	cases := []struct {
		event     enums.OutboxEventType
		aggregate enums.OutboxAggregateType
		want      any
	}{
		{enums.EventOrderStatusChanged, enums.AggregateOrder, &payloads.OrderStatusChangedEvent{}},
		{enums.EventAssignmentStatusChanged, enums.AggregateAssignment, &payloads.AssignmentStatusChangedEvent{}},
		{enums.EventDispatchStatusChanged, enums.AggregateDispatch, &payloads.DispatchEvent{}},
		{enums.EventGRNRecorded, enums.AggregateGRN, &payloads.GRNRecordedEvent{}},
	}
	for _, tc := range cases {
		t.Run(string(tc.event), func(t *testing.T) {
			resolved, err := reg.Resolve(models.OutboxEvent{
				EventType:     tc.event,
				AggregateType: tc.aggregate,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, []byte(`{}`)),
			})
			require.NoError(t, err)
			assert.IsType(t, tc.want, resolved.Payload)
		})
	}
}
