package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

type recordingInserter struct {
	rows []models.OutboxEvent
	err  error
}

func (r *recordingInserter) Insert(_ *gorm.DB, event models.OutboxEvent) error {
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, event)
	return nil
}

func newTestService(repo inserter, now time.Time) *Service {
	return &Service{repo: repo, now: func() time.Time { return now }}
}

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	repo := &recordingInserter{}
	svc := newTestService(repo, now)
	orderID, userID := uuid.New(), uuid.New()

	err := svc.Emit(context.Background(), &gorm.DB{}, DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         Actor(userID, nil),
		Data:          map[string]string{"status": "PROCESSING"},
	})
	require.NoError(t, err)
	require.Len(t, repo.rows, 1)

	row := repo.rows[0]
	assert.Equal(t, enums.EventOrderStatusChanged, row.EventType)
	assert.Equal(t, orderID, row.AggregateID)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &env))
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.True(t, env.OccurredAt.Equal(now))
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	_, err = uuid.Parse(env.EventID)
	assert.NoError(t, err)
	require.NotNil(t, env.Actor)
	assert.Equal(t, userID, env.Actor.UserID)
	assert.JSONEq(t, `{"status":"PROCESSING"}`, string(env.Data))
}

func TestEmitRejectsInvalidEvents(t *testing.T) {
	svc := newTestService(&recordingInserter{}, time.Now())
	valid := DomainEvent{
		EventType:     enums.EventDispatchCreated,
		AggregateType: enums.AggregateDispatch,
		AggregateID:   uuid.New(),
	}

	assert.Error(t, svc.Emit(context.Background(), nil, valid), "transaction is required")

	bad := valid
	bad.EventType = "dispatch_lost"
	assert.Error(t, svc.Emit(context.Background(), &gorm.DB{}, bad))

	bad = valid
	bad.AggregateID = uuid.Nil
	assert.Error(t, svc.Emit(context.Background(), &gorm.DB{}, bad))

	bad = valid
	bad.Data = make(chan int)
	assert.Error(t, svc.Emit(context.Background(), &gorm.DB{}, bad))
}

func TestEmitSurfacesInsertFailure(t *testing.T) {
	svc := newTestService(&recordingInserter{err: errors.New("db gone")}, time.Now())
	err := svc.Emit(context.Background(), &gorm.DB{}, DomainEvent{
		EventType:     enums.EventGRNRecorded,
		AggregateType: enums.AggregateGRN,
		AggregateID:   uuid.New(),
	})
	assert.ErrorContains(t, err, "db gone")
}

func TestActorOmitsSystemEvents(t *testing.T) {
	assert.Nil(t, Actor(uuid.Nil, nil))
	vendorID := uuid.New()
	ref := Actor(uuid.New(), &vendorID)
	require.NotNil(t, ref)
	assert.Equal(t, &vendorID, ref.VendorID)
}
