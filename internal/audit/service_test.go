package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
	"github.com/angelmondragon/vendorflow-backend/pkg/requestmeta"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc, db
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}

func TestRecordCapturesRequestMeta(t *testing.T) {
	svc, db := newTestService(t)
	actor := uuid.New()
	orderID := uuid.New()
	ctx := requestmeta.With(context.Background(), requestmeta.Meta{IPAddress: "198.51.100.7", UserAgent: "ops-console"})

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Record(ctx, tx, Entry{
			ActorUserID: &actor,
			Action:      enums.AuditOrderCreated,
			EntityType:  enums.AuditEntityOrder,
			EntityID:    orderID,
			Metadata:    map[string]any{"orderNumber": "PO-77"},
		})
		return err
	})
	require.NoError(t, err)

	entries, err := svc.ListByEntity(context.Background(), enums.AuditEntityOrder, orderID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	got := entries[0]
	assert.Equal(t, enums.AuditOrderCreated, got.Action)
	require.NotNil(t, got.IPAddress)
	assert.Equal(t, "198.51.100.7", *got.IPAddress)
	require.NotNil(t, got.UserAgent)
	assert.Equal(t, "ops-console", *got.UserAgent)

	var meta map[string]string
	require.NoError(t, got.Metadata.Decode(&meta))
	assert.Equal(t, "PO-77", meta["orderNumber"])
}

func TestRecordRollsBackWithCaller(t *testing.T) {
	svc, db := newTestService(t)
	orderID := uuid.New()

	_ = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Record(context.Background(), tx, Entry{
			Action:     enums.AuditOrderDeleted,
			EntityType: enums.AuditEntityOrder,
			EntityID:   orderID,
		})
		require.NoError(t, err)
		return assert.AnError
	})

	entries, err := svc.ListByEntity(context.Background(), enums.AuditEntityOrder, orderID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecordValidation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, nil, Entry{Action: enums.AuditOrderCreated, EntityType: enums.AuditEntityOrder, EntityID: uuid.New()})
	assert.Error(t, err)

	tx := db.Begin()
	defer tx.Rollback()
	_, err = svc.Record(ctx, tx, Entry{Action: "order:exploded", EntityType: enums.AuditEntityOrder, EntityID: uuid.New()})
	assert.Error(t, err)
	_, err = svc.Record(ctx, tx, Entry{Action: enums.AuditOrderCreated, EntityType: "invoice", EntityID: uuid.New()})
	assert.Error(t, err)
	_, err = svc.Record(ctx, tx, Entry{Action: enums.AuditOrderCreated, EntityType: enums.AuditEntityOrder})
	assert.Error(t, err)
}

func TestListByActorPaginates(t *testing.T) {
	svc, db := newTestService(t)
	actor := uuid.New()
	other := uuid.New()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < 3; i++ {
			if _, err := svc.Record(context.Background(), tx, Entry{
				ActorUserID: &actor,
				Action:      enums.AuditDispatchCreated,
				EntityType:  enums.AuditEntityDispatch,
				EntityID:    uuid.New(),
			}); err != nil {
				return err
			}
		}
		_, err := svc.Record(context.Background(), tx, Entry{
			ActorUserID: &other,
			Action:      enums.AuditDispatchCreated,
			EntityType:  enums.AuditEntityDispatch,
			EntityID:    uuid.New(),
		})
		return err
	}))

	res, err := svc.ListByActor(context.Background(), actor, pagination.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 2, res.Pages)
}
