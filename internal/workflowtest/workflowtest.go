// Package workflowtest wires the shared collaborators of the workflow services
// against an in-memory database for package tests.
package workflowtest

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/internal/audit"
	"github.com/angelmondragon/vendorflow-backend/internal/notifications"
	"github.com/angelmondragon/vendorflow-backend/internal/vendors"
	"github.com/angelmondragon/vendorflow-backend/pkg/db"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox"
)

// Env bundles a migrated database with the collaborators every workflow
// service depends on.
type Env struct {
	DB       *gorm.DB
	Client   *db.Client
	Logger   *logger.Logger
	Audit    audit.Service
	Outbox   *outbox.Service
	Vendors  *vendors.Service
	Notifier *RecordingNotifier
}

// New opens a private database for t.
func New(t testing.TB) *Env {
	t.Helper()
	_, conn := dbtest.OpenClient(t)
	return NewWithDB(t, conn)
}

// NewWithDB builds the collaborators on top of an already migrated database,
// e.g. a Postgres container.
func NewWithDB(t testing.TB, conn *gorm.DB) *Env {
	t.Helper()
	client := db.Wrap(conn)
	logg := logger.New(logger.Options{ServiceName: "workflow-test", Output: io.Discard})

	auditSvc, err := audit.NewService(audit.NewRepository(conn))
	require.NoError(t, err)
	vendorSvc, err := vendors.NewService(vendors.NewRepository(conn))
	require.NoError(t, err)

	return &Env{
		DB:       conn,
		Client:   client,
		Logger:   logg,
		Audit:    auditSvc,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logg),
		Vendors:  vendorSvc,
		Notifier: &RecordingNotifier{},
	}
}

// Vendor creates an active vendor and returns its id.
func (e *Env) Vendor(t testing.TB, name string, verified bool) uuid.UUID {
	t.Helper()
	row, err := e.Vendors.Create(context.Background(), vendors.CreateVendorInput{CompanyName: name, Verified: verified})
	require.NoError(t, err)
	return row.ID
}

// AuditActions lists the actions recorded for an entity, oldest first.
func (e *Env) AuditActions(t testing.TB, entityType enums.AuditEntityType, entityID uuid.UUID) []enums.AuditAction {
	t.Helper()
	entries, err := e.Audit.ListByEntity(context.Background(), entityType, entityID)
	require.NoError(t, err)
	actions := make([]enums.AuditAction, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

// OutboxEvents returns the queued events of the given type.
func (e *Env) OutboxEvents(t testing.TB, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, e.DB.Where("event_type = ?", eventType).Order("created_at ASC").Find(&rows).Error)
	return rows
}

// Call is one recorded Notify invocation.
type Call struct {
	Target  notifications.Target
	Payload notifications.Payload
}

// RecordingNotifier captures notifications instead of delivering them. Err,
// when set, is returned from every call.
type RecordingNotifier struct {
	mu    sync.Mutex
	calls []Call
	Err   error
}

func (r *RecordingNotifier) Notify(_ context.Context, target notifications.Target, payload notifications.Payload) (notifications.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Target: target, Payload: payload})
	if r.Err != nil {
		return notifications.Result{}, r.Err
	}
	return notifications.Result{Success: true}, nil
}

// Calls returns a copy of the recorded calls.
func (r *RecordingNotifier) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// OfType filters recorded calls by notification type.
func (r *RecordingNotifier) OfType(kind enums.NotificationType) []Call {
	var out []Call
	for _, call := range r.Calls() {
		if call.Payload.Type == kind {
			out = append(out, call)
		}
	}
	return out
}
