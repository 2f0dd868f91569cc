package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorflow-backend/internal/assignments"
	"github.com/angelmondragon/vendorflow-backend/internal/notifications"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

type fakeStaleFinder struct {
	rows   []assignments.PendingSummary
	err    error
	cutoff time.Time
}

func (f *fakeStaleFinder) StalePendingByVendor(_ context.Context, before time.Time) ([]assignments.PendingSummary, error) {
	f.cutoff = before
	return f.rows, f.err
}

type captureNotifier struct {
	targets  []notifications.Target
	payloads []notifications.Payload
	failFor  uuid.UUID
}

func (c *captureNotifier) Notify(_ context.Context, target notifications.Target, payload notifications.Payload) (notifications.Result, error) {
	c.targets = append(c.targets, target)
	c.payloads = append(c.payloads, payload)
	if len(target.VendorIDs) == 1 && target.VendorIDs[0] == c.failFor {
		return notifications.Result{}, errors.New("channel down")
	}
	return notifications.Result{Success: true}, nil
}

func newReminderJob(t *testing.T, finder *fakeStaleFinder, notifier *captureNotifier, after time.Duration) *assignmentReminderJob {
	t.Helper()
	job, err := NewAssignmentReminderJob(AssignmentReminderJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Assignments: finder,
		Notifier:    notifier,
		After:       after,
	})
	require.NoError(t, err)
	impl, ok := job.(*assignmentReminderJob)
	require.True(t, ok)
	return impl
}

func TestAssignmentReminderJobNotifiesEachVendor(t *testing.T) {
	acme, beta := uuid.New(), uuid.New()
	finder := &fakeStaleFinder{rows: []assignments.PendingSummary{
		{VendorID: acme, Pending: 3},
		{VendorID: beta, Pending: 1},
	}}
	notifier := &captureNotifier{}
	job := newReminderJob(t, finder, notifier, 48*time.Hour)
	now := time.Date(2026, 5, 14, 9, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, now.Add(-48*time.Hour), finder.cutoff)
	require.Len(t, notifier.targets, 2)
	assert.Equal(t, []uuid.UUID{acme}, notifier.targets[0].VendorIDs)
	assert.Empty(t, notifier.targets[0].Roles)
	assert.Equal(t, enums.NotificationTypeAssignmentReminder, notifier.payloads[0].Type)
	assert.Equal(t, enums.NotificationPriorityNormal, notifier.payloads[0].Priority)
	assert.Equal(t, "3 assignments have been waiting for a decision for more than 2 days.", notifier.payloads[0].Message)
	assert.Equal(t, "1 assignment has been waiting for a decision for more than 2 days.", notifier.payloads[1].Message)
}

func TestAssignmentReminderJobToleratesDeliveryFailures(t *testing.T) {
	acme, beta := uuid.New(), uuid.New()
	finder := &fakeStaleFinder{rows: []assignments.PendingSummary{
		{VendorID: acme, Pending: 1},
		{VendorID: beta, Pending: 2},
	}}
	notifier := &captureNotifier{failFor: acme}
	job := newReminderJob(t, finder, notifier, 0)

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, notifier.targets, 2, "a failed vendor does not stop the others")
}

func TestAssignmentReminderJobPropagatesQueryErrors(t *testing.T) {
	finder := &fakeStaleFinder{err: errors.New("db down")}
	notifier := &captureNotifier{}
	job := newReminderJob(t, finder, notifier, time.Hour)

	assert.Error(t, job.Run(context.Background()))
	assert.Empty(t, notifier.targets)
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "1 day", humanDuration(24*time.Hour))
	assert.Equal(t, "3 days", humanDuration(72*time.Hour))
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "36 hours", humanDuration(36*time.Hour))
	assert.Equal(t, "1h30m0s", humanDuration(90*time.Minute))
}
