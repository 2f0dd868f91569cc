package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

const (
	defaultNotificationRetention = 30 * 24 * time.Hour
	defaultOutboxRetention       = 14 * 24 * time.Hour
	defaultTerminalAttempts      = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notificationPurger interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type outboxPurger interface {
	DeleteSettledBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

// purgeJob deletes rows older than a retention window in one transaction.
type purgeJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	retention time.Duration
	purge     func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	fields    map[string]any
	now       func() time.Time
}

func (j *purgeJob) Name() string { return j.name }

func (j *purgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.purge(ctx, tx, cutoff)
		deleted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	fields := map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	}
	for k, v := range j.fields {
		fields[k] = v
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "retention purge complete")
	return nil
}

func newPurgeJob(name string, logg *logger.Logger, db txRunner, retention, fallback time.Duration) (*purgeJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if retention <= 0 {
		retention = fallback
	}
	return &purgeJob{name: name, logg: logg, db: db, retention: retention, now: time.Now}, nil
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationPurger
	Retention  time.Duration
}

// NewNotificationCleanupJob purges read notifications past retention. Unread
// ones are kept however old they are.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	job, err := newPurgeJob("notification-cleanup", params.Logger, params.DB, params.Retention, defaultNotificationRetention)
	if err != nil {
		return nil, err
	}
	job.purge = params.Repository.DeleteOlderThan
	return job, nil
}

type OutboxRetentionJobParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Repository       outboxPurger
	Retention        time.Duration
	TerminalAttempts int
}

// NewOutboxRetentionJob purges outbox rows that were published or parked.
// Rows still awaiting delivery are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job, err := newPurgeJob("outbox-retention", params.Logger, params.DB, params.Retention, defaultOutboxRetention)
	if err != nil {
		return nil, err
	}
	terminal := params.TerminalAttempts
	if terminal <= 0 {
		terminal = defaultTerminalAttempts
	}
	job.fields = map[string]any{"terminal_attempts": terminal}
	job.purge = func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
		return params.Repository.DeleteSettledBefore(ctx, tx, cutoff, terminal)
	}
	return job, nil
}
