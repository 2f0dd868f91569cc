package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/vendorflow-backend/internal/assignments"
	"github.com/angelmondragon/vendorflow-backend/internal/notifications"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

const defaultReminderAfter = 24 * time.Hour

type staleAssignmentsFinder interface {
	StalePendingByVendor(ctx context.Context, assignedBefore time.Time) ([]assignments.PendingSummary, error)
}

type AssignmentReminderJobParams struct {
	Logger      *logger.Logger
	Assignments staleAssignmentsFinder
	Notifier    notifications.Notifier
	After       time.Duration
}

// NewAssignmentReminderJob nudges vendors whose assignments sat undecided for
// longer than After.
func NewAssignmentReminderJob(params AssignmentReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Assignments == nil {
		return nil, fmt.Errorf("assignments repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	after := params.After
	if after <= 0 {
		after = defaultReminderAfter
	}
	return &assignmentReminderJob{
		logg:     params.Logger,
		repo:     params.Assignments,
		notifier: params.Notifier,
		after:    after,
		now:      time.Now,
	}, nil
}

type assignmentReminderJob struct {
	logg     *logger.Logger
	repo     staleAssignmentsFinder
	notifier notifications.Notifier
	after    time.Duration
	now      func() time.Time
}

func (j *assignmentReminderJob) Name() string { return "assignment-reminders" }

func (j *assignmentReminderJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	summaries, err := j.repo.StalePendingByVendor(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("load stale assignments: %w", err)
	}

	var (
		errs error
		sent int
	)
	for _, summary := range summaries {
		payload := notifications.Payload{
			Type:     enums.NotificationTypeAssignmentReminder,
			Priority: enums.NotificationPriorityNormal,
			Title:    "Assignments awaiting your confirmation",
			Message:  reminderMessage(summary.Pending, j.after),
			Metadata: map[string]any{
				"vendorId": summary.VendorID.String(),
				"pending":  summary.Pending,
			},
		}
		target := notifications.Target{VendorIDs: []uuid.UUID{summary.VendorID}}
		if _, err := j.notifier.Notify(ctx, target, payload); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("vendor %s: %w", summary.VendorID, err))
			continue
		}
		sent++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"vendors":        len(summaries),
		"reminders_sent": sent,
	})
	if errs != nil {
		j.logg.WarnErr(logCtx, "some assignment reminders were not delivered", errs)
		return nil
	}
	j.logg.Info(logCtx, "assignment reminders sent")
	return nil
}

func reminderMessage(pending int64, after time.Duration) string {
	noun := "assignments have"
	if pending == 1 {
		noun = "assignment has"
	}
	return fmt.Sprintf("%d %s been waiting for a decision for more than %s.", pending, noun, humanDuration(after))
}

func humanDuration(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}
