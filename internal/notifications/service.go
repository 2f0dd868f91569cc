package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
)

// Service is the caller's in-app inbox. Every operation is scoped to one user;
// another user's notification reads as not found.
type Service interface {
	List(ctx context.Context, query Query) (*Page, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Query filters one user's inbox, newest first.
type Query struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
	Type       *enums.NotificationType
	Priority   *enums.NotificationPriority
}

type Page struct {
	Items      []models.Notification `json:"items"`
	NextCursor string                `json:"nextCursor,omitempty"`
}

type inbox struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("notifications repository required")
	}
	return &inbox{repo: repo, now: time.Now}, nil
}

func (s *inbox) List(ctx context.Context, query Query) (*Page, error) {
	if err := requireUser(query.UserID); err != nil {
		return nil, err
	}
	if query.Type != nil && !query.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown notification type")
	}
	if query.Priority != nil && !query.Priority.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown notification priority")
	}
	after, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, inboxFilter{
		UserID:     query.UserID,
		UnreadOnly: query.UnreadOnly,
		Type:       query.Type,
		Priority:   query.Priority,
		After:      after,
		Limit:      pagination.FetchLimit(query.Limit),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	items, next := pagination.TrimPage(rows, query.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return &Page{Items: items, NextCursor: next}, nil
}

func (s *inbox) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}

// MarkRead is idempotent: re-reading an already read notification succeeds
// and keeps the first read time.
func (s *inbox) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	found, err := s.repo.MarkRead(ctx, userID, notificationID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *inbox) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	count, err := s.repo.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func requireUser(userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return nil
}
