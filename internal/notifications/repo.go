package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
)

// Repository persists in-app notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter inboxFilter) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type inboxFilter struct {
	UserID     uuid.UUID
	UnreadOnly bool
	Type       *enums.NotificationType
	Priority   *enums.NotificationPriority
	After      *pagination.Cursor
	Limit      int
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) owned(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

func (r *gormRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *gormRepository) List(ctx context.Context, f inboxFilter) ([]models.Notification, error) {
	q := r.owned(ctx, f.UserID)
	if f.UnreadOnly {
		q = q.Where("read_at IS NULL")
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.Priority != nil {
		q = q.Where("priority = ?", *f.Priority)
	}
	if f.After != nil {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", f.After.CreatedAt, f.After.CreatedAt, f.After.ID)
	}
	var rows []models.Notification
	err := q.Order("created_at DESC").Order("id DESC").Limit(f.Limit).Find(&rows).Error
	return rows, err
}

func (r *gormRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.owned(ctx, userID).Where("read_at IS NULL").Count(&n).Error
	return n, err
}

// MarkRead reports whether the notification exists for the user. Rows already
// read are left untouched.
func (r *gormRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) (bool, error) {
	res := r.owned(ctx, userID).
		Where("id = ? AND read_at IS NULL", notificationID).
		UpdateColumn("read_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var n int64
	if err := r.owned(ctx, userID).Where("id = ?", notificationID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *gormRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.owned(ctx, userID).Where("read_at IS NULL").UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}

// DeleteOlderThan purges read notifications created before cutoff. Unread rows
// survive regardless of age.
func (r *gormRepository) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	res := db.WithContext(ctx).
		Where("created_at < ? AND read_at IS NOT NULL", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
