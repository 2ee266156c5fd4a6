package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	notificationDatamodel "github.com/frahmantamala/travel-approval/internal/core/datamodel/notification"
	"github.com/frahmantamala/travel-approval/internal/notification"
	"github.com/frahmantamala/travel-approval/internal/store"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) notification.Repository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notificationDatamodel.Notification) error {
	return store.Unavailable("create notification", store.GetDB(ctx, r.db).Create(n).Error)
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*notificationDatamodel.Notification, error) {
	q := store.GetDB(ctx, r.db).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var rows []*notificationDatamodel.Notification
	err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, store.Unavailable("list notifications", err)
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	res := store.GetDB(ctx, r.db).
		Model(&notificationDatamodel.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", gorm.Expr("COALESCE(read_at, ?)", at))
	if res.Error != nil {
		return false, store.Unavailable("mark notification read", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	res := store.GetDB(ctx, r.db).
		Model(&notificationDatamodel.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", at)
	return res.RowsAffected, store.Unavailable("mark notifications read", res.Error)
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := store.GetDB(ctx, r.db).
		Model(&notificationDatamodel.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&n).Error
	return n, store.Unavailable("count notifications", err)
}
