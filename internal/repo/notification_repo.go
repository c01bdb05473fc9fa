package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/domain"
)

// NotificationFilter narrows the admin listing.
type NotificationFilter struct {
	Type   domain.NotificationType
	UserID string // "broadcast" selects notifications with no target user
	IsRead *bool
}

// BroadcastFilter selects broadcast rows in NotificationFilter.UserID.
const BroadcastFilter = "broadcast"

// CreateNotification inserts n.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.UpdatedAt = n.CreatedAt
	return db.WithContext(ctx).Create(n).Error
}

// GetNotification returns the notification with id or ErrNotFound.
func GetNotification(ctx context.Context, db *gorm.DB, id string) (*domain.Notification, error) {
	var n domain.Notification
	if err := db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// visibleTo scopes a query to a user's own notifications plus broadcasts.
func visibleTo(q *gorm.DB, userID string) *gorm.DB {
	return q.Where("user_id = ? OR user_id IS NULL", userID)
}

// ListVisibleNotifications pages through what userID can see, newest first.
func ListVisibleNotifications(ctx context.Context, db *gorm.DB, userID string, typ domain.NotificationType, offset, limit int) ([]domain.Notification, int64, error) {
	q := visibleTo(db.WithContext(ctx).Model(&domain.Notification{}), userID)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Notification
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

// CountUnreadVisible counts unread notifications visible to userID.
func CountUnreadVisible(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := visibleTo(db.WithContext(ctx).Model(&domain.Notification{}), userID).
		Where("is_read = ?", false).
		Count(&n).Error
	return n, err
}

// MarkAllVisibleRead marks every unread notification visible to userID as
// read and returns the number of rows changed.
func MarkAllVisibleRead(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	res := visibleTo(db.WithContext(ctx).Model(&domain.Notification{}), userID).
		Where("is_read = ?", false).
		Updates(map[string]any{"is_read": true, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// ListNotifications is the unscoped admin listing.
func ListNotifications(ctx context.Context, db *gorm.DB, f NotificationFilter, offset, limit int) ([]domain.Notification, int64, error) {
	q := db.WithContext(ctx).Model(&domain.Notification{})
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	switch f.UserID {
	case "":
	case BroadcastFilter:
		q = q.Where("user_id IS NULL")
	default:
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.IsRead != nil {
		q = q.Where("is_read = ?", *f.IsRead)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Notification
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

// UpdateNotificationFields applies a partial update.
func UpdateNotificationFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.Notification{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteNotification removes the notification with id.
func DeleteNotification(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteNotificationsForUser removes notifications targeted at userID.
func DeleteNotificationsForUser(ctx context.Context, db *gorm.DB, userID string) error {
	return db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Notification{}).Error
}
