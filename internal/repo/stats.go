package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/domain"
)

// ChatsStats returns the number of chats a user owns and the latest
// updated_at among them (nil when there are none). The HTTP layer derives
// list ETags from it.
func ChatsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return tableStats(db.WithContext(ctx).Model(&domain.Chat{}).Where("user_id = ?", userID))
}

// NotificationsStats is ChatsStats for the notifications visible to userID.
func NotificationsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return tableStats(visibleTo(db.WithContext(ctx).Model(&domain.Notification{}), userID))
}

func tableStats(q *gorm.DB) (int64, *time.Time, error) {
	q = q.Session(&gorm.Session{})
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	// ORDER BY instead of MAX(): SQLite returns MAX() over datetimes as TEXT.
	var row struct {
		UpdatedAt time.Time
	}
	if err := q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
