package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/domain"
)

// CreateChat inserts a new Chat row owned by userID with the given title.
func CreateChat(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Chat, error) {
	now := time.Now().UTC()
	c := &domain.Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// CountChats returns the total number of chats owned by userID.
func CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Chat{}).Where("user_id = ?", userID).Count(&total).Error
	return total, err
}

// ListChatsPage returns a page of a user's chats, most recently active first.
func ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetChat fetches a chat by id scoped to its owner, or ErrNotFound.
func GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateChatTitle renames a chat, enforcing ownership.
func UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	res := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"title": title, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchChat bumps updated_at so the chat sorts first.
func TouchChat(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Model(&domain.Chat{}).Where("id = ?", id).
		UpdateColumn("updated_at", time.Now().UTC()).Error
}

// DeleteChat removes an owned chat and its messages. Run it inside a
// transaction.
func DeleteChat(ctx context.Context, tx *gorm.DB, id, userID string) error {
	tx = tx.WithContext(ctx)
	res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Chat{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return tx.Where("chat_id = ?", id).Delete(&domain.Message{}).Error
}

// DeleteChatsForUser removes every chat and message owned by userID.
func DeleteChatsForUser(ctx context.Context, tx *gorm.DB, userID string) error {
	tx = tx.WithContext(ctx)
	sub := tx.Session(&gorm.Session{NewDB: true}).Model(&domain.Chat{}).Select("id").Where("user_id = ?", userID)
	if err := tx.Where("chat_id IN (?)", sub).Delete(&domain.Message{}).Error; err != nil {
		return err
	}
	return tx.Where("user_id = ?", userID).Delete(&domain.Chat{}).Error
}
