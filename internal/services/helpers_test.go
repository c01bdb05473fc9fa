package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/peerq/peerq-api/internal/auth"
	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/realtime"
	"github.com/peerq/peerq-api/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "services.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func mkUser(t *testing.T, db *gorm.DB, username string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, Email: username + "@example.com", PasswordHash: "x", Role: role}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func newTokens() *auth.Tokens {
	return auth.NewTokens("test-secret", time.Hour, 24*time.Hour)
}

// published is one captured Broker.Publish call.
type published struct {
	UserID string
	Event  realtime.Event
}

type fakeBroker struct {
	mu   sync.Mutex
	got  []published
	fail bool
}

func (b *fakeBroker) Publish(_ context.Context, userID string, ev realtime.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("broker down")
	}
	b.got = append(b.got, published{UserID: userID, Event: ev})
	return nil
}

func (b *fakeBroker) events() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.got...)
}

// dbChatRepo forwards ChatRepo to the repo package.
type dbChatRepo struct{}

func (dbChatRepo) CreateChat(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Chat, error) {
	return repo.CreateChat(ctx, db, userID, title)
}
func (dbChatRepo) CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountChats(ctx, db, userID)
}
func (dbChatRepo) ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	return repo.ListChatsPage(ctx, db, userID, offset, limit)
}
func (dbChatRepo) GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error) {
	return repo.GetChat(ctx, db, id, userID)
}
func (dbChatRepo) UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	return repo.UpdateChatTitle(ctx, db, id, userID, title)
}
func (dbChatRepo) TouchChat(ctx context.Context, db *gorm.DB, id string) error {
	return repo.TouchChat(ctx, db, id)
}
func (dbChatRepo) DeleteChat(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteChat(ctx, db, id, userID)
}
func (dbChatRepo) CreateMessage(ctx context.Context, db *gorm.DB, chatID, role, content string) (*domain.Message, error) {
	return repo.CreateMessage(ctx, db, chatID, role, content)
}
func (dbChatRepo) ListMessages(ctx context.Context, db *gorm.DB, chatID string, limit int) ([]domain.Message, error) {
	return repo.ListMessages(ctx, db, chatID, limit)
}
func (dbChatRepo) LastMessages(ctx context.Context, db *gorm.DB, chatID string, n int) ([]domain.Message, error) {
	return repo.LastMessages(ctx, db, chatID, n)
}
func (dbChatRepo) CountMessages(ctx context.Context, db *gorm.DB, chatID string) (int64, error) {
	return repo.CountMessages(ctx, db, chatID)
}
