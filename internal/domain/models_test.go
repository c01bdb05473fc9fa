package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(User{}).TableName():         "users",
		(Question{}).TableName():     "questions",
		(QuestionTag{}).TableName():  "question_tags",
		(Answer{}).TableName():       "answers",
		(Vote{}).TableName():         "votes",
		(Notification{}).TableName(): "notifications",
		(Chat{}).TableName():         "chats",
		(Message{}).TableName():      "messages",
		(Idempotency{}).TableName():  "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_IndexesAndVoteUniqueness(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&User{}, &Question{}, &QuestionTag{}, &Answer{}, &Vote{}, &Notification{}, &Chat{}, &Message{}, &Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasIndex(&Vote{}, "ux_vote_target_user") {
		t.Fatalf("expected unique vote index")
	}
	if !m.HasIndex(&Idempotency{}, "ux_idem_user_scope_key") {
		t.Fatalf("expected unique idempotency index")
	}

	v1 := Vote{ID: "v1", TargetType: TargetQuestion, TargetID: "q1", UserID: "u1", Value: 1}
	if err := db.Create(&v1).Error; err != nil {
		t.Fatalf("insert vote: %v", err)
	}
	dup := Vote{ID: "v2", TargetType: TargetQuestion, TargetID: "q1", UserID: "u1", Value: -1}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("second vote by the same user on the same target must be rejected")
	}
	other := Vote{ID: "v3", TargetType: TargetAnswer, TargetID: "q1", UserID: "u1", Value: -1}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("different target type should be allowed: %v", err)
	}
}

func TestAnswerCascadeOnQuestionDelete(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Question{}, &QuestionTag{}, &Answer{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	now := time.Now().UTC()
	q := Question{ID: "q1", Title: "T", Slug: "t", Description: "D", AuthorID: "u1", CreatedAt: now,
		Tags: []QuestionTag{{Tag: "go"}}}
	if err := db.Create(&q).Error; err != nil {
		t.Fatalf("insert question: %v", err)
	}
	if err := db.Create(&Answer{ID: "a1", QuestionID: "q1", AuthorID: "u2", Content: "x"}).Error; err != nil {
		t.Fatalf("insert answer: %v", err)
	}
	if err := db.Delete(&Question{}, "id = ?", "q1").Error; err != nil {
		t.Fatalf("delete question: %v", err)
	}
	var n int64
	db.Model(&Answer{}).Where("question_id = ?", "q1").Count(&n)
	if n != 0 {
		t.Fatalf("answers should cascade, got %d", n)
	}
	db.Model(&QuestionTag{}).Where("question_id = ?", "q1").Count(&n)
	if n != 0 {
		t.Fatalf("tags should cascade, got %d", n)
	}
}

func TestNotificationType_Valid(t *testing.T) {
	for _, nt := range NotificationTypes {
		if !nt.Valid() {
			t.Errorf("%q should be valid", nt)
		}
	}
	if NotificationType("spam").Valid() {
		t.Fatalf("unknown type must be invalid")
	}
	uid := "u1"
	if (Notification{UserID: &uid}).IsBroadcast() || !(Notification{}).IsBroadcast() {
		t.Fatalf("IsBroadcast mismatch")
	}
}

func TestIdempotency_Expired(t *testing.T) {
	now := time.Now()
	if (Idempotency{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatalf("future expiry must not be expired")
	}
	if !(Idempotency{ExpiresAt: now}).Expired(now) {
		t.Fatalf("expiry at now must be expired")
	}
}

func TestNewPage(t *testing.T) {
	cases := []struct {
		page, limit int
		total       int64
		want        Page
	}{
		{1, 10, 0, Page{Current: 1, Total: 0}},
		{1, 10, 25, Page{Current: 1, Total: 3, HasNext: true, TotalItems: 25}},
		{3, 10, 25, Page{Current: 3, Total: 3, HasPrev: true, TotalItems: 25}},
		{2, 5, 10, Page{Current: 2, Total: 2, HasPrev: true, TotalItems: 10}},
	}
	for _, tc := range cases {
		if got := NewPage(tc.page, tc.limit, tc.total); got != tc.want {
			t.Errorf("NewPage(%d,%d,%d) = %+v; want %+v", tc.page, tc.limit, tc.total, got, tc.want)
		}
	}
}
