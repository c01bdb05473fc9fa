package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/peerq/peerq-api/internal/domain"
)

// newTestDB opens a migrated SQLite file database under t.TempDir().
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "repo.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, Email: username + "@example.com", PasswordHash: "x", Role: role}
	if err := CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func seedQuestion(t *testing.T, db *gorm.DB, authorID, title string, tags ...string) *domain.Question {
	t.Helper()
	q := &domain.Question{Title: title, Slug: strings.ToLower(title), Description: "about " + title, AuthorID: authorID}
	for _, tg := range tags {
		q.Tags = append(q.Tags, domain.QuestionTag{Tag: tg})
	}
	if err := CreateQuestion(context.Background(), db, q); err != nil {
		t.Fatalf("seed question %s: %v", title, err)
	}
	return q
}

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "does-not-exist", "app.db")
	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestOpenSQLite_ForeignKeysOnEveryConnection(t *testing.T) {
	db := newTestDB(t)
	var fk int
	if err := db.Raw("PRAGMA foreign_keys;").Row().Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d; want 1", fk)
	}
	for _, tbl := range []string{"users", "questions", "question_tags", "answers", "votes", "notifications", "chats", "messages", "idempotency"} {
		if !db.Migrator().HasTable(tbl) {
			t.Fatalf("missing table %s", tbl)
		}
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("mongo", "x"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestOpen_SQLiteInstallsTracing(t *testing.T) {
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "traced.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(db.Plugins) != 1 {
		t.Fatalf("tracing plugin not registered: %v", db.Plugins)
	}
}

func TestLikePattern_EscapesWildcards(t *testing.T) {
	cases := map[string]string{
		"Go":     "%go%",
		"50%":    `%50\%%`,
		"a_b":    `%a\_b%`,
		`back\s`: `%back\\s%`,
		"ÄRGER":  "%Ärger%",
	}
	for in, want := range cases {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestCILike_PerDialect(t *testing.T) {
	if got := ciLike("postgres", "title"); got != `title ILIKE ? ESCAPE '\'` {
		t.Fatalf("postgres = %q", got)
	}
	if got := ciLike("sqlite", "title"); got != `LOWER(title) LIKE ? ESCAPE '\'` {
		t.Fatalf("sqlite = %q", got)
	}
}

func TestSearchQuestions_CaseFolding(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := &domain.User{Username: "jürgen", Email: "j@example.com", PasswordHash: "x", Role: domain.RoleUser}
	if err := CreateUser(ctx, db, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	q := &domain.Question{Title: "Ärger mit GOROUTINES", Description: "d", AuthorID: u.ID}
	if err := CreateQuestion(ctx, db, q); err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	for _, term := range []string{"goroutines", "GoRoutines", "Ärger", "ÄRGER MIT"} {
		got, err := SearchQuestions(ctx, db, term, 10)
		if err != nil || len(got) != 1 {
			t.Fatalf("SearchQuestions(%q) = %d results, %v", term, len(got), err)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if isUniqueViolation(nil) {
		t.Fatalf("nil is not a violation")
	}
	if !isUniqueViolation(gorm.ErrDuplicatedKey) {
		t.Fatalf("gorm.ErrDuplicatedKey should match")
	}
	db := newTestDB(t)
	seedUser(t, db, "dup", domain.RoleUser)
	err := db.Create(&domain.User{ID: "other", Username: "dup", Email: "x@y.z", PasswordHash: "x", Role: domain.RoleUser}).Error
	if !isUniqueViolation(err) {
		t.Fatalf("sqlite unique error not recognized: %v", err)
	}
}
