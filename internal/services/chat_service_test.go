package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/assistant"
	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/repo"
)

// ----- Fake repo (title handling only) -----

type fakeChatRepo struct {
	dbChatRepo
	createUserID string
	createTitle  string
}

func (r *fakeChatRepo) CreateChat(_ context.Context, _ *gorm.DB, userID, title string) (*domain.Chat, error) {
	r.createUserID = userID
	r.createTitle = title
	return &domain.Chat{ID: "c1", UserID: userID, Title: title}, nil
}

// ----- Recording generator -----

type recordingGen struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	title   string
	err     error
}

func (g *recordingGen) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if strings.HasPrefix(prompt, "Generate a short title") {
		return g.title, nil
	}
	return g.reply, nil
}

func newChatSvc(t *testing.T, gen assistant.Generator) (*ChatService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewChatService(db, dbChatRepo{}, gen), db
}

// ----- Tests -----

func TestNewChatService_Defaults(t *testing.T) {
	s := NewChatService(nil, &fakeChatRepo{}, nil)
	if s.TitleMaxLen != assistant.MaxTitleRunes {
		t.Fatalf("TitleMaxLen = %d", s.TitleMaxLen)
	}
	if s.MaxMessageRunes != DefaultMaxMessageRunes || s.ContextWindow != DefaultContextWindow {
		t.Fatalf("limits not defaulted: %+v", s)
	}
}

func TestNormalizeTitle(t *testing.T) {
	cases := map[string]string{
		"":                      "",
		"   leading   ":         "leading",
		"multi   spaces":        "multi spaces",
		"tabs\tand\nnewlines  ": "tabs and newlines",
		"\t  \n":                "",
	}
	for in, want := range cases {
		if got := normalizeTitle(in); got != want {
			t.Errorf("normalizeTitle(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestClip_UsesRunesNotBytes(t *testing.T) {
	s := NewChatService(nil, &fakeChatRepo{}, nil)
	s.TitleMaxLen = 5

	got := s.clip("☃☃☃☃☃☃☃")
	if utf8.RuneCountInString(got) != 5 {
		t.Fatalf("clip should keep 5 runes, got %q", got)
	}
	if s.clip("hi") != "hi" {
		t.Fatalf("expected passthrough for short input")
	}
}

func TestCreate_DefaultTitleWhenBlank(t *testing.T) {
	r := &fakeChatRepo{}
	s := NewChatService(nil, r, nil)

	chat, err := s.Create(context.Background(), "u1", "    ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if chat.UserID != "u1" || r.createTitle != domain.DefaultChatTitle {
		t.Fatalf("got user=%q title=%q", chat.UserID, r.createTitle)
	}
}

func TestChatCRUD_OwnerScoped(t *testing.T) {
	s, db := newChatSvc(t, nil)
	ctx := context.Background()
	alice := mkUser(t, db, "alice", domain.RoleUser)
	bob := mkUser(t, db, "bob", domain.RoleUser)

	c, err := s.Create(ctx, alice.ID, "  Go   questions ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Title != "Go questions" {
		t.Fatalf("title = %q", c.Title)
	}

	if _, err := s.Get(ctx, bob.ID, c.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("foreign Get err = %v, want ErrChatNotFound", err)
	}
	if _, err := s.UpdateTitle(ctx, bob.ID, c.ID, "mine"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("foreign rename err = %v", err)
	}
	renamed, err := s.UpdateTitle(ctx, alice.ID, c.ID, "   ")
	if err != nil || renamed.Title != "Untitled" {
		t.Fatalf("rename = %+v, %v", renamed, err)
	}

	items, page, err := s.ListPage(ctx, alice.ID, 0, 0)
	if err != nil || len(items) != 1 || page.TotalItems != 1 || page.Current != 1 {
		t.Fatalf("ListPage = %d items, %+v, %v", len(items), page, err)
	}
	if items, _, _ := s.ListPage(ctx, bob.ID, 1, 10); len(items) != 0 {
		t.Fatalf("bob should see no chats, got %d", len(items))
	}

	if err := s.Delete(ctx, bob.ID, c.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("foreign Delete err = %v", err)
	}
	if err := s.Delete(ctx, alice.ID, c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, alice.ID, c.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("deleted chat still readable: %v", err)
	}
}

func TestSendMessage_Validation(t *testing.T) {
	s, db := newChatSvc(t, nil)
	ctx := context.Background()
	u := mkUser(t, db, "alice", domain.RoleUser)
	c, _ := s.Create(ctx, u.ID, "")

	if _, err := s.SendMessage(ctx, u.ID, c.ID, "   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("blank err = %v", err)
	}
	if _, err := s.SendMessage(ctx, u.ID, c.ID, strings.Repeat("x", DefaultMaxMessageRunes+1)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("long err = %v", err)
	}
	if _, err := s.SendMessage(ctx, u.ID, "missing", "hello"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("missing chat err = %v", err)
	}
}

func TestSendMessage_GeneratorReplyContextAndTitle(t *testing.T) {
	gen := &recordingGen{reply: "Use context.WithTimeout.", title: `"Go Timeouts"`}
	s, db := newChatSvc(t, gen)
	ctx := context.Background()
	u := mkUser(t, db, "alice", domain.RoleUser)
	q := &domain.Question{
		Title: "How to set timeouts in golang http clients", Slug: "x",
		Description: "<p>My <b>golang</b> client hangs forever</p>", AuthorID: u.ID,
		Tags: []domain.QuestionTag{{Tag: "golang"}},
	}
	if err := repo.CreateQuestion(ctx, db, q); err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	c, _ := s.Create(ctx, u.ID, "")

	ex, err := s.SendMessage(ctx, u.ID, c.ID, "Any question about golang timeouts?")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if ex.Fallback || ex.Reply != "Use context.WithTimeout." {
		t.Fatalf("exchange = %+v", ex)
	}
	if !ex.Validation.Valid {
		t.Fatalf("validation = %+v", ex.Validation)
	}
	if len(ex.Chat.Messages) != 2 || ex.Chat.Messages[0].Role != domain.MessageRoleUser || ex.Chat.Messages[1].Role != domain.MessageRoleAssistant {
		t.Fatalf("messages = %+v", ex.Chat.Messages)
	}
	if ex.Chat.Title != "Go Timeouts" {
		t.Fatalf("title = %q", ex.Chat.Title)
	}

	prompt := gen.prompts[0]
	for _, want := range []string{"Forum Context:", "Recent Questions:", "(by alice)", "Related Questions:", "client hangs forever", "User: Any question about golang timeouts?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "<b>") {
		t.Errorf("prompt should carry plain text, got:\n%s", prompt)
	}

	// Second exchange replays history and keeps the title.
	gen.title = "Other"
	ex, err = s.SendMessage(ctx, u.ID, c.ID, "thanks")
	if err != nil {
		t.Fatalf("second SendMessage: %v", err)
	}
	if ex.Chat.Title != "Go Timeouts" || len(ex.Chat.Messages) != 4 {
		t.Fatalf("after second send: title=%q messages=%d", ex.Chat.Title, len(ex.Chat.Messages))
	}
	last := gen.prompts[len(gen.prompts)-1]
	if !strings.Contains(last, "Previous conversation:") || !strings.Contains(last, "assistant: Use context.WithTimeout.") {
		t.Fatalf("history missing from prompt:\n%s", last)
	}
}

func TestSendMessage_FallbackWhenGeneratorFails(t *testing.T) {
	gen := &recordingGen{err: errors.New("quota exceeded")}
	s, db := newChatSvc(t, gen)
	ctx := context.Background()
	u := mkUser(t, db, "alice", domain.RoleUser)
	c, _ := s.Create(ctx, u.ID, "")

	ex, err := s.SendMessage(ctx, u.ID, c.ID, "how do I vote on answers")
	if err != nil {
		t.Fatalf("generator errors must not surface: %v", err)
	}
	if !ex.Fallback || ex.Reply != assistant.Fallback("how do I vote on answers") {
		t.Fatalf("expected canned reply, got %+v", ex)
	}
	// Local title derived from keywords.
	if ex.Chat.Title != "Vote Answers" {
		t.Fatalf("title = %q", ex.Chat.Title)
	}
}

func TestSendMessage_NoGeneratorUsesCannedReply(t *testing.T) {
	s, db := newChatSvc(t, nil)
	ctx := context.Background()
	u := mkUser(t, db, "alice", domain.RoleUser)
	c, _ := s.Create(ctx, u.ID, "")

	ex, err := s.SendMessage(ctx, u.ID, c.ID, "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !ex.Fallback || ex.Reply == "" {
		t.Fatalf("exchange = %+v", ex)
	}
	n, _ := repo.CountMessages(ctx, db, c.ID)
	if n != 2 {
		t.Fatalf("messages stored = %d, want 2", n)
	}
}

func TestGenerateTitleFromPrompt(t *testing.T) {
	s := NewChatService(nil, &fakeChatRepo{}, nil)
	if got := s.generateTitleFromPrompt("What is the best way to learn Go generics?"); got != "Best Way Learn Go Generics" {
		t.Fatalf("got %q", got)
	}
	if got := s.generateTitleFromPrompt("?!"); got != "" {
		t.Fatalf("got %q", got)
	}
}
