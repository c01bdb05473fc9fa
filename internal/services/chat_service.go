// Package services – ChatService
//
// ChatService owns assistant conversations: chat CRUD plus SendMessage, which
// stores the user's message, gathers forum context, asks the configured
// assistant.Generator for a reply (or falls back to a canned one), stores the
// reply and names the chat after its first exchange.
//
// Generator failures never reach the caller. Only persistence errors do.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/assistant"
	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/repo"
	"github.com/peerq/peerq-api/internal/search"
	"github.com/peerq/peerq-api/internal/utils"
)

// Chat defaults.
const (
	DefaultMaxMessageRunes = 4000
	DefaultContextWindow   = 50

	relatedQuestions = 3
	recentItems      = 5
	excerptRunes     = 160
)

// ChatRepo defines the repository contract required by ChatService.
type ChatRepo interface {
	CreateChat(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Chat, error)
	CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error)

	// GetChat fetches a chat by ID ensuring it belongs to the user.
	GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error)
	UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error
	TouchChat(ctx context.Context, db *gorm.DB, id string) error
	DeleteChat(ctx context.Context, db *gorm.DB, id, userID string) error

	CreateMessage(ctx context.Context, db *gorm.DB, chatID, role, content string) (*domain.Message, error)
	ListMessages(ctx context.Context, db *gorm.DB, chatID string, limit int) ([]domain.Message, error)
	LastMessages(ctx context.Context, db *gorm.DB, chatID string, n int) ([]domain.Message, error)
	CountMessages(ctx context.Context, db *gorm.DB, chatID string) (int64, error)
}

// ChatService provides chat-level operations and the assistant exchange.
type ChatService struct {
	DB   *gorm.DB
	Repo ChatRepo

	// Generator produces assistant replies; nil means canned replies only.
	Generator assistant.Generator

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// TitleLocale drives casing of locally derived titles.
	TitleLocale language.Tag
	// MaxMessageRunes bounds a user message.
	MaxMessageRunes int
	// ContextWindow is how many recent questions are ranked for relevance.
	ContextWindow int
}

// Exchange is the outcome of SendMessage.
type Exchange struct {
	Chat       *domain.Chat         `json:"chat"`
	Reply      string               `json:"aiResponse"`
	Validation assistant.Validation `json:"validation"`
	Fallback   bool                 `json:"fallback"`
}

// NewChatService constructs a ChatService with defaults for title handling
// and message limits.
func NewChatService(db *gorm.DB, r ChatRepo, gen assistant.Generator) *ChatService {
	return &ChatService{
		DB:              db,
		Repo:            r,
		Generator:       gen,
		TitleMaxLen:     assistant.MaxTitleRunes,
		TitleLocale:     language.English,
		MaxMessageRunes: DefaultMaxMessageRunes,
		ContextWindow:   DefaultContextWindow,
	}
}

// Create inserts a new chat owned by userID. A blank title becomes
// domain.DefaultChatTitle.
func (s *ChatService) Create(ctx context.Context, userID, title string) (*domain.Chat, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = domain.DefaultChatTitle
	}
	return s.Repo.CreateChat(ctx, s.DB, userID, s.clip(title))
}

// ListPage returns a page of the user's chats, most recently active first.
func (s *ChatService) ListPage(ctx context.Context, userID string, page, limit int) ([]domain.Chat, domain.Page, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "ListPage",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.Int("page", page)))
	defer span.End()

	page, limit, offset := utils.Paginate(page, limit, 20, 100)
	total, err := s.Repo.CountChats(ctx, s.DB, userID)
	if err != nil {
		return nil, domain.Page{}, err
	}
	if total == 0 {
		return []domain.Chat{}, domain.NewPage(page, limit, 0), nil
	}
	items, err := s.Repo.ListChatsPage(ctx, s.DB, userID, offset, limit)
	if err != nil {
		return nil, domain.Page{}, err
	}
	return items, domain.NewPage(page, limit, total), nil
}

// Get returns an owned chat with its messages.
func (s *ChatService) Get(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	c, err := s.owned(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if c.Messages, err = s.Repo.ListMessages(ctx, s.DB, chatID, 0); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateTitle renames an owned chat. A blank title becomes "Untitled".
func (s *ChatService) UpdateTitle(ctx context.Context, userID, chatID, title string) (*domain.Chat, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = "Untitled"
	}
	if _, err := s.owned(ctx, userID, chatID); err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateChatTitle(ctx, s.DB, chatID, userID, s.clip(title)); err != nil {
		return nil, err
	}
	return s.owned(ctx, userID, chatID)
}

// Delete removes an owned chat and its messages.
func (s *ChatService) Delete(ctx context.Context, userID, chatID string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.Repo.DeleteChat(ctx, tx, chatID, userID)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrChatNotFound
	}
	return err
}

// SendMessage runs one assistant exchange in an owned chat.
func (s *ChatService) SendMessage(ctx context.Context, userID, chatID, text string) (*Exchange, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "SendMessage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", userID),
		))
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(text) > s.MaxMessageRunes {
		return nil, ErrTooLong
	}
	chat, err := s.owned(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	prior, err := s.Repo.LastMessages(ctx, s.DB, chatID, assistant.MaxHistoryTurns)
	if err != nil {
		return nil, err
	}
	if _, err := s.Repo.CreateMessage(ctx, s.DB, chatID, domain.MessageRoleUser, text); err != nil {
		return nil, err
	}

	history := make([]assistant.Turn, 0, len(prior))
	for _, m := range prior {
		history = append(history, assistant.Turn{Role: m.Role, Content: m.Content})
	}
	reply, fellBack := s.reply(ctx, assistant.BuildPrompt(s.forumContext(ctx, text), history, text), text)
	span.SetAttributes(attribute.Bool("assistant.fallback", fellBack))

	v := assistant.Validate(reply)
	if !v.Valid {
		log.Warn().Str("chat_id", chatID).Str("reason", v.Reason).Msg("assistant reply failed validation")
	}

	if _, err := s.Repo.CreateMessage(ctx, s.DB, chatID, domain.MessageRoleAssistant, reply); err != nil {
		return nil, err
	}
	if err := s.Repo.TouchChat(ctx, s.DB, chatID); err != nil {
		return nil, err
	}

	n, err := s.Repo.CountMessages(ctx, s.DB, chatID)
	if err != nil {
		return nil, err
	}
	if n == 2 {
		if title := s.autoTitle(ctx, text); title != "" {
			if err := s.Repo.UpdateChatTitle(ctx, s.DB, chatID, userID, title); err != nil {
				return nil, err
			}
		}
	}

	if chat, err = s.Get(ctx, userID, chatID); err != nil {
		return nil, err
	}
	return &Exchange{Chat: chat, Reply: reply, Validation: v, Fallback: fellBack}, nil
}

// reply asks the generator and falls back to a canned answer on any failure.
func (s *ChatService) reply(ctx context.Context, prompt, message string) (string, bool) {
	if s.Generator == nil {
		assistantReplies.WithLabelValues("fallback").Inc()
		return assistant.Fallback(message), true
	}
	out, err := s.Generator.Generate(ctx, prompt)
	if err != nil || strings.TrimSpace(out) == "" {
		if err == nil {
			err = assistant.ErrEmptyReply
		}
		log.Warn().Err(err).Msg("assistant generator failed, using canned reply")
		assistantReplies.WithLabelValues("fallback").Inc()
		return assistant.Fallback(message), true
	}
	assistantReplies.WithLabelValues("generator").Inc()
	return strings.TrimSpace(out), false
}

// autoTitle asks the generator for a title and falls back to a local one.
func (s *ChatService) autoTitle(ctx context.Context, message string) string {
	if s.Generator != nil {
		raw, err := s.Generator.Generate(ctx, assistant.TitlePrompt(message))
		if err == nil {
			if t, ok := assistant.CleanTitle(raw); ok {
				return s.clip(t)
			}
		}
	}
	return s.clip(s.generateTitleFromPrompt(message))
}

// forumContext collects recent forum activity matching the message's
// trigger words plus the questions most related to it. Lookup errors are
// logged and leave the context shorter.
func (s *ChatService) forumContext(ctx context.Context, message string) string {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "forumContext")
	defer span.End()

	lower := strings.ToLower(message)
	var b strings.Builder

	if containsAny(lower, "question", "ask", "post") {
		if err := s.writeRecentQuestions(ctx, &b); err != nil {
			log.Warn().Err(err).Msg("forum context: recent questions")
		}
	}
	if containsAny(lower, "answer", "reply", "response") {
		if err := s.writeRecentAnswers(ctx, &b); err != nil {
			log.Warn().Err(err).Msg("forum context: recent answers")
		}
	}
	if containsAny(lower, "user", "member", "profile") {
		users, err := repo.RecentUsers(ctx, s.DB, recentItems)
		if err != nil {
			log.Warn().Err(err).Msg("forum context: recent users")
		} else if len(users) > 0 {
			b.WriteString("Recent Users:\n")
			for _, u := range users {
				fmt.Fprintf(&b, "- %s (%s)\n", u.Username, u.Role)
			}
			b.WriteString("\n")
		}
	}
	if err := s.writeRelated(ctx, &b, message); err != nil {
		log.Warn().Err(err).Msg("forum context: related questions")
	}
	return b.String()
}

func (s *ChatService) writeRecentQuestions(ctx context.Context, b *strings.Builder) error {
	qs, err := repo.RecentQuestions(ctx, s.DB, recentItems)
	if err != nil || len(qs) == 0 {
		return err
	}
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.AuthorID)
	}
	users, err := repo.UsersByIDs(ctx, s.DB, ids)
	if err != nil {
		return err
	}
	b.WriteString("Recent Questions:\n")
	for _, q := range qs {
		fmt.Fprintf(b, "- %s (by %s)\n", q.Title, summaryOf(users, q.AuthorID).Username)
	}
	b.WriteString("\n")
	return nil
}

func (s *ChatService) writeRecentAnswers(ctx context.Context, b *strings.Builder) error {
	as, err := repo.RecentAnswers(ctx, s.DB, recentItems)
	if err != nil || len(as) == 0 {
		return err
	}
	authors := make([]string, 0, len(as))
	qids := make([]string, 0, len(as))
	for _, a := range as {
		authors = append(authors, a.AuthorID)
		qids = append(qids, a.QuestionID)
	}
	users, err := repo.UsersByIDs(ctx, s.DB, authors)
	if err != nil {
		return err
	}
	questions, err := repo.QuestionsByIDs(ctx, s.DB, qids)
	if err != nil {
		return err
	}
	b.WriteString("Recent Answers:\n")
	for _, a := range as {
		fmt.Fprintf(b, "- Answer to \"%s\" (by %s)\n", questions[a.QuestionID].Title, summaryOf(users, a.AuthorID).Username)
	}
	b.WriteString("\n")
	return nil
}

// writeRelated ranks the most recent questions against message.
func (s *ChatService) writeRelated(ctx context.Context, b *strings.Builder, message string) error {
	window := s.ContextWindow
	if window <= 0 {
		window = DefaultContextWindow
	}
	qs, err := repo.RecentQuestions(ctx, s.DB, window)
	if err != nil || len(qs) == 0 {
		return err
	}
	byID := make(map[string]domain.Question, len(qs))
	docs := make([]search.Document, 0, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
		text := q.Title + " " + strings.Join(q.TagNames(), " ") + " " + search.PlainText(q.Description)
		docs = append(docs, search.Document{ID: q.ID, Text: text})
	}
	hits := search.NewIndex(docs, search.WithMaxDocs(window)).TopK(message, relatedQuestions)
	if len(hits) == 0 {
		return nil
	}
	b.WriteString("Related Questions:\n")
	for _, h := range hits {
		q := byID[h.ID]
		fmt.Fprintf(b, "- %s: %s\n", q.Title, search.Excerpt(search.PlainText(q.Description), excerptRunes))
	}
	b.WriteString("\n")
	return nil
}

func (s *ChatService) owned(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	c, err := s.Repo.GetChat(ctx, s.DB, chatID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatNotFound
	}
	return c, err
}

// clip truncates a chat title to the configured maximum rune length.
func (s *ChatService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return strings.TrimSpace(string([]rune(title)[:s.TitleMaxLen]))
	}
	return title
}

// generateTitleFromPrompt derives a concise title from the message keywords.
func (s *ChatService) generateTitleFromPrompt(prompt string) string {
	toks := titleWordRE.FindAllString(strings.ToLower(prompt), -1)
	if len(toks) == 0 {
		return ""
	}
	loc := s.TitleLocale
	if loc == language.Und {
		loc = language.English
	}
	caser := cases.Title(loc)
	out := make([]string, 0, 6)
	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, caser.String(w))
		if len(out) >= 6 {
			break
		}
	}
	return strings.Join(out, " ")
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

var (
	whitespaceRE = regexp.MustCompile(`\s+`)

	// Letters with optional trailing digits, e.g. "go2".
	titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

	titleStopWords = map[string]struct{}{
		"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
		"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
		"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
		"how": {}, "what": {}, "do": {}, "does": {}, "i": {}, "my": {}, "can": {}, "you": {},
	}
)
