// Package handlers exposes the REST endpoints of the forum.
//
// Handlers are transport-thin: they bind and validate input, call the
// application services through the narrow interfaces below, and translate
// results or service errors into JSON responses.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/http/middleware"
	"github.com/peerq/peerq-api/internal/repo"
	"github.com/peerq/peerq-api/internal/services"
	"github.com/peerq/peerq-api/internal/utils"
)

//
// Service contracts (context-aware)
//

// AuthService covers accounts and sessions.
type AuthService interface {
	Register(ctx context.Context, in services.Registration) (*services.Session, error)
	RegisterGuest(ctx context.Context, username string) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Me(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, p services.ProfileUpdate) (*domain.User, error)
	UpgradeGuest(ctx context.Context, userID string, in services.Registration) (*services.Session, error)
	ListUsers(ctx context.Context, search string, page, limit int) ([]domain.User, domain.Page, error)
	SetRole(ctx context.Context, id, role string) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// UserService serves public profiles and a user's own content.
type UserService interface {
	Profile(ctx context.Context, id string) (*services.PublicProfile, error)
	Questions(ctx context.Context, userID string, page, limit int) ([]domain.QuestionView, domain.Page, error)
	Answers(ctx context.Context, userID string, page, limit int) ([]domain.AnswerView, domain.Page, error)
}

// QuestionService covers questions, their votes and tags.
type QuestionService interface {
	List(ctx context.Context, f repo.QuestionFilter, page, limit int) ([]domain.QuestionView, domain.Page, error)
	Get(ctx context.Context, id string) (*domain.QuestionDetail, error)
	Create(ctx context.Context, authorID string, in services.QuestionInput) (*domain.QuestionView, error)
	Update(ctx context.Context, actor *domain.User, id string, in services.QuestionInput) (*domain.QuestionView, error)
	Delete(ctx context.Context, actor *domain.User, id string) error
	Vote(ctx context.Context, userID, id, voteType string) (domain.VoteResult, error)
	PopularTags(ctx context.Context) ([]domain.TagCount, error)
}

// AnswerService covers answers, their votes and acceptance.
type AnswerService interface {
	ListForQuestion(ctx context.Context, questionID string) ([]domain.AnswerView, error)
	Create(ctx context.Context, actor *domain.User, questionID, content string) (*domain.AnswerView, error)
	Update(ctx context.Context, actor *domain.User, id, content string) (*domain.AnswerView, error)
	Delete(ctx context.Context, actor *domain.User, id string) error
	Vote(ctx context.Context, userID, id, voteType string) (domain.VoteResult, error)
	Accept(ctx context.Context, actor *domain.User, id string) (*domain.AnswerView, error)
}

// NotificationService covers the inbox and its admin management.
type NotificationService interface {
	Create(ctx context.Context, actorID string, in services.NewNotification) (*domain.Notification, error)
	ListForUser(ctx context.Context, userID string, typ domain.NotificationType, page, limit int) ([]domain.Notification, domain.Page, int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	MarkUnread(ctx context.Context, id string) (*domain.Notification, error)
	Update(ctx context.Context, id string, p services.NotificationPatch) (*domain.Notification, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context, f repo.NotificationFilter, page, limit int) ([]domain.Notification, domain.Page, error)
}

// SearchService runs the comprehensive search.
type SearchService interface {
	Comprehensive(ctx context.Context, q string, limit int) (*services.SearchResult, error)
}

// ChatService covers assistant chats.
type ChatService interface {
	Create(ctx context.Context, userID, title string) (*domain.Chat, error)
	ListPage(ctx context.Context, userID string, page, limit int) ([]domain.Chat, domain.Page, error)
	Get(ctx context.Context, userID, chatID string) (*domain.Chat, error)
	UpdateTitle(ctx context.Context, userID, chatID, title string) (*domain.Chat, error)
	Delete(ctx context.Context, userID, chatID string) error
	SendMessage(ctx context.Context, userID, chatID, text string) (*services.Exchange, error)
}

// ChatStats backs the weak ETag on the chat list. Optional.
type ChatStats func(ctx context.Context, userID string) (count int64, lastUpdate int64, err error)

//
// Handler wiring
//

// Services bundles the dependencies of Handlers.
type Services struct {
	Auth          AuthService
	Users         UserService
	Questions     QuestionService
	Answers       AnswerService
	Notifications NotificationService
	Search        SearchService
	Chats         ChatService
	ChatStats     ChatStats
}

// Handlers groups every REST endpoint.
type Handlers struct {
	auth      AuthService
	users     UserService
	questions QuestionService
	answers   AnswerService
	notifs    NotificationService
	search    SearchService
	chats     ChatService
	chatStats ChatStats
}

// New constructs Handlers bound to the given services.
func New(s Services) *Handlers {
	return &Handlers{
		auth:      s.Auth,
		users:     s.Users,
		questions: s.Questions,
		answers:   s.Answers,
		notifs:    s.Notifications,
		search:    s.Search,
		chats:     s.Chats,
		chatStats: s.ChatStats,
	}
}

//
// Helpers
//

// actor returns the authenticated user. Routes using it sit behind
// RequireAuth or a non-view permission, so a miss is a wiring bug.
func actor(c *gin.Context) (*domain.User, bool) {
	u, found := middleware.CurrentUser(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "no token provided")
	}
	return u, found
}

// pageQuery reads page and limit; services apply defaults and caps.
func pageQuery(c *gin.Context) (page, limit int) {
	return utils.AtoiDefault(c.Query("page"), 1), utils.AtoiDefault(c.Query("limit"), 0)
}
