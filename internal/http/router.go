// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, authentication, idempotency, rate limiting, CORS and security
// headers.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Role checks declared next to each route
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/peerq/peerq-api/docs"
	"github.com/peerq/peerq-api/internal/assistant"
	"github.com/peerq/peerq-api/internal/auth"
	"github.com/peerq/peerq-api/internal/config"
	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/http/handlers"
	"github.com/peerq/peerq-api/internal/http/middleware"
	"github.com/peerq/peerq-api/internal/realtime"
	"github.com/peerq/peerq-api/internal/repo"
	"github.com/peerq/peerq-api/internal/services"
)

// chatRepoShim adapts the repository free functions to the services.ChatRepo
// interface expected by the ChatService. This keeps services decoupled from
// the concrete repo package while reusing existing functions.
type chatRepoShim struct{}

func (chatRepoShim) CreateChat(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Chat, error) {
	return repo.CreateChat(ctx, db, userID, title)
}

func (chatRepoShim) CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountChats(ctx, db, userID)
}

func (chatRepoShim) ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	return repo.ListChatsPage(ctx, db, userID, offset, limit)
}

func (chatRepoShim) GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error) {
	return repo.GetChat(ctx, db, id, userID)
}

func (chatRepoShim) UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	return repo.UpdateChatTitle(ctx, db, id, userID, title)
}

func (chatRepoShim) TouchChat(ctx context.Context, db *gorm.DB, id string) error {
	return repo.TouchChat(ctx, db, id)
}

func (chatRepoShim) DeleteChat(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteChat(ctx, db, id, userID)
}

func (chatRepoShim) CreateMessage(ctx context.Context, db *gorm.DB, chatID, role, content string) (*domain.Message, error) {
	return repo.CreateMessage(ctx, db, chatID, role, content)
}

func (chatRepoShim) ListMessages(ctx context.Context, db *gorm.DB, chatID string, limit int) ([]domain.Message, error) {
	return repo.ListMessages(ctx, db, chatID, limit)
}

func (chatRepoShim) LastMessages(ctx context.Context, db *gorm.DB, chatID string, n int) ([]domain.Message, error) {
	return repo.LastMessages(ctx, db, chatID, n)
}

func (chatRepoShim) CountMessages(ctx context.Context, db *gorm.DB, chatID string) (int64, error) {
	return repo.CountMessages(ctx, db, chatID)
}

// Deps are the collaborators RegisterRoutes wires into the services.
type Deps struct {
	DB     *gorm.DB
	Config config.Config
	Tokens *auth.Tokens

	// Hub serves /ws. Broker publishes live events and defaults to Hub;
	// set it to a RedisBroker to fan out across instances.
	Hub    *realtime.Hub
	Broker realtime.Broker

	// Generator is the assistant model; nil keeps the canned replies.
	Generator assistant.Generator
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access log with redaction
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Gzip (before idempotency so stored bodies are uncompressed)
//  8. Authenticate: resolve the bearer token, never rejects
//  9. Idempotency replay (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per user/IP)
//  11. CORS and Security headers
func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config
	db := d.DB
	r.HandleMethodNotAllowed = true
	handlers.RegisterValidators()

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.Logger(middleware.LogOptions{
		MaskHeaders: []string{middleware.HeaderIdempotencyKey},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Response compression; sockets and scrapes stay raw
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))

	// 8) Identify the caller
	r.Use(middleware.Authenticate(d.Tokens, func(ctx context.Context, id string) (*domain.User, error) {
		u, err := repo.GetUser(ctx, db, id)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, middleware.ErrUnknownUser
		}
		return u, err
	}))

	// 9) Idempotent replays of create requests
	ttl := cfg.IdempotencyTTL
	r.Use(middleware.Idempotency(middleware.IdempotencyOptions{
		Lookup: func(ctx context.Context, userID, scope, key string, now time.Time) (int, []byte, bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return 0, nil, false, nil
			}
			if err != nil {
				return 0, nil, false, err
			}
			return rec.Status, rec.Body, true, nil
		},
		Save: func(ctx context.Context, userID, scope, key string, status int, body []byte) error {
			_, err := repo.CreateIdempotency(ctx, db, userID, scope, key, status, body, ttl)
			if errors.Is(err, repo.ErrDuplicate) {
				return nil
			}
			return err
		},
	}))

	// 10) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 11) CORS posture (safe defaults: allow all if none configured)
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "X-Total-Count", "Retry-After", middleware.HeaderIdempotencyReplayed},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "timestamp": time.Now().UTC()})
	})
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/broker
	broker := d.Broker
	if broker == nil && d.Hub != nil {
		broker = d.Hub
	}
	notifSvc := &services.NotificationService{DB: db, Broker: broker}
	chatSvc := services.NewChatService(db, chatRepoShim{}, d.Generator)
	h := handlers.New(handlers.Services{
		Auth:          &services.AuthService{DB: db, Tokens: d.Tokens},
		Users:         &services.UserService{DB: db},
		Questions:     &services.QuestionService{DB: db},
		Answers:       &services.AnswerService{DB: db, Notifications: notifSvc},
		Notifications: notifSvc,
		Search:        &services.SearchService{DB: db},
		Chats:         chatSvc,
		ChatStats: func(ctx context.Context, userID string) (int64, int64, error) {
			n, last, err := repo.ChatsStats(ctx, db, userID)
			if err != nil || last == nil {
				return n, 0, err
			}
			return n, last.UnixNano(), nil
		},
	})

	if d.Hub != nil {
		r.GET("/ws", middleware.RequireAuth(), handlers.Live(d.Hub, handlers.LiveOptions{
			AllowedOrigins: cfg.AllowWSOrigin,
			PingEvery:      cfg.WSPingEvery,
		}))
	}

	var (
		authed = middleware.RequireAuth()
		view   = middleware.RequirePermission(domain.PermView)
		post   = middleware.RequirePermission(domain.PermPost)
		vote   = middleware.RequirePermission(domain.PermVote)
		admin  = middleware.RequireAdmin()
	)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		a := api.Group("/auth")
		a.POST("/register", h.Register)
		a.POST("/register/guest", h.RegisterGuest)
		a.POST("/login", h.Login)
		a.GET("/me", authed, h.Me)
		a.PUT("/profile", authed, h.UpdateProfile)
		a.POST("/upgrade-guest", authed, h.UpgradeGuest)
		a.GET("/users", admin, h.ListUsers)
		a.PUT("/users/:id/role", admin, h.SetRole)
		a.DELETE("/users/:id", admin, h.DeleteUser)
	}
	{
		u := api.Group("/users")
		u.GET("/profile", authed, h.OwnProfile)
		u.PUT("/profile", authed, h.UpdateProfile)
		u.GET("/questions", authed, h.OwnQuestions)
		u.GET("/answers", authed, h.OwnAnswers)
		u.GET("/:id", view, h.PublicProfile)
	}
	{
		q := api.Group("/questions")
		q.GET("", view, h.ListQuestions)
		q.GET("/tags/popular", view, h.PopularTags)
		q.GET("/search/comprehensive", view, h.Search)
		q.GET("/:id", view, h.GetQuestion)
		q.POST("", post, h.CreateQuestion)
		q.PUT("/:id", post, h.UpdateQuestion)
		q.DELETE("/:id", authed, h.DeleteQuestion)
		q.POST("/:id/vote", vote, h.VoteQuestion)
	}
	{
		an := api.Group("/answers")
		an.GET("/question/:questionId", view, h.ListAnswers)
		an.POST("", post, h.CreateAnswer)
		an.PUT("/:id", post, h.UpdateAnswer)
		an.DELETE("/:id", authed, h.DeleteAnswer)
		an.POST("/:id/vote", vote, h.VoteAnswer)
		an.POST("/:id/accept", authed, h.AcceptAnswer)
	}
	{
		n := api.Group("/notifications")
		n.GET("", authed, h.ListNotifications)
		n.GET("/unread-count", authed, h.UnreadCount)
		n.PATCH("/:id/read", authed, h.MarkRead)
		n.PUT("/read-all", authed, h.MarkAllRead)
		n.POST("", admin, h.CreateNotification)
		n.GET("/admin/all", admin, h.ListAllNotifications)
		n.GET("/users/all", admin, h.NotificationUsers)
		n.PATCH("/:id/unread", admin, h.MarkUnread)
		n.PATCH("/:id", admin, h.UpdateNotification)
		n.DELETE("/:id", admin, h.DeleteNotification)
	}
	{
		ch := api.Group("/chat", authed)
		ch.GET("", h.ListChats)
		ch.POST("", h.CreateChat)
		ch.GET("/:id", h.GetChat)
		ch.PATCH("/:id", h.UpdateChatTitle)
		ch.DELETE("/:id", h.DeleteChat)
		ch.POST("/:id/messages", h.SendMessage)
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
