package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/peerq/peerq-api/internal/auth"
	"github.com/peerq/peerq-api/internal/domain"
)

const (
	userKey      = "user"
	userIDKey    = "userID"
	authStateKey = "auth.state"
)

// authState records what Authenticate found so RequireAuth can answer with
// the right message.
type authState int

const (
	authMissing authState = iota
	authInvalid
	authUnknownUser
	authOK
)

// UserLoader fetches the account behind a token subject. It returns an error
// satisfying errors.Is(err, ErrUnknownUser) when the account is gone.
type UserLoader func(ctx context.Context, id string) (*domain.User, error)

// ErrUnknownUser is returned by UserLoader implementations for missing users.
var ErrUnknownUser = errors.New("user not found")

// Authenticate resolves the caller from "Authorization: Bearer <jwt>", or
// from the token query parameter on websocket upgrades, and attaches the
// loaded user to the context. It never rejects a request; RequireAuth and
// RequirePermission do.
func Authenticate(tokens *auth.Tokens, load UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c.GetHeader("Authorization"))
		if raw == "" && websocket.IsWebSocketUpgrade(c.Request) {
			raw = strings.TrimSpace(c.Query("token"))
		}
		if raw == "" {
			c.Set(authStateKey, authMissing)
			c.Next()
			return
		}
		claims, err := tokens.Parse(raw)
		if err != nil {
			c.Set(authStateKey, authInvalid)
			c.Next()
			return
		}
		u, err := load(c.Request.Context(), claims.UserID)
		switch {
		case errors.Is(err, ErrUnknownUser):
			c.Set(authStateKey, authUnknownUser)
		case err != nil:
			LoggerFrom(c).Error().Err(err).Msg("load authenticated user")
			abortJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		default:
			c.Set(authStateKey, authOK)
			c.Set(userKey, u)
			c.Set(userIDKey, u.ID)
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

// RequireAuth rejects anonymous callers with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireUser(c) {
			return
		}
		c.Next()
	}
}

// RequirePermission gates a route on the caller's role. PermView is open to
// anonymous callers; every other permission needs an authenticated user
// whose role holds it.
func RequirePermission(p domain.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok && domain.CanAnonymous(p) {
			c.Next()
			return
		}
		if !requireUser(c) {
			return
		}
		u, _ := CurrentUser(c)
		if !u.Role.Can(p) {
			abortJSON(c, http.StatusForbidden, "forbidden", deniedMessage(u.Role, p))
			return
		}
		c.Next()
	}
}

// RequireAdmin is RequirePermission(PermModerate).
func RequireAdmin() gin.HandlerFunc { return RequirePermission(domain.PermModerate) }

func requireUser(c *gin.Context) bool {
	if _, ok := CurrentUser(c); ok {
		return true
	}
	state, _ := c.Get(authStateKey)
	msg := "no token provided"
	switch state {
	case authInvalid:
		msg = "invalid token"
	case authUnknownUser:
		msg = "user not found"
	}
	abortJSON(c, http.StatusUnauthorized, "unauthorized", msg)
	return false
}

func deniedMessage(r domain.Role, p domain.Permission) string {
	if r == domain.RoleGuest {
		switch p {
		case domain.PermPost:
			return "guest users cannot post content"
		case domain.PermVote:
			return "guest users cannot vote"
		}
	}
	if p == domain.PermModerate {
		return "admin access required"
	}
	return "insufficient permissions"
}

func bearer(h string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
