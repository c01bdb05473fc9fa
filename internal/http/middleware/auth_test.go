package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/peerq/peerq-api/internal/auth"
	"github.com/peerq/peerq-api/internal/domain"
)

type authFixture struct {
	tokens *auth.Tokens
	users  map[string]*domain.User
	r      *gin.Engine
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &authFixture{
		tokens: auth.NewTokens("test-secret", time.Hour, time.Hour),
		users: map[string]*domain.User{
			"g": {ID: "g", Username: "guest", Role: domain.RoleGuest},
			"u": {ID: "u", Username: "user", Role: domain.RoleUser},
			"a": {ID: "a", Username: "admin", Role: domain.RoleAdmin},
		},
	}
	load := func(_ context.Context, id string) (*domain.User, error) {
		if u, ok := f.users[id]; ok {
			return u, nil
		}
		return nil, fmt.Errorf("load %s: %w", id, ErrUnknownUser)
	}
	r := gin.New()
	r.Use(RequestID(), Authenticate(f.tokens, load))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/view", RequirePermission(domain.PermView), ok)
	r.GET("/me", RequireAuth(), ok)
	r.POST("/post", RequirePermission(domain.PermPost), ok)
	r.POST("/vote", RequirePermission(domain.PermVote), ok)
	r.GET("/admin", RequireAdmin(), ok)
	r.GET("/ws", RequireAuth(), ok)
	f.r = r
	return f
}

func (f *authFixture) token(t *testing.T, id string) string {
	t.Helper()
	u := f.users[id]
	if u == nil {
		u = &domain.User{ID: id, Role: domain.RoleUser}
	}
	tok, _, err := f.tokens.Issue(u)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (f *authFixture) do(method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	f.r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_Messages(t *testing.T) {
	f := newAuthFixture(t)
	cases := []struct {
		token string
		code  int
		msg   string
	}{
		{"", http.StatusUnauthorized, "no token provided"},
		{"garbage", http.StatusUnauthorized, "invalid token"},
		{f.token(t, "ghost"), http.StatusUnauthorized, "user not found"},
		{f.token(t, "u"), http.StatusOK, ""},
	}
	for _, tc := range cases {
		w := f.do(http.MethodGet, "/me", tc.token)
		if w.Code != tc.code {
			t.Fatalf("token %.10q: status %d; want %d", tc.token, w.Code, tc.code)
		}
		if tc.msg != "" {
			if body := decodeEnvelope(t, w); body["message"] != tc.msg || body["code"] != "unauthorized" {
				t.Fatalf("body = %v; want message %q", body, tc.msg)
			}
		}
	}
}

func TestRequirePermission_Matrix(t *testing.T) {
	f := newAuthFixture(t)
	g, u, a := f.token(t, "g"), f.token(t, "u"), f.token(t, "a")

	cases := []struct {
		method, path, token string
		code                int
		msg                 string
	}{
		{http.MethodGet, "/view", "", http.StatusOK, ""},
		{http.MethodGet, "/view", g, http.StatusOK, ""},
		{http.MethodPost, "/post", "", http.StatusUnauthorized, "no token provided"},
		{http.MethodPost, "/post", g, http.StatusForbidden, "guest users cannot post content"},
		{http.MethodPost, "/vote", g, http.StatusForbidden, "guest users cannot vote"},
		{http.MethodPost, "/post", u, http.StatusOK, ""},
		{http.MethodPost, "/vote", u, http.StatusOK, ""},
		{http.MethodGet, "/admin", u, http.StatusForbidden, "admin access required"},
		{http.MethodGet, "/admin", g, http.StatusForbidden, "admin access required"},
		{http.MethodGet, "/admin", a, http.StatusOK, ""},
	}
	for _, tc := range cases {
		w := f.do(tc.method, tc.path, tc.token)
		if w.Code != tc.code {
			t.Fatalf("%s %s: status %d; want %d", tc.method, tc.path, w.Code, tc.code)
		}
		if tc.msg != "" {
			if body := decodeEnvelope(t, w); body["message"] != tc.msg {
				t.Fatalf("%s %s: message %q; want %q", tc.method, tc.path, body["message"], tc.msg)
			}
		}
	}
}

func TestAuthenticate_QueryTokenOnlyOnUpgrade(t *testing.T) {
	f := newAuthFixture(t)
	tok := f.token(t, "u")

	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("plain GET with query token = %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	f.r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upgrade with query token = %d", w.Code)
	}
}
