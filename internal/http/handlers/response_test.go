package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/peerq/peerq-api/internal/services"
)

func Test_fail_500_LogsAndBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// capture logs from LoggerFrom(c)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	// simulate RequestID + request-scoped logger
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-500")
		c.Set("logger", &logger)
		c.Next()
	})

	r.GET("/boom", func(c *gin.Context) {
		fail(c, http.StatusInternalServerError, "internal_error", "kaboom")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.RequestID != "rid-500" || resp.Code != "internal_error" || resp.Message != "kaboom" {
		t.Fatalf("unexpected body: %+v", resp)
	}

	// ensure something was logged at error level
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error log, got: %s", buf.String())
	}
}

func Test_failErr_Mapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
		code   string
		msg    string
	}{
		{services.ErrQuestionNotFound, http.StatusNotFound, ErrCodeNotFound, "question not found"},
		{fmt.Errorf("load: %w", services.ErrChatNotFound), http.StatusNotFound, ErrCodeNotFound, "load: chat not found"},
		{services.ErrForbidden, http.StatusForbidden, ErrCodeForbidden, "not authorized"},
		{services.ErrOnlyAuthorCanAccept, http.StatusForbidden, ErrCodeForbidden, "only question author can accept answers"},
		{&services.ValidationError{Msg: "title is required"}, http.StatusBadRequest, ErrCodeValidation, "title is required"},
		{services.ErrInvalidVote, http.StatusBadRequest, ErrCodeValidation, "voteType must be upvote or downvote"},
		{services.ErrInvalidCredentials, http.StatusBadRequest, ErrCodeBadRequest, "invalid credentials"},
		{services.ErrUsernameTaken, http.StatusBadRequest, ErrCodeBadRequest, "username already exists"},
		{errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) { failErr(c, tc.err) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			if w.Code != tc.status {
				t.Fatalf("status=%d want %d", w.Code, tc.status)
			}
			var er ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
				t.Fatalf("json: %v", err)
			}
			if er.Code != tc.code || er.Message != tc.msg {
				t.Fatalf("got %+v", er)
			}
		})
	}
}

func Test_bindJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	type body struct {
		Title string `json:"title" binding:"required,max=5"`
	}
	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 64)
		var b body
		if !bindJSON(c, &b) {
			return
		}
		ok(c, http.StatusOK, b)
	})

	cases := []struct {
		name   string
		body   string
		status int
		code   string
		msg    string
	}{
		{"ok", `{"title":"hi"}`, http.StatusOK, "", ""},
		{"malformed", `{"title":`, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body"},
		{"missing", `{}`, http.StatusBadRequest, ErrCodeValidation, "title is required"},
		{"too long field", `{"title":"abcdefgh"}`, http.StatusBadRequest, ErrCodeValidation, "title must be at most 5 characters"},
		{"too large", `{"title":"` + strings.Repeat("a", 200) + `"}`, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != tc.status {
				t.Fatalf("status=%d want %d body=%s", w.Code, tc.status, w.Body.String())
			}
			if tc.code == "" {
				return
			}
			var er ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
				t.Fatalf("json: %v", err)
			}
			if er.Code != tc.code || er.Message != tc.msg {
				t.Fatalf("got %+v", er)
			}
		})
	}
}
