// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by every endpoint: the error
// envelope, the mapping from service errors to status codes, and JSON body
// binding that reports oversize bodies as 413.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/peerq/peerq-api/internal/http/middleware"
	"github.com/peerq/peerq-api/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"question not found"`
}

// MessageResponse is returned by operations that have nothing else to say.
type MessageResponse struct {
	Message string `json:"message" example:"Question deleted successfully"`
}

// fail aborts the request with a structured error. Server errors are logged
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// failErr translates a service error into the envelope. Unknown errors are
// 500s whose detail stays in the log.
func failErr(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, ErrCodeInternal
	msg := "internal server error"

	switch {
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrAnswerNotFound),
		errors.Is(err, services.ErrNotificationNotFound),
		errors.Is(err, services.ErrTargetUserNotFound),
		errors.Is(err, services.ErrChatNotFound):
		status, code, msg = http.StatusNotFound, ErrCodeNotFound, err.Error()

	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrOnlyAuthorCanAccept):
		status, code, msg = http.StatusForbidden, ErrCodeForbidden, err.Error()

	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidVote),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidType),
		errors.Is(err, services.ErrQueryTooShort),
		errors.Is(err, services.ErrEmptyPrompt),
		errors.Is(err, services.ErrTooLong):
		status, code, msg = http.StatusBadRequest, ErrCodeValidation, err.Error()

	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUserExists),
		errors.Is(err, services.ErrUsernameTaken),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrNotGuest),
		errors.Is(err, services.ErrCannotDeleteAdmin):
		status, code, msg = http.StatusBadRequest, ErrCodeBadRequest, err.Error()
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		middleware.LoggerFrom(c).Error().Err(err).Msg("request failed")
	}
	fail(c, status, code, msg)
}

// bindJSON decodes the body into dst and writes the error response itself
// when that fails. Callers return when it reports false.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var tooBig *http.MaxBytesError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &tooBig):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
	case errors.As(err, &verrs):
		fail(c, http.StatusBadRequest, ErrCodeValidation, validationMessage(verrs))
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
	}
	return false
}
