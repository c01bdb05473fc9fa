// Package services holds the business rules of the forum: accounts, questions,
// answers, votes, notifications, search and the chat assistant.
//
// This file centralizes service-level error values. Handlers translate them
// into status codes and user-facing messages; services never decide HTTP
// semantics themselves.
package services

import "errors"

// Lookup errors.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrAnswerNotFound       = errors.New("answer not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrTargetUserNotFound   = errors.New("target user not found")

	// ErrChatNotFound indicates that the requested chat does not exist or is not
	// accessible to the current user.
	ErrChatNotFound = errors.New("chat not found")
)

// Authorization errors.
var (
	// ErrForbidden is returned when the actor is neither the owner nor an admin.
	ErrForbidden = errors.New("not authorized")

	// ErrOnlyAuthorCanAccept guards answer acceptance.
	ErrOnlyAuthorCanAccept = errors.New("only question author can accept answers")

	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrNotGuest          = errors.New("only guest users can upgrade their account")
	ErrCannotDeleteAdmin = errors.New("cannot delete admin users")
)

// Validation errors. Handlers surface their message verbatim with a 400.
var (
	ErrValidation    = errors.New("validation failed")
	ErrInvalidVote   = errors.New("voteType must be upvote or downvote")
	ErrInvalidRole   = errors.New("invalid role")
	ErrInvalidType   = errors.New("invalid notification type")
	ErrQueryTooShort = errors.New("search query must be at least 2 characters")

	// ErrUsernameTaken and ErrEmailTaken report unique-key conflicts.
	ErrUserExists    = errors.New("user with this email or username already exists")
	ErrUsernameTaken = errors.New("username already exists")
	ErrEmailTaken    = errors.New("email already exists")

	// ErrEmptyPrompt is returned when a chat message is blank.
	ErrEmptyPrompt = errors.New("message is required")

	// ErrTooLong is returned when a chat message exceeds the configured limit.
	ErrTooLong = errors.New("message too long")
)

// ValidationError carries a field-specific message and matches ErrValidation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return &ValidationError{Msg: msg} }
