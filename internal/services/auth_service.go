package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/auth"
	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/repo"
	"github.com/peerq/peerq-api/internal/utils"
)

// Username limits.
const (
	MinUsernameLen = 3
	MaxUsernameLen = 50
	MaxBioLen      = 500
)

// guestEmailDomain marks placeholder addresses assigned to guests.
const guestEmailDomain = "@peerq.local"

// AuthService handles accounts: registration, login, profile and the admin
// user management operations.
type AuthService struct {
	DB     *gorm.DB
	Tokens *auth.Tokens
	Now    func() time.Time
}

// Session is a signed-in user with a fresh token.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

// Registration is the input of Register and UpgradeGuest.
type Registration struct {
	Username string
	Email    string
	Password string
	Role     domain.Role
}

// ProfileUpdate is a partial profile edit; nil fields are untouched.
type ProfileUpdate struct {
	Username *string
	Email    *string
	Bio      *string
	Avatar   *string
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Register creates a user (or guest) account with a password.
func (s *AuthService) Register(ctx context.Context, in Registration) (*Session, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Register")
	defer span.End()

	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	if in.Role != domain.RoleUser && in.Role != domain.RoleGuest {
		return nil, invalid(`invalid role. Must be "user" or "guest"`)
	}
	username, err := checkUsername(in.Username)
	if err != nil {
		return nil, err
	}
	email, err := checkEmail(in.Email)
	if err != nil {
		return nil, err
	}
	conflict, err := repo.FindUserConflict(ctx, s.DB, username, email, "")
	if err != nil {
		return nil, err
	}
	if conflict != "" {
		return nil, ErrUserExists
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, invalid(err.Error())
		}
		return nil, err
	}
	u := &domain.User{Username: username, Email: email, PasswordHash: hash, Role: in.Role}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return s.session(u)
}

// RegisterGuest creates a guest account from a username alone. The guest
// gets a placeholder email and an unguessable password.
func (s *AuthService) RegisterGuest(ctx context.Context, username string) (*Session, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "RegisterGuest")
	defer span.End()

	if strings.TrimSpace(username) == "" {
		return nil, invalid("username is required")
	}
	username, err := checkUsername(username)
	if err != nil {
		return nil, err
	}
	if _, err := repo.GetUserByUsername(ctx, s.DB, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	pw, err := auth.RandomPassword()
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(pw)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Username:     username,
		Email:        fmt.Sprintf("guest_%d%s", s.now().UnixNano(), guestEmailDomain),
		PasswordHash: hash,
		Role:         domain.RoleGuest,
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return s.session(u)
}

// Login verifies an email/password pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Login")
	defer span.End()

	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

// Me returns the user with id.
func (s *AuthService) Me(ctx context.Context, id string) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// UpdateProfile applies p to the user's own profile.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, p ProfileUpdate) (*domain.User, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "UpdateProfile",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	fields := map[string]any{}
	var username, email string
	if p.Username != nil && strings.TrimSpace(*p.Username) != "" {
		v, err := checkUsername(*p.Username)
		if err != nil {
			return nil, err
		}
		username = v
		fields["username"] = v
	}
	if p.Email != nil && strings.TrimSpace(*p.Email) != "" {
		v, err := checkEmail(*p.Email)
		if err != nil {
			return nil, err
		}
		email = v
		fields["email"] = v
	}
	if p.Bio != nil {
		bio := strings.TrimSpace(*p.Bio)
		if utf8.RuneCountInString(bio) > MaxBioLen {
			return nil, invalid("bio must be at most 500 characters")
		}
		fields["bio"] = bio
	}
	if p.Avatar != nil {
		fields["avatar"] = strings.TrimSpace(*p.Avatar)
	}
	if len(fields) == 0 {
		return s.Me(ctx, userID)
	}
	conflict, err := repo.FindUserConflict(ctx, s.DB, username, email, userID)
	if err != nil {
		return nil, err
	}
	switch conflict {
	case "username":
		return nil, ErrUsernameTaken
	case "email":
		return nil, ErrEmailTaken
	}
	if err := repo.UpdateUserFields(ctx, s.DB, userID, fields); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repo.ErrDuplicate):
			return nil, ErrUserExists
		}
		return nil, err
	}
	return s.Me(ctx, userID)
}

// UpgradeGuest turns a guest into a regular user in place, keeping the ID
// and all content. Username is optional; email and password are required.
func (s *AuthService) UpgradeGuest(ctx context.Context, userID string, in Registration) (*Session, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "UpgradeGuest",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != domain.RoleGuest {
		return nil, ErrNotGuest
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, invalid("email and password are required")
	}
	email, err := checkEmail(in.Email)
	if err != nil {
		return nil, err
	}
	username := ""
	if strings.TrimSpace(in.Username) != "" {
		if username, err = checkUsername(in.Username); err != nil {
			return nil, err
		}
	}
	switch conflict, err := repo.FindUserConflict(ctx, s.DB, username, email, userID); {
	case err != nil:
		return nil, err
	case conflict == "email":
		return nil, ErrEmailTaken
	case conflict == "username":
		return nil, ErrUsernameTaken
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, invalid(err.Error())
		}
		return nil, err
	}
	fields := map[string]any{"email": email, "password_hash": hash, "role": domain.RoleUser}
	if username != "" {
		fields["username"] = username
	}
	if err := repo.UpdateUserFields(ctx, s.DB, userID, fields); err != nil {
		return nil, err
	}
	if u, err = s.Me(ctx, userID); err != nil {
		return nil, err
	}
	return s.session(u)
}

// ListUsers pages through accounts, optionally filtered by username/email.
func (s *AuthService) ListUsers(ctx context.Context, search string, page, limit int) ([]domain.User, domain.Page, error) {
	page, limit, offset := utils.Paginate(page, limit, 20, 100)
	users, total, err := repo.ListUsers(ctx, s.DB, search, offset, limit)
	if err != nil {
		return nil, domain.Page{}, err
	}
	return users, domain.NewPage(page, limit, total), nil
}

// SetRole changes a user's role (admin).
func (s *AuthService) SetRole(ctx context.Context, id, role string) (*domain.User, error) {
	r, err := domain.ParseRole(role)
	if err != nil {
		return nil, ErrInvalidRole
	}
	if err := repo.UpdateUserFields(ctx, s.DB, id, map[string]any{"role": r}); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.Me(ctx, id)
}

// DeleteUser removes a non-admin account together with everything it owns:
// questions (with their answers), answers, votes, chats and targeted
// notifications. Cached vote counts touched by the user's votes are
// recomputed.
func (s *AuthService) DeleteUser(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "DeleteUser",
		trace.WithAttributes(attribute.String("user.id", id)))
	defer span.End()

	u, err := s.Me(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == domain.RoleAdmin {
		return ErrCannotDeleteAdmin
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		qids, err := repo.QuestionIDsByAuthor(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, qid := range qids {
			if err := repo.DeleteQuestion(ctx, tx, qid); err != nil {
				return err
			}
		}
		var aids []string
		if err := tx.Model(&domain.Answer{}).Where("author_id = ?", id).Pluck("id", &aids).Error; err != nil {
			return err
		}
		for _, aid := range aids {
			a, err := repo.GetAnswer(ctx, tx, aid)
			if err != nil {
				return err
			}
			if err := deleteAnswerTx(ctx, tx, a); err != nil {
				return err
			}
		}
		votes, err := repo.DeleteVotesByUser(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, v := range votes {
			if _, err := recountVotes(ctx, tx, v.TargetType, v.TargetID); err != nil {
				return err
			}
		}
		if err := repo.DeleteChatsForUser(ctx, tx, id); err != nil {
			return err
		}
		if err := repo.DeleteNotificationsForUser(ctx, tx, id); err != nil {
			return err
		}
		return repo.DeleteUser(ctx, tx, id)
	})
}

// AdminReputation is the reputation granted to the bootstrap admin.
const AdminReputation = 1000

// EnsureAdmin creates the admin account or, when a user with the same
// username or email exists, promotes it to admin. An existing password is
// left untouched. created reports whether a new row was inserted.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) (u *domain.User, created bool, err error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "EnsureAdmin")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	u, err = repo.GetUserByEmail(ctx, s.DB, email)
	if errors.Is(err, repo.ErrNotFound) {
		u, err = repo.GetUserByUsername(ctx, s.DB, strings.TrimSpace(username))
	}
	switch {
	case err == nil:
		fields := map[string]any{"role": domain.RoleAdmin}
		if u.Reputation < AdminReputation {
			fields["reputation"] = AdminReputation
		}
		if err := repo.UpdateUserFields(ctx, s.DB, u.ID, fields); err != nil {
			return nil, false, err
		}
		u, err = s.Me(ctx, u.ID)
		return u, false, err
	case !errors.Is(err, repo.ErrNotFound):
		return nil, false, err
	}

	name, err := checkUsername(username)
	if err != nil {
		return nil, false, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, false, invalid(err.Error())
	}
	u = &domain.User{
		Username:     name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Reputation:   AdminReputation,
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (s *AuthService) session(u *domain.User) (*Session, error) {
	tok, exp, err := s.Tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, ExpiresAt: exp, User: u}, nil
}

func checkUsername(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", invalid("username is required")
	}
	n := utf8.RuneCountInString(v)
	if n < MinUsernameLen || n > MaxUsernameLen {
		return "", invalid(fmt.Sprintf("username must be between %d and %d characters", MinUsernameLen, MaxUsernameLen))
	}
	return v, nil
}

func checkEmail(raw string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return "", invalid("email is required")
	}
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return "", invalid("email is invalid")
	}
	return v, nil
}
