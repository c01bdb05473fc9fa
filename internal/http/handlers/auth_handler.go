package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/services"
)

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username" binding:"max=50" example:"gopher"`
	Email    string `json:"email" binding:"max=255" example:"gopher@example.com"`
	Password string `json:"password" binding:"max=128" example:"s3cret!"`
	// Role is "user" (default) or "guest".
	Role string `json:"role" example:"user"`
}

// GuestRequest is the payload for POST /auth/register/guest.
type GuestRequest struct {
	Username string `json:"username" binding:"max=50" example:"visitor42"`
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" example:"gopher@example.com"`
	Password string `json:"password" example:"s3cret!"`
}

// ProfileRequest is a partial profile update; absent fields are unchanged.
type ProfileRequest struct {
	Username *string `json:"username" binding:"omitempty,max=50"`
	Email    *string `json:"email" binding:"omitempty,max=255"`
	Bio      *string `json:"bio" binding:"omitempty,max=500"`
	Avatar   *string `json:"avatar" binding:"omitempty,max=512"`
}

// UpgradeRequest turns a guest into a registered user.
type UpgradeRequest struct {
	Username string `json:"username" binding:"max=50"`
	Email    string `json:"email" binding:"max=255"`
	Password string `json:"password" binding:"max=128"`
}

// RoleRequest is the payload for PUT /auth/users/{id}/role.
type RoleRequest struct {
	Role string `json:"role" binding:"required" example:"admin"`
}

// AuthResponse carries a fresh session.
type AuthResponse struct {
	Message   string       `json:"message" example:"Login successful"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

// UserResponse wraps a single account.
type UserResponse struct {
	Message string       `json:"message,omitempty"`
	User    *domain.User `json:"user"`
}

// UsersResponse is a page of accounts.
type UsersResponse struct {
	Users      []domain.User `json:"users"`
	Pagination domain.Page   `json:"pagination"`
}

func sessionResponse(msg string, s *services.Session) AuthResponse {
	return AuthResponse{Message: msg, Token: s.Token, ExpiresAt: s.ExpiresAt.UTC(), User: s.User}
}

// Register godoc
// @ID          register
// @Summary     Register an account
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterRequest  true  "Account"
// @Success     201   {object}  handlers.AuthResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.auth.Register(c.Request.Context(), services.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(strings.ToLower(strings.TrimSpace(req.Role))),
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, sessionResponse("User registered successfully", s))
}

// RegisterGuest godoc
// @ID          registerGuest
// @Summary     Create a guest account from a username
// @Description Guests can browse but cannot post or vote. They may upgrade later and keep their id.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.GuestRequest  true  "Guest"
// @Success     201   {object}  handlers.AuthResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Router      /auth/register/guest [post]
func (h *Handlers) RegisterGuest(c *gin.Context) {
	var req GuestRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.auth.RegisterGuest(c.Request.Context(), req.Username)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, sessionResponse("Guest account created successfully", s))
}

// Login godoc
// @ID          login
// @Summary     Log in with email and password
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  handlers.AuthResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, sessionResponse("Login successful", s))
}

// Me godoc
// @ID          me
// @Summary     Current user
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.UserResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	me, err := h.auth.Me(c.Request.Context(), u.ID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, UserResponse{User: me})
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Update the current user's profile
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.ProfileRequest  true  "Fields to change"
// @Success     200   {object}  handlers.UserResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse
// @Router      /auth/profile [put]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req ProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.auth.UpdateProfile(c.Request.Context(), u.ID, services.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
		Bio:      req.Bio,
		Avatar:   req.Avatar,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, UserResponse{Message: "Profile updated successfully", User: updated})
}

// UpgradeGuest godoc
// @ID          upgradeGuest
// @Summary     Upgrade a guest account to a registered user
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.UpgradeRequest  true  "Credentials"
// @Success     200   {object}  handlers.AuthResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Router      /auth/upgrade-guest [post]
func (h *Handlers) UpgradeGuest(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req UpgradeRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.auth.UpgradeGuest(c.Request.Context(), u.ID, services.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, sessionResponse("Account upgraded successfully", s))
}

// ListUsers godoc
// @ID          listUsers
// @Summary     List accounts (admin)
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       search  query     string  false  "Username or email substring"
// @Param       page    query     int     false  "Page"   minimum(1) default(1)
// @Param       limit   query     int     false  "Limit"  minimum(1) maximum(100) default(20)
// @Success     200     {object}  handlers.UsersResponse
// @Failure     403     {object}  handlers.ErrorResponse
// @Router      /auth/users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	page, limit := pageQuery(c)
	users, p, err := h.auth.ListUsers(c.Request.Context(), c.Query("search"), page, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, UsersResponse{Users: users, Pagination: p})
}

// SetRole godoc
// @ID          setRole
// @Summary     Change a user's role (admin)
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                 true  "User ID"
// @Param       body  body      handlers.RoleRequest  true  "Role"
// @Success     200   {object}  handlers.UserResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /auth/users/{id}/role [put]
func (h *Handlers) SetRole(c *gin.Context) {
	var req RoleRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.auth.SetRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, UserResponse{Message: "User role updated successfully", User: u})
}

// DeleteUser godoc
// @ID          deleteUser
// @Summary     Delete a non-admin user and their content (admin)
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "User ID"
// @Success     200  {object}  handlers.MessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Cannot delete admin users"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /auth/users/{id} [delete]
func (h *Handlers) DeleteUser(c *gin.Context) {
	if err := h.auth.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}
