package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/services"
)

// ProfileResponse wraps a public profile.
type ProfileResponse struct {
	User *services.PublicProfile `json:"user"`
}

// QuestionsResponse is a page of questions.
type QuestionsResponse struct {
	Questions  []domain.QuestionView `json:"questions"`
	Pagination domain.Page           `json:"pagination"`
}

// AnswersResponse is a list of answers; Pagination is omitted for
// unpaginated lists.
type AnswersResponse struct {
	Answers    []domain.AnswerView `json:"answers"`
	Pagination *domain.Page        `json:"pagination,omitempty"`
}

// OwnProfile godoc
// @ID          ownProfile
// @Summary     The current user's account
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.UserResponse
// @Router      /users/profile [get]
func (h *Handlers) OwnProfile(c *gin.Context) { h.Me(c) }

// OwnQuestions godoc
// @ID          ownQuestions
// @Summary     Questions asked by the current user
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Param       page   query     int  false  "Page"   minimum(1) default(1)
// @Param       limit  query     int  false  "Limit"  minimum(1) maximum(100) default(20)
// @Success     200    {object}  handlers.QuestionsResponse
// @Router      /users/questions [get]
func (h *Handlers) OwnQuestions(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	page, limit := pageQuery(c)
	qs, p, err := h.users.Questions(c.Request.Context(), u.ID, page, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, QuestionsResponse{Questions: qs, Pagination: p})
}

// OwnAnswers godoc
// @ID          ownAnswers
// @Summary     Answers written by the current user, with question titles
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Param       page   query     int  false  "Page"   minimum(1) default(1)
// @Param       limit  query     int  false  "Limit"  minimum(1) maximum(100) default(20)
// @Success     200    {object}  handlers.AnswersResponse
// @Router      /users/answers [get]
func (h *Handlers) OwnAnswers(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	page, limit := pageQuery(c)
	as, p, err := h.users.Answers(c.Request.Context(), u.ID, page, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AnswersResponse{Answers: as, Pagination: &p})
}

// PublicProfile godoc
// @ID          publicProfile
// @Summary     Public profile of a user
// @Tags        Users
// @Produce     json
// @Param       id   path      string  true  "User ID"
// @Success     200  {object}  handlers.ProfileResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/{id} [get]
func (h *Handlers) PublicProfile(c *gin.Context) {
	p, err := h.users.Profile(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ProfileResponse{User: p})
}
