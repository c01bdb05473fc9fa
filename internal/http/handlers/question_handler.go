package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/repo"
	"github.com/peerq/peerq-api/internal/services"
	"github.com/peerq/peerq-api/internal/utils"
)

// QuestionRequest is the create/update payload. On update, an absent tags
// field keeps the current tags.
type QuestionRequest struct {
	Title       string   `json:"title" binding:"max=300" example:"How do I cancel a goroutine?"`
	Description string   `json:"description" example:"<p>I start a worker and ...</p>"`
	Tags        []string `json:"tags" binding:"omitempty,max=5,dive,max=30,tag" example:"go,concurrency"`
}

// VoteRequest is the payload of the vote endpoints.
type VoteRequest struct {
	VoteType string `json:"voteType" example:"upvote"`
}

// QuestionResponse wraps a single question.
type QuestionResponse struct {
	Message  string               `json:"message,omitempty"`
	Question *domain.QuestionView `json:"question"`
}

// QuestionDetailResponse is a question with its answers.
type QuestionDetailResponse struct {
	Question *domain.QuestionView `json:"question"`
	Answers  []domain.AnswerView  `json:"answers"`
}

// VoteResponse reports the target's votes after a toggle.
type VoteResponse struct {
	Message string `json:"message" example:"Vote updated successfully"`
	domain.VoteResult
}

// TagsResponse lists tags with usage counts.
type TagsResponse struct {
	Tags []domain.TagCount `json:"tags"`
}

// ListQuestions godoc
// @ID          listQuestions
// @Summary     List questions
// @Tags        Questions
// @Produce     json
// @Param       page    query     int     false  "Page"   minimum(1) default(1)
// @Param       limit   query     int     false  "Limit"  minimum(1) maximum(100) default(10)
// @Param       sort    query     string  false  "Order"  Enums(newest, oldest, votes, views) default(newest)
// @Param       tag     query     string  false  "Only questions with this tag"
// @Param       search  query     string  false  "Substring of title, description or tags"
// @Success     200     {object}  handlers.QuestionsResponse
// @Router      /questions [get]
func (h *Handlers) ListQuestions(c *gin.Context) {
	page, limit := pageQuery(c)
	f := repo.QuestionFilter{
		Tag:    strings.ToLower(strings.TrimSpace(c.Query("tag"))),
		Search: strings.TrimSpace(c.Query("search")),
		Sort:   c.DefaultQuery("sort", repo.SortNewest),
	}
	qs, p, err := h.questions.List(c.Request.Context(), f, page, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, QuestionsResponse{Questions: qs, Pagination: p})
}

// PopularTags godoc
// @ID          popularTags
// @Summary     The 20 most used tags
// @Tags        Questions
// @Produce     json
// @Success     200  {object}  handlers.TagsResponse
// @Router      /questions/tags/popular [get]
func (h *Handlers) PopularTags(c *gin.Context) {
	tags, err := h.questions.PopularTags(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if tags == nil {
		tags = []domain.TagCount{}
	}
	ok(c, http.StatusOK, TagsResponse{Tags: tags})
}

// Search godoc
// @ID          comprehensiveSearch
// @Summary     Search questions and answers with recommendations
// @Tags        Questions
// @Produce     json
// @Param       q      query     string  true   "Query (at least 2 characters)"
// @Param       limit  query     int     false  "Max results per kind"  minimum(1) maximum(20) default(5)
// @Success     200    {object}  services.SearchResult
// @Failure     400    {object}  handlers.ErrorResponse
// @Router      /questions/search/comprehensive [get]
func (h *Handlers) Search(c *gin.Context) {
	res, err := h.search.Comprehensive(c.Request.Context(), c.Query("q"), utils.AtoiDefault(c.Query("limit"), 0))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// GetQuestion godoc
// @ID          getQuestion
// @Summary     Get a question with its answers
// @Description Increments the view counter. Answers are ordered accepted first, then by votes.
// @Tags        Questions
// @Produce     json
// @Param       id   path      string  true  "Question ID"
// @Success     200  {object}  handlers.QuestionDetailResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /questions/{id} [get]
func (h *Handlers) GetQuestion(c *gin.Context) {
	d, err := h.questions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, QuestionDetailResponse{Question: &d.QuestionView, Answers: d.Answers})
}

// CreateQuestion godoc
// @ID          createQuestion
// @Summary     Ask a question
// @Tags        Questions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header    string                    false  "Client retry key"  format(uuid)
// @Param       body             body      handlers.QuestionRequest  true   "Question"
// @Success     201              {object}  handlers.QuestionResponse
// @Failure     400              {object}  handlers.ErrorResponse
// @Failure     401              {object}  handlers.ErrorResponse
// @Failure     403              {object}  handlers.ErrorResponse  "Guests cannot post"
// @Router      /questions [post]
func (h *Handlers) CreateQuestion(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req QuestionRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.questions.Create(c.Request.Context(), u.ID, services.QuestionInput{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, QuestionResponse{Message: "Question created successfully", Question: q})
}

// UpdateQuestion godoc
// @ID          updateQuestion
// @Summary     Edit a question (author or admin)
// @Tags        Questions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                    true  "Question ID"
// @Param       body  body      handlers.QuestionRequest  true  "Question"
// @Success     200   {object}  handlers.QuestionResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /questions/{id} [put]
func (h *Handlers) UpdateQuestion(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req QuestionRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.questions.Update(c.Request.Context(), u, c.Param("id"), services.QuestionInput{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, QuestionResponse{Message: "Question updated successfully", Question: q})
}

// DeleteQuestion godoc
// @ID          deleteQuestion
// @Summary     Delete a question and its answers (author or admin)
// @Tags        Questions
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Question ID"
// @Success     200  {object}  handlers.MessageResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /questions/{id} [delete]
func (h *Handlers) DeleteQuestion(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	if err := h.questions.Delete(c.Request.Context(), u, c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "Question deleted successfully"})
}

// VoteQuestion godoc
// @ID          voteQuestion
// @Summary     Toggle a vote on a question
// @Description Voting the same way twice removes the vote; the opposite way flips it.
// @Tags        Questions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                true  "Question ID"
// @Param       body  body      handlers.VoteRequest  true  "upvote or downvote"
// @Success     200   {object}  handlers.VoteResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse  "Guests cannot vote"
// @Router      /questions/{id}/vote [post]
func (h *Handlers) VoteQuestion(c *gin.Context) {
	h.vote(c, h.questions.Vote)
}

type voteFunc func(ctx context.Context, userID, id, voteType string) (domain.VoteResult, error)

func (h *Handlers) vote(c *gin.Context, fn voteFunc) {
	u, found := actor(c)
	if !found {
		return
	}
	var req VoteRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := fn(c.Request.Context(), u.ID, c.Param("id"), req.VoteType)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, VoteResponse{Message: "Vote updated successfully", VoteResult: res})
}
