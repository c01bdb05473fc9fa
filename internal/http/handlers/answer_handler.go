package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/peerq/peerq-api/internal/domain"
)

// CreateAnswerRequest is the payload of POST /answers.
type CreateAnswerRequest struct {
	QuestionID string `json:"questionId" binding:"required" example:"3f1c2b9e-6a0d-4c59-8d1e-2c7b5a9f0e11"`
	Content    string `json:"content" example:"<p>Pass a context and select on ctx.Done().</p>"`
}

// UpdateAnswerRequest is the payload of PUT /answers/{id}.
type UpdateAnswerRequest struct {
	Content string `json:"content"`
}

// AnswerResponse wraps a single answer.
type AnswerResponse struct {
	Message string             `json:"message,omitempty"`
	Answer  *domain.AnswerView `json:"answer"`
}

// ListAnswers godoc
// @ID          listAnswers
// @Summary     Answers of a question, accepted first then by votes
// @Tags        Answers
// @Produce     json
// @Param       questionId  path      string  true  "Question ID"
// @Success     200         {object}  handlers.AnswersResponse
// @Failure     404         {object}  handlers.ErrorResponse
// @Router      /answers/question/{questionId} [get]
func (h *Handlers) ListAnswers(c *gin.Context) {
	as, err := h.answers.ListForQuestion(c.Request.Context(), c.Param("questionId"))
	if err != nil {
		failErr(c, err)
		return
	}
	if as == nil {
		as = []domain.AnswerView{}
	}
	ok(c, http.StatusOK, AnswersResponse{Answers: as})
}

// CreateAnswer godoc
// @ID          createAnswer
// @Summary     Answer a question
// @Description Notifies the question author unless they answered their own question.
// @Tags        Answers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header    string                        false  "Client retry key"  format(uuid)
// @Param       body             body      handlers.CreateAnswerRequest  true   "Answer"
// @Success     201              {object}  handlers.AnswerResponse
// @Failure     400              {object}  handlers.ErrorResponse
// @Failure     403              {object}  handlers.ErrorResponse  "Guests cannot post"
// @Failure     404              {object}  handlers.ErrorResponse
// @Router      /answers [post]
func (h *Handlers) CreateAnswer(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req CreateAnswerRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.answers.Create(c.Request.Context(), u, req.QuestionID, req.Content)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, AnswerResponse{Message: "Answer posted successfully", Answer: a})
}

// UpdateAnswer godoc
// @ID          updateAnswer
// @Summary     Edit an answer (author or admin)
// @Tags        Answers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                        true  "Answer ID"
// @Param       body  body      handlers.UpdateAnswerRequest  true  "New content"
// @Success     200   {object}  handlers.AnswerResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /answers/{id} [put]
func (h *Handlers) UpdateAnswer(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req UpdateAnswerRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.answers.Update(c.Request.Context(), u, c.Param("id"), req.Content)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AnswerResponse{Message: "Answer updated successfully", Answer: a})
}

// DeleteAnswer godoc
// @ID          deleteAnswer
// @Summary     Delete an answer (author or admin)
// @Description Deleting the accepted answer clears the question's acceptance.
// @Tags        Answers
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Answer ID"
// @Success     200  {object}  handlers.MessageResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /answers/{id} [delete]
func (h *Handlers) DeleteAnswer(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	if err := h.answers.Delete(c.Request.Context(), u, c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "Answer deleted successfully"})
}

// VoteAnswer godoc
// @ID          voteAnswer
// @Summary     Toggle a vote on an answer
// @Tags        Answers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                true  "Answer ID"
// @Param       body  body      handlers.VoteRequest  true  "upvote or downvote"
// @Success     200   {object}  handlers.VoteResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse  "Guests cannot vote"
// @Router      /answers/{id}/vote [post]
func (h *Handlers) VoteAnswer(c *gin.Context) {
	h.vote(c, h.answers.Vote)
}

// AcceptAnswer godoc
// @ID          acceptAnswer
// @Summary     Accept an answer (question author or admin)
// @Description Unaccepts any previously accepted answer of the same question.
// @Tags        Answers
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Answer ID"
// @Success     200  {object}  handlers.AnswerResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /answers/{id}/accept [post]
func (h *Handlers) AcceptAnswer(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	a, err := h.answers.Accept(c.Request.Context(), u, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AnswerResponse{Message: "Answer accepted successfully", Answer: a})
}
