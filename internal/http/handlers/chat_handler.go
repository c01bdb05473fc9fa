// Chat HTTP handlers.
//
// This file exposes the assistant chat endpoints:
//   - GET    /chat                (list, ETag support)
//   - POST   /chat                (create)
//   - GET    /chat/{id}           (chat with messages)
//   - PATCH  /chat/{id}           (rename)
//   - DELETE /chat/{id}
//   - POST   /chat/{id}/messages  (assistant exchange)
//
// Every chat is owned by one user; other users get 404.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/peerq/peerq-api/internal/assistant"
	"github.com/peerq/peerq-api/internal/domain"
)

//
// DTOs
//

// CreateChatRequest is the JSON payload for creating a chat.
type CreateChatRequest struct {
	// Title optionally sets the chat title; "New Chat" is used when empty.
	Title string `json:"title" example:"Goroutine leaks"`
}

// UpdateChatTitleRequest is the JSON payload for renaming a chat.
type UpdateChatTitleRequest struct {
	Title string `json:"title" binding:"max=255" example:"Context cancellation"`
}

// SendMessageRequest is the user turn of an exchange.
type SendMessageRequest struct {
	Message string `json:"message" example:"How do I stop a worker goroutine?"`
}

// SendMessageResponse carries the updated chat and the assistant reply.
type SendMessageResponse struct {
	Message    string               `json:"message" example:"Message sent successfully"`
	Chat       *domain.Chat         `json:"chat"`
	AIResponse string               `json:"aiResponse"`
	Validation assistant.Validation `json:"validation"`
	// Fallback is set when the reply is canned rather than generated.
	Fallback bool `json:"fallback"`
}

//
// Handlers
//

// ListChats godoc
// @ID          listChats
// @Summary     List the caller's chats, most recently active first
// @Description Supports weak ETag via If-None-Match and may return 304. The total is in X-Total-Count.
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false  "Page"   minimum(1) default(1)
// @Param       limit          query   int     false  "Limit"  minimum(1) maximum(100) default(20)
// @Success     200  {array}   domain.Chat
// @Header      200  {string}  ETag           "Weak ETag for current result"
// @Header      200  {integer} X-Total-Count  "Number of chats"
// @Success     304  {string}  string         "Not Modified"
// @Router      /chat [get]
func (h *Handlers) ListChats(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	page, limit := pageQuery(c)

	// ETag pre-check (best effort).
	if h.chatStats != nil {
		if count, ts, err := h.chatStats(ctx, u.ID); err == nil {
			etag := fmt.Sprintf(`W/"chats:%s:%d:%d:%d:%d"`, u.ID, count, ts, page, limit)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, p, err := h.chats.ListPage(ctx, u.ID, page, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(p.TotalItems, 10))
	ok(c, http.StatusOK, items)
}

// CreateChat godoc
// @ID          createChat
// @Summary     Start a chat
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header    string                      false  "Client retry key"  format(uuid)
// @Param       body             body      handlers.CreateChatRequest  false  "Optional title"
// @Success     201              {object}  domain.Chat
// @Failure     400              {object}  handlers.ErrorResponse
// @Router      /chat [post]
func (h *Handlers) CreateChat(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req CreateChatRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	ch, err := h.chats.Create(c.Request.Context(), u.ID, req.Title)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, ch)
}

// GetChat godoc
// @ID          getChat
// @Summary     A chat with its messages in order
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Chat ID"  format(uuid)
// @Success     200  {object}  domain.Chat
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /chat/{id} [get]
func (h *Handlers) GetChat(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	ch, err := h.chats.Get(c.Request.Context(), u.ID, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ch)
}

// UpdateChatTitle godoc
// @ID          updateChatTitle
// @Summary     Rename a chat
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                           true  "Chat ID"  format(uuid)
// @Param       body  body      handlers.UpdateChatTitleRequest  true  "New title"
// @Success     200   {object}  domain.Chat
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /chat/{id} [patch]
func (h *Handlers) UpdateChatTitle(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req UpdateChatTitleRequest
	if !bindJSON(c, &req) {
		return
	}
	ch, err := h.chats.UpdateTitle(c.Request.Context(), u.ID, c.Param("id"), req.Title)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ch)
}

// DeleteChat godoc
// @ID          deleteChat
// @Summary     Delete a chat and its messages
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Chat ID"  format(uuid)
// @Success     200  {object}  handlers.MessageResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /chat/{id} [delete]
func (h *Handlers) DeleteChat(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	if err := h.chats.Delete(c.Request.Context(), u.ID, c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "Chat deleted successfully"})
}

// SendMessage godoc
// @ID          sendChatMessage
// @Summary     Ask the assistant
// @Description Stores the user turn and the reply. When the generator is unavailable or fails,
// @Description a canned reply is stored instead and fallback is true; the request still succeeds.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                       true  "Chat ID"  format(uuid)
// @Param       body  body      handlers.SendMessageRequest  true  "User message"
// @Success     200   {object}  handlers.SendMessageResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /chat/{id}/messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	ex, err := h.chats.SendMessage(c.Request.Context(), u.ID, c.Param("id"), req.Message)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SendMessageResponse{
		Message:    "Message sent successfully",
		Chat:       ex.Chat,
		AIResponse: ex.Reply,
		Validation: ex.Validation,
		Fallback:   ex.Fallback,
	})
}
