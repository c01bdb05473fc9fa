package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/repo"
	"github.com/peerq/peerq-api/internal/services"
)

// NotificationRequest is the admin create payload. A missing or empty
// userId broadcasts to every user.
type NotificationRequest struct {
	UserID       *string `json:"userId" example:"3f1c2b9e-6a0d-4c59-8d1e-2c7b5a9f0e11"`
	Type         string  `json:"type" binding:"omitempty,notiftype" example:"discount"`
	Title        string  `json:"title" binding:"max=200" example:"Spring sale"`
	Message      string  `json:"message" binding:"max=1000" example:"20% off premium this week"`
	DiscountCode string  `json:"discountCode" binding:"max=50" example:"SPRING20"`
}

// NotificationPatchRequest is the admin update payload; absent fields are
// left untouched.
type NotificationPatchRequest struct {
	Type         *string `json:"type" binding:"omitempty,notiftype"`
	Title        *string `json:"title" binding:"omitempty,max=200"`
	Message      *string `json:"message" binding:"omitempty,max=1000"`
	DiscountCode *string `json:"discountCode" binding:"omitempty,max=50"`
	IsRead       *bool   `json:"isRead"`
}

// NotificationsResponse is a page of the caller's inbox.
type NotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Pagination    domain.Page           `json:"pagination"`
	UnreadCount   int64                 `json:"unreadCount"`
}

// AdminNotificationsResponse is a page of all notifications.
type AdminNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Pagination    domain.Page           `json:"pagination"`
}

// UnreadCountResponse carries the unread counter.
type UnreadCountResponse struct {
	UnreadCount int64 `json:"unreadCount"`
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     The caller's notifications, including broadcasts
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Param       type   query     string  false  "Only this type"
// @Param       page   query     int     false  "Page"   minimum(1) default(1)
// @Param       limit  query     int     false  "Limit"  minimum(1) maximum(100) default(20)
// @Success     200    {object}  handlers.NotificationsResponse
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	page, limit := pageQuery(c)
	typ := domain.NotificationType(strings.TrimSpace(c.Query("type")))
	items, p, unread, err := h.notifs.ListForUser(c.Request.Context(), u.ID, typ, page, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	ok(c, http.StatusOK, NotificationsResponse{Notifications: items, Pagination: p, UnreadCount: unread})
}

// UnreadCount godoc
// @ID          unreadCount
// @Summary     Number of unread notifications
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.UnreadCountResponse
// @Router      /notifications/unread-count [get]
func (h *Handlers) UnreadCount(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	n, err := h.notifs.UnreadCount(c.Request.Context(), u.ID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, UnreadCountResponse{UnreadCount: n})
}

// MarkRead godoc
// @ID          markNotificationRead
// @Summary     Mark a notification read
// @Description Idempotent. The notification must be addressed to the caller or be a broadcast.
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Notification ID"
// @Success     200  {object}  domain.Notification
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /notifications/{id}/read [patch]
func (h *Handlers) MarkRead(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	n, err := h.notifs.MarkRead(c.Request.Context(), u.ID, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, n)
}

// MarkAllRead godoc
// @ID          markAllNotificationsRead
// @Summary     Mark every visible notification read
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.MessageResponse
// @Router      /notifications/read-all [put]
func (h *Handlers) MarkAllRead(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	if _, err := h.notifs.MarkAllRead(c.Request.Context(), u.ID); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "All notifications marked as read"})
}

// CreateNotification godoc
// @ID          createNotification
// @Summary     Send a notification (admin)
// @Description Targets one user, or every user when userId is empty. Connected recipients get it live.
// @Tags        Notifications
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header    string                        false  "Client retry key"  format(uuid)
// @Param       body             body      handlers.NotificationRequest  true   "Notification"
// @Success     201              {object}  domain.Notification
// @Failure     400              {object}  handlers.ErrorResponse
// @Failure     403              {object}  handlers.ErrorResponse
// @Failure     404              {object}  handlers.ErrorResponse  "Target user not found"
// @Router      /notifications [post]
func (h *Handlers) CreateNotification(c *gin.Context) {
	u, found := actor(c)
	if !found {
		return
	}
	var req NotificationRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.notifs.Create(c.Request.Context(), u.ID, services.NewNotification{
		UserID:       req.UserID,
		Type:         domain.NotificationType(strings.TrimSpace(req.Type)),
		Title:        req.Title,
		Message:      req.Message,
		DiscountCode: req.DiscountCode,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, n)
}

// ListAllNotifications godoc
// @ID          listAllNotifications
// @Summary     All notifications (admin)
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Param       type    query     string  false  "Only this type"
// @Param       userId  query     string  false  "Only this recipient, or \"broadcast\""
// @Param       isRead  query     bool    false  "Only read or unread"
// @Param       page    query     int     false  "Page"   minimum(1) default(1)
// @Param       limit   query     int     false  "Limit"  minimum(1) maximum(100) default(20)
// @Success     200     {object}  handlers.AdminNotificationsResponse
// @Router      /notifications/admin/all [get]
func (h *Handlers) ListAllNotifications(c *gin.Context) {
	page, limit := pageQuery(c)
	f := repo.NotificationFilter{
		Type:   domain.NotificationType(strings.TrimSpace(c.Query("type"))),
		UserID: strings.TrimSpace(c.Query("userId")),
	}
	if s := c.Query("isRead"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeValidation, "isRead must be true or false")
			return
		}
		f.IsRead = &b
	}
	items, p, err := h.notifs.ListAll(c.Request.Context(), f, page, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	ok(c, http.StatusOK, AdminNotificationsResponse{Notifications: items, Pagination: p})
}

// NotificationUsers godoc
// @ID          notificationUsers
// @Summary     Users to pick a notification target from (admin)
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Param       search  query     string  false  "Username or email substring"
// @Param       page    query     int     false  "Page"   minimum(1) default(1)
// @Param       limit   query     int     false  "Limit"  minimum(1) maximum(100) default(20)
// @Success     200     {object}  handlers.UsersResponse
// @Router      /notifications/users/all [get]
func (h *Handlers) NotificationUsers(c *gin.Context) { h.ListUsers(c) }

// MarkUnread godoc
// @ID          markNotificationUnread
// @Summary     Mark a notification unread (admin)
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Notification ID"
// @Success     200  {object}  domain.Notification
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /notifications/{id}/unread [patch]
func (h *Handlers) MarkUnread(c *gin.Context) {
	n, err := h.notifs.MarkUnread(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, n)
}

// UpdateNotification godoc
// @ID          updateNotification
// @Summary     Edit a notification (admin)
// @Tags        Notifications
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                             true  "Notification ID"
// @Param       body  body      handlers.NotificationPatchRequest  true  "Fields to change"
// @Success     200   {object}  domain.Notification
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /notifications/{id} [patch]
func (h *Handlers) UpdateNotification(c *gin.Context) {
	var req NotificationPatchRequest
	if !bindJSON(c, &req) {
		return
	}
	p := services.NotificationPatch{
		Title:        req.Title,
		Message:      req.Message,
		DiscountCode: req.DiscountCode,
		IsRead:       req.IsRead,
	}
	if req.Type != nil {
		t := domain.NotificationType(strings.TrimSpace(*req.Type))
		p.Type = &t
	}
	n, err := h.notifs.Update(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, n)
}

// DeleteNotification godoc
// @ID          deleteNotification
// @Summary     Delete a notification (admin)
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Notification ID"
// @Success     200  {object}  handlers.MessageResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /notifications/{id} [delete]
func (h *Handlers) DeleteNotification(c *gin.Context) {
	if err := h.notifs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "Notification deleted successfully"})
}
