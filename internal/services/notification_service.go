// Package services – NotificationService
//
// NotificationService owns the durable notification list and its live
// delivery. Dispatch stores the row first and then offers it to the injected
// realtime.Broker; a failed push is logged and counted but never undoes the
// stored row, so clients can always recover by polling.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/realtime"
	"github.com/peerq/peerq-api/internal/repo"
	"github.com/peerq/peerq-api/internal/utils"
)

// NotificationService manages notifications. Broker may be nil, which
// disables live delivery.
type NotificationService struct {
	DB     *gorm.DB
	Broker realtime.Broker
}

// LiveNotification is the data of a "notification" socket frame.
type LiveNotification struct {
	Message      string                  `json:"message"`
	Type         domain.NotificationType `json:"type"`
	QuestionID   *string                 `json:"questionId,omitempty"`
	AnswerID     *string                 `json:"answerId,omitempty"`
	Notification *domain.Notification    `json:"notification"`
}

// NewNotification is the admin create payload. A nil UserID broadcasts.
type NewNotification struct {
	UserID       *string
	Type         domain.NotificationType
	Title        string
	Message      string
	DiscountCode string
}

// NotificationPatch is a partial admin update; nil fields are untouched.
type NotificationPatch struct {
	Type         *domain.NotificationType
	Title        *string
	Message      *string
	DiscountCode *string
	IsRead       *bool
}

// Dispatch persists n and then pushes it live. liveMessage is the short text
// shown in the live toast; empty means n.Message.
func (s *NotificationService) Dispatch(ctx context.Context, n *domain.Notification, liveMessage string) error {
	ctx, span := otel.Tracer("services/NotificationService").Start(ctx, "Dispatch",
		trace.WithAttributes(attribute.String("notification.type", string(n.Type))))
	defer span.End()

	if err := repo.CreateNotification(ctx, s.DB, n); err != nil {
		return err
	}
	audience := "user"
	if n.IsBroadcast() {
		audience = "broadcast"
	}
	notificationsTotal.WithLabelValues(string(n.Type), audience).Inc()

	if s.Broker == nil {
		return nil
	}
	if liveMessage == "" {
		liveMessage = n.Message
	}
	target := ""
	if n.UserID != nil {
		target = *n.UserID
	}
	ev := realtime.Event{Event: realtime.EventNotification, Data: LiveNotification{
		Message:      liveMessage,
		Type:         n.Type,
		QuestionID:   n.QuestionID,
		AnswerID:     n.AnswerID,
		Notification: n,
	}}
	if err := s.Broker.Publish(ctx, target, ev); err != nil {
		livePushFailures.Inc()
		log.Warn().Err(err).Str("notification_id", n.ID).Msg("live notification push failed")
	}
	return nil
}

// Create validates and dispatches an admin-authored notification.
func (s *NotificationService) Create(ctx context.Context, actorID string, in NewNotification) (*domain.Notification, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	in.DiscountCode = strings.TrimSpace(in.DiscountCode)
	if in.Title == "" || in.Message == "" || in.Type == "" {
		return nil, invalid("title, message, and type are required")
	}
	if err := checkNotificationFields(in.Type, in.Title, in.Message, in.DiscountCode); err != nil {
		return nil, err
	}
	if in.UserID != nil && strings.TrimSpace(*in.UserID) == "" {
		in.UserID = nil
	}
	if in.UserID != nil {
		if _, err := repo.GetUser(ctx, s.DB, *in.UserID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrTargetUserNotFound
			}
			return nil, err
		}
	}
	n := &domain.Notification{
		UserID:       in.UserID,
		CreatedBy:    actorID,
		Type:         in.Type,
		Title:        in.Title,
		Message:      in.Message,
		DiscountCode: in.DiscountCode,
	}
	if err := s.Dispatch(ctx, n, ""); err != nil {
		return nil, err
	}
	return n, nil
}

func checkNotificationFields(t domain.NotificationType, title, message, code string) error {
	if !t.Valid() {
		return ErrInvalidType
	}
	if utf8.RuneCountInString(title) > domain.MaxNotificationTitle {
		return invalid("title must be at most 200 characters")
	}
	if utf8.RuneCountInString(message) > domain.MaxNotificationMessage {
		return invalid("message must be at most 1000 characters")
	}
	if utf8.RuneCountInString(code) > domain.MaxDiscountCode {
		return invalid("discountCode must be at most 50 characters")
	}
	return nil
}

// ListForUser returns a page of the user's own and broadcast notifications
// plus the unread count over the same audience.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, typ domain.NotificationType, page, limit int) ([]domain.Notification, domain.Page, int64, error) {
	ctx, span := otel.Tracer("services/NotificationService").Start(ctx, "ListForUser",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.Int("page", page)))
	defer span.End()

	if typ != "" && !typ.Valid() {
		return nil, domain.Page{}, 0, ErrInvalidType
	}
	page, limit, offset := utils.Paginate(page, limit, 20, 100)
	items, total, err := repo.ListVisibleNotifications(ctx, s.DB, userID, typ, offset, limit)
	if err != nil {
		return nil, domain.Page{}, 0, err
	}
	unread, err := repo.CountUnreadVisible(ctx, s.DB, userID)
	if err != nil {
		return nil, domain.Page{}, 0, err
	}
	return items, domain.NewPage(page, limit, total), unread, nil
}

// UnreadCount counts unread notifications visible to userID.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return repo.CountUnreadVisible(ctx, s.DB, userID)
}

// MarkRead sets isRead on a notification addressed to userID or broadcast.
// Reading an already read notification succeeds unchanged.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*domain.Notification, error) {
	n, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.IsBroadcast() && *n.UserID != userID {
		return nil, ErrForbidden
	}
	if n.IsRead {
		return n, nil
	}
	return s.setRead(ctx, n, true)
}

// MarkAllRead marks every visible unread notification read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return repo.MarkAllVisibleRead(ctx, s.DB, userID)
}

// MarkUnread clears isRead (admin).
func (s *NotificationService) MarkUnread(ctx context.Context, id string) (*domain.Notification, error) {
	n, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.setRead(ctx, n, false)
}

func (s *NotificationService) setRead(ctx context.Context, n *domain.Notification, read bool) (*domain.Notification, error) {
	if err := repo.UpdateNotificationFields(ctx, s.DB, n.ID, map[string]any{"is_read": read}); err != nil {
		return nil, err
	}
	return s.get(ctx, n.ID)
}

// Update applies an admin patch.
func (s *NotificationService) Update(ctx context.Context, id string, p NotificationPatch) (*domain.Notification, error) {
	n, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if p.Type != nil {
		n.Type = *p.Type
		fields["type"] = *p.Type
	}
	if p.Title != nil {
		n.Title = strings.TrimSpace(*p.Title)
		if n.Title == "" {
			return nil, invalid("title must not be empty")
		}
		fields["title"] = n.Title
	}
	if p.Message != nil {
		n.Message = strings.TrimSpace(*p.Message)
		if n.Message == "" {
			return nil, invalid("message must not be empty")
		}
		fields["message"] = n.Message
	}
	if p.DiscountCode != nil {
		n.DiscountCode = strings.TrimSpace(*p.DiscountCode)
		fields["discount_code"] = n.DiscountCode
	}
	if p.IsRead != nil {
		fields["is_read"] = *p.IsRead
	}
	if err := checkNotificationFields(n.Type, n.Title, n.Message, n.DiscountCode); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return n, nil
	}
	if err := repo.UpdateNotificationFields(ctx, s.DB, id, fields); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

// Delete removes a notification (admin).
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	err := repo.DeleteNotification(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

// ListAll is the unscoped admin listing.
func (s *NotificationService) ListAll(ctx context.Context, f repo.NotificationFilter, page, limit int) ([]domain.Notification, domain.Page, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, domain.Page{}, ErrInvalidType
	}
	page, limit, offset := utils.Paginate(page, limit, 20, 100)
	items, total, err := repo.ListNotifications(ctx, s.DB, f, offset, limit)
	if err != nil {
		return nil, domain.Page{}, err
	}
	return items, domain.NewPage(page, limit, total), nil
}

func (s *NotificationService) get(ctx context.Context, id string) (*domain.Notification, error) {
	n, err := repo.GetNotification(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotificationNotFound
	}
	return n, err
}
