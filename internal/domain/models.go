// Package domain defines the persistence models and response views of the
// forum: users, questions, answers, votes, notifications and assistant chats.
// Models are mapped with GORM; views are the typed DTOs returned by services.
package domain

import (
	"time"
)

// User is a forum account. Guests are real rows with a placeholder email and
// are upgraded in place, keeping their ID.
type User struct {
	ID           string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Username     string    `json:"username"   gorm:"type:varchar(50);not null;uniqueIndex"`
	Email        string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(255);not null"`
	Role         Role      `json:"role"       gorm:"type:varchar(16);not null;default:'user';index"`
	Reputation   int       `json:"reputation" gorm:"not null;default:0"`
	Avatar       string    `json:"avatar"     gorm:"type:varchar(512)"`
	Bio          string    `json:"bio"        gorm:"type:varchar(500)"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Summary projects the public identity fields of u.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Avatar: u.Avatar, Reputation: u.Reputation, Role: u.Role}
}

// Question is a forum post. VoteCount caches the sum of its vote rows and
// AcceptedAnswerID mirrors the single answer with IsAccepted set.
type Question struct {
	ID               string    `gorm:"type:char(36);primaryKey"`
	Title            string    `gorm:"type:varchar(300);not null"`
	Slug             string    `gorm:"type:varchar(320);not null;index"`
	Description      string    `gorm:"type:text;not null"`
	AuthorID         string    `gorm:"type:char(36);not null;index"`
	VoteCount        int       `gorm:"not null;default:0;index"`
	Views            int       `gorm:"not null;default:0"`
	IsAnswered       bool      `gorm:"not null;default:false"`
	AcceptedAnswerID *string   `gorm:"type:char(36)"`
	CreatedAt        time.Time `gorm:"index"`
	UpdatedAt        time.Time

	Tags []QuestionTag `gorm:"foreignKey:QuestionID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for Question.
func (Question) TableName() string { return "questions" }

// TagNames returns the question's tags in stored order.
func (q Question) TagNames() []string {
	out := make([]string, 0, len(q.Tags))
	for _, t := range q.Tags {
		out = append(out, t.Tag)
	}
	return out
}

// QuestionTag is one element of a question's tag set.
type QuestionTag struct {
	QuestionID string `gorm:"type:char(36);primaryKey"`
	Tag        string `gorm:"type:varchar(50);primaryKey;index"`
}

// TableName returns the database table name for QuestionTag.
func (QuestionTag) TableName() string { return "question_tags" }

// Answer belongs to exactly one question.
type Answer struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	QuestionID string    `gorm:"type:char(36);not null;index:idx_question_answers,priority:1"`
	AuthorID   string    `gorm:"type:char(36);not null;index"`
	Content    string    `gorm:"type:text;not null"`
	VoteCount  int       `gorm:"not null;default:0"`
	IsAccepted bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"index:idx_question_answers,priority:2"`
	UpdatedAt  time.Time

	Question Question `gorm:"foreignKey:QuestionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Answer.
func (Answer) TableName() string { return "answers" }

// Vote records one user's vote on a question or answer. The unique index
// keeps every user in at most one of the up/down sets of a target.
type Vote struct {
	ID         string     `gorm:"type:char(36);primaryKey"`
	TargetType TargetType `gorm:"type:varchar(16);not null;uniqueIndex:ux_vote_target_user,priority:1"`
	TargetID   string     `gorm:"type:char(36);not null;uniqueIndex:ux_vote_target_user,priority:2"`
	UserID     string     `gorm:"type:char(36);not null;uniqueIndex:ux_vote_target_user,priority:3;index"`
	Value      int        `gorm:"not null;check:value IN (-1,1)"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "votes" }

// Notification is addressed to a single user or, when UserID is nil, to
// every user.
type Notification struct {
	ID           string           `json:"id"                     gorm:"type:char(36);primaryKey"`
	UserID       *string          `json:"userId"                 gorm:"type:char(36);index"`
	CreatedBy    string           `json:"createdBy"              gorm:"type:char(36);not null"`
	Type         NotificationType `json:"type"                   gorm:"type:varchar(16);not null;default:'info';index"`
	Title        string           `json:"title"                  gorm:"type:varchar(200);not null"`
	Message      string           `json:"message"                gorm:"type:varchar(1000);not null"`
	DiscountCode string           `json:"discountCode,omitempty" gorm:"type:varchar(50)"`
	IsRead       bool             `json:"isRead"                 gorm:"not null;default:false;index"`
	QuestionID   *string          `json:"questionId,omitempty"   gorm:"type:char(36)"`
	AnswerID     *string          `json:"answerId,omitempty"     gorm:"type:char(36)"`
	CreatedAt    time.Time        `json:"createdAt"              gorm:"index"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// IsBroadcast reports whether n is addressed to every user.
func (n Notification) IsBroadcast() bool { return n.UserID == nil }

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	NotifyInfo     NotificationType = "info"
	NotifyDiscount NotificationType = "discount"
	NotifyOther    NotificationType = "other"
	NotifyAnswer   NotificationType = "answer"
	NotifyComment  NotificationType = "comment"
	NotifyMention  NotificationType = "mention"
	NotifyVote     NotificationType = "vote"
	NotifyAccept   NotificationType = "accept"
)

// NotificationTypes lists every valid notification type.
var NotificationTypes = []NotificationType{
	NotifyInfo, NotifyDiscount, NotifyOther, NotifyAnswer,
	NotifyComment, NotifyMention, NotifyVote, NotifyAccept,
}

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	for _, v := range NotificationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Notification field limits.
const (
	MaxNotificationTitle   = 200
	MaxNotificationMessage = 1000
	MaxDiscountCode        = 50
)
