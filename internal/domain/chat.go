package domain

import "time"

// DefaultChatTitle is assigned to chats created without a title.
const DefaultChatTitle = "New Chat"

// Chat is an assistant conversation owned by one user.
type Chat struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"userId"    gorm:"type:char(36);not null;index:idx_user_chats,priority:1"`
	Title     string    `json:"title"     gorm:"type:varchar(255);not null;default:'New Chat'"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"index:idx_user_chats,priority:2"`

	Messages []Message `json:"messages,omitempty" gorm:"foreignKey:ChatID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Message roles.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Message is one turn of a chat, ordered by CreatedAt.
type Message struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	ChatID    string    `json:"chatId"    gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	Role      string    `json:"role"      gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string    `json:"content"   gorm:"type:text;not null"`
	CreatedAt time.Time `json:"timestamp" gorm:"index:idx_chat_msgs,priority:2"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
