package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Type string

const (
	TypeMention Type = "mention"
	TypeReply   Type = "reply"
)

type Notification struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID  `gorm:"not null;index:ix_notifications_user" json:"user_id"`
	Type      Type          `gorm:"not null" json:"type"`
	Message   string        `gorm:"not null" json:"message"`
	IsRead    bool          `gorm:"not null;default:false" json:"is_read"`
	CommentID *snowflake.ID `json:"comment_id,omitempty"`
	ActorID   *snowflake.ID `json:"actor_id,omitempty"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
