package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Comment struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	CampaignID snowflake.ID  `gorm:"not null;index" json:"campaign_id"`
	AuthorID   snowflake.ID  `gorm:"not null;index" json:"author_id"`
	ParentID   *snowflake.ID `gorm:"index" json:"parent_id,omitempty"`
	Content    string        `gorm:"not null" json:"content"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Replies  []Comment        `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
	Mentions []CommentMention `gorm:"foreignKey:CommentID" json:"mentions,omitempty"`
}

type CommentMention struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CommentID snowflake.ID `gorm:"not null;uniqueIndex:ux_comment_mentions_pair" json:"comment_id"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex:ux_comment_mentions_pair" json:"user_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}
