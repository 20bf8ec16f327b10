package domain

import (
	"context"
	"time"

	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, comment *Comment) error
	InsertMentions(ctx context.Context, db *gorm.DB, mentions []*CommentMention) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Comment, error)
	ListMentions(ctx context.Context, db *gorm.DB, commentID snowflake.ID) ([]*CommentMention, error)
	DeleteMentions(ctx context.Context, db *gorm.DB, commentID snowflake.ID, userIDs []snowflake.ID) error
	UpdateContent(ctx context.Context, db *gorm.DB, id snowflake.ID, content string, now time.Time) error
	// Delete removes the comment together with its replies and all mention
	// rows attached to either.
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	ListTopLevel(ctx context.Context, db *gorm.DB, campaignID snowflake.ID, page pagination.Pagination) ([]*Comment, int64, error)
}
