package domain

import (
	"context"

	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, notifications []*Notification) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Notification, error)
	ListForUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, page pagination.Pagination) ([]*Notification, int64, error)
	CountUnread(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error)
	MarkRead(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	MarkAllRead(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error)
}
