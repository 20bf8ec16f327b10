package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*User, error)
	FindByUsername(ctx context.Context, db *gorm.DB, username string) (*User, error)
	FindByUsernames(ctx context.Context, db *gorm.DB, usernames []string) ([]*User, error)
	List(ctx context.Context, db *gorm.DB) ([]*User, error)
}
