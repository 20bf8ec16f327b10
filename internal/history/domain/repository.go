package domain

import (
	"context"

	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, records []*ChangeHistory) error
	ListForEntity(ctx context.Context, db *gorm.DB, entityType EntityType, entityID snowflake.ID, page pagination.Pagination) ([]*ChangeHistory, int64, error)
	ListForEntities(ctx context.Context, db *gorm.DB, entityType EntityType, entityIDs []snowflake.ID, limit int) ([]*ChangeHistory, error)
}
