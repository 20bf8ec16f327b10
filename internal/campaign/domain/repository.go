package domain

import (
	"context"

	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListCampaignFilter struct {
	Name string
	Sort string
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Campaign, error)
	List(ctx context.Context, db *gorm.DB, filter ListCampaignFilter, page pagination.Pagination) ([]*Campaign, int64, error)
	ListLineItems(ctx context.Context, db *gorm.DB, campaignID snowflake.ID) ([]*LineItem, error)
	FindLineItemsByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*LineItem, error)
}
