package repository

import (
	"context"
	"strings"

	"github.com/adlens/campledger/internal/campaign/domain"
	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Campaign, error) {
	var campaign domain.Campaign
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, created_at, updated_at FROM campaigns WHERE id = ?`,
		id,
	).Scan(&campaign).Error
	if err != nil {
		return nil, err
	}
	if campaign.ID == 0 {
		return nil, nil
	}
	return &campaign, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListCampaignFilter, page pagination.Pagination) ([]*domain.Campaign, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Campaign{})
	if name := strings.TrimSpace(filter.Name); name != "" {
		stmt = stmt.Where("name LIKE ?", "%"+name+"%")
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var campaigns []*domain.Campaign
	err := page.Apply(stmt).
		Order(orderClause(filter.Sort)).
		Find(&campaigns).Error
	if err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

func (r *repo) ListLineItems(ctx context.Context, db *gorm.DB, campaignID snowflake.ID) ([]*domain.LineItem, error) {
	var items []*domain.LineItem
	err := db.WithContext(ctx).
		Model(&domain.LineItem{}).
		Where("campaign_id = ?", campaignID).
		Order("name asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindLineItemsByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.LineItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []*domain.LineItem
	err := db.WithContext(ctx).
		Model(&domain.LineItem{}).
		Where("id IN ?", ids).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func orderClause(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "name", "name_asc":
		return "name asc, id asc"
	case "name_desc":
		return "name desc, id desc"
	case "created_at", "oldest":
		return "created_at asc, id asc"
	default:
		return "created_at desc, id desc"
	}
}
