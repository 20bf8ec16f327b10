package repository

import (
	"context"

	"github.com/adlens/campledger/internal/history/domain"
	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, records []*domain.ChangeHistory) error {
	if len(records) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(records).Error
}

func (r *repo) ListForEntity(ctx context.Context, db *gorm.DB, entityType domain.EntityType, entityID snowflake.ID, page pagination.Pagination) ([]*domain.ChangeHistory, int64, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.ChangeHistory{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*domain.ChangeHistory
	err := page.Apply(stmt).
		Order("created_at desc, id desc").
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *repo) ListForEntities(ctx context.Context, db *gorm.DB, entityType domain.EntityType, entityIDs []snowflake.ID, limit int) ([]*domain.ChangeHistory, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	var records []*domain.ChangeHistory
	err := db.WithContext(ctx).
		Model(&domain.ChangeHistory{}).
		Where("entity_type = ? AND entity_id IN ?", entityType, entityIDs).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
