package repository

import (
	"context"

	"github.com/adlens/campledger/internal/notification/domain"
	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, notifications []*domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(notifications).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Notification, error) {
	var notification domain.Notification
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, type, message, is_read, comment_id, actor_id, created_at
		 FROM notifications WHERE id = ?`,
		id,
	).Scan(&notification).Error
	if err != nil {
		return nil, err
	}
	if notification.ID == 0 {
		return nil, nil
	}
	return &notification, nil
}

func (r *repo) ListForUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, page pagination.Pagination) ([]*domain.Notification, int64, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ?", userID)

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []*domain.Notification
	err := page.Apply(stmt).
		Order("created_at desc, id desc").
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *repo) CountUnread(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *repo) MarkRead(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE notifications SET is_read = ? WHERE id = ?`,
		true,
		id,
	).Error
}

func (r *repo) MarkAllRead(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE notifications SET is_read = ? WHERE user_id = ? AND is_read = ?`,
		true,
		userID,
		false,
	)
	return result.RowsAffected, result.Error
}
