package repository

import (
	"context"
	"time"

	"github.com/adlens/campledger/internal/comment/domain"
	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, comment *domain.Comment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO comments (id, campaign_id, author_id, parent_id, content, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		comment.ID,
		comment.CampaignID,
		comment.AuthorID,
		comment.ParentID,
		comment.Content,
		comment.CreatedAt,
		comment.UpdatedAt,
	).Error
}

func (r *repo) InsertMentions(ctx context.Context, db *gorm.DB, mentions []*domain.CommentMention) error {
	if len(mentions) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(mentions).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Comment, error) {
	var comment domain.Comment
	err := db.WithContext(ctx).Raw(
		`SELECT id, campaign_id, author_id, parent_id, content, created_at, updated_at
		 FROM comments WHERE id = ?`,
		id,
	).Scan(&comment).Error
	if err != nil {
		return nil, err
	}
	if comment.ID == 0 {
		return nil, nil
	}
	return &comment, nil
}

func (r *repo) ListMentions(ctx context.Context, db *gorm.DB, commentID snowflake.ID) ([]*domain.CommentMention, error) {
	var mentions []*domain.CommentMention
	err := db.WithContext(ctx).
		Model(&domain.CommentMention{}).
		Where("comment_id = ?", commentID).
		Find(&mentions).Error
	if err != nil {
		return nil, err
	}
	return mentions, nil
}

func (r *repo) DeleteMentions(ctx context.Context, db *gorm.DB, commentID snowflake.ID, userIDs []snowflake.ID) error {
	if len(userIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`DELETE FROM comment_mentions WHERE comment_id = ? AND user_id IN ?`,
		commentID,
		userIDs,
	).Error
}

func (r *repo) UpdateContent(ctx context.Context, db *gorm.DB, id snowflake.ID, content string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`,
		content,
		now,
		id,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM comment_mentions
		 WHERE comment_id = ? OR comment_id IN (SELECT id FROM comments WHERE parent_id = ?)`,
		id,
		id,
	).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM comments WHERE parent_id = ?`,
		id,
	).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(
		`DELETE FROM comments WHERE id = ?`,
		id,
	).Error
}

func (r *repo) ListTopLevel(ctx context.Context, db *gorm.DB, campaignID snowflake.ID, page pagination.Pagination) ([]*domain.Comment, int64, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Comment{}).
		Where("campaign_id = ? AND parent_id IS NULL", campaignID)

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []*domain.Comment
	err := page.Apply(stmt).
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc, id asc")
		}).
		Preload("Replies.Mentions").
		Preload("Mentions").
		Order("created_at desc, id desc").
		Find(&comments).Error
	if err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}
