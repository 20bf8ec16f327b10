package repository

import (
	"context"
	"strings"

	"github.com/adlens/campledger/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, username, email, password_hash, is_active, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []*domain.User
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id IN ?", ids).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) FindByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, username, email, password_hash, is_active, created_at, updated_at
		 FROM users WHERE LOWER(username) = LOWER(?)`,
		strings.TrimSpace(username),
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

// FindByUsernames resolves active users only; mentions of deactivated
// accounts resolve to nothing.
func (r *repo) FindByUsernames(ctx context.Context, db *gorm.DB, usernames []string) ([]*domain.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	lowered := make([]string, 0, len(usernames))
	for _, name := range usernames {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(name)))
	}
	var users []*domain.User
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("LOWER(username) IN ? AND is_active = ?", lowered, true).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*domain.User, error) {
	var users []*domain.User
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Order("username asc").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
