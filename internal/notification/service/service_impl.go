package service

import (
	"context"
	"strings"

	"github.com/adlens/campledger/internal/notification/domain"
	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("notification.service"),
		repo: p.Repo,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	page := req.Pagination.Normalize()

	notifications, total, err := s.repo.ListForUser(ctx, s.db, req.UserID, page)
	if err != nil {
		return domain.ListResponse{}, err
	}
	unread, err := s.repo.CountUnread(ctx, s.db, req.UserID)
	if err != nil {
		return domain.ListResponse{}, err
	}

	return domain.ListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
		PageInfo: pagination.PageInfo{
			Limit:  page.Limit,
			Offset: page.Offset,
			Total:  total,
		},
	}, nil
}

func (s *Service) MarkRead(ctx context.Context, notificationID string, userID snowflake.ID) (*domain.Notification, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(notificationID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidID
	}

	notification, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if notification == nil {
		return nil, domain.ErrNotFound
	}
	if notification.UserID != userID {
		return nil, domain.ErrForbidden
	}

	if !notification.IsRead {
		if err := s.repo.MarkRead(ctx, s.db, id); err != nil {
			return nil, err
		}
		notification.IsRead = true
	}
	return notification, nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID snowflake.ID) (int64, error) {
	return s.repo.MarkAllRead(ctx, s.db, userID)
}
