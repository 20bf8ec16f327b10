package service

import (
	"context"
	"strings"

	"github.com/adlens/campledger/internal/campaign/domain"
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
		log:  p.Log.Named("campaign.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Campaign, error) {
	campaignID, err := parseID(id)
	if err != nil {
		return domain.Campaign{}, err
	}

	campaign, err := s.repo.FindByID(ctx, s.db, campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	if campaign == nil {
		return domain.Campaign{}, domain.ErrNotFound
	}

	items, err := s.repo.ListLineItems(ctx, s.db, campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	campaign.LineItems = make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		campaign.LineItems = append(campaign.LineItems, *item)
	}

	return *campaign, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCampaignRequest) (domain.ListCampaignResponse, error) {
	page := req.Pagination.Normalize()
	filter := domain.ListCampaignFilter{
		Name: strings.TrimSpace(req.Name),
		Sort: req.Sort,
	}

	items, total, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListCampaignResponse{}, err
	}

	campaigns := make([]domain.Campaign, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		campaigns = append(campaigns, *item)
	}

	return domain.ListCampaignResponse{
		Campaigns: campaigns,
		PageInfo: pagination.PageInfo{
			Limit:  page.Limit,
			Offset: page.Offset,
			Total:  total,
		},
	}, nil
}

func (s *Service) ListLineItems(ctx context.Context, campaignID string) ([]domain.LineItem, error) {
	id, err := parseID(campaignID)
	if err != nil {
		return nil, err
	}

	campaign, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, domain.ErrNotFound
	}

	items, err := s.repo.ListLineItems(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
