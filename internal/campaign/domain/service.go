package domain

import (
	"context"
	"errors"

	"github.com/adlens/campledger/pkg/db/pagination"
)

var (
	ErrNotFound  = errors.New("campaign_not_found")
	ErrInvalidID = errors.New("invalid_campaign_id")
)

type ListCampaignRequest struct {
	Name string `form:"name"`
	Sort string `form:"sort"`
	pagination.Pagination
}

type ListCampaignResponse struct {
	Campaigns []Campaign          `json:"campaigns"`
	PageInfo  pagination.PageInfo `json:"page_info"`
}

type Service interface {
	GetByID(ctx context.Context, id string) (Campaign, error)
	List(ctx context.Context, req ListCampaignRequest) (ListCampaignResponse, error)
	ListLineItems(ctx context.Context, campaignID string) ([]LineItem, error)
}
