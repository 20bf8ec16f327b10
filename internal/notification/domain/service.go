package domain

import (
	"context"
	"errors"

	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound  = errors.New("notification_not_found")
	ErrInvalidID = errors.New("invalid_notification_id")
	ErrForbidden = errors.New("notification_forbidden")
)

type ListRequest struct {
	UserID snowflake.ID
	pagination.Pagination
}

type ListResponse struct {
	Notifications []*Notification     `json:"notifications"`
	UnreadCount   int64               `json:"unread_count"`
	PageInfo      pagination.PageInfo `json:"page_info"`
}

type Service interface {
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	// MarkRead flips a single notification. Marking someone else's
	// notification fails with ErrForbidden.
	MarkRead(ctx context.Context, notificationID string, userID snowflake.ID) (*Notification, error)
	// MarkAllRead returns the number of notifications flipped.
	MarkAllRead(ctx context.Context, userID snowflake.ID) (int64, error)
}
