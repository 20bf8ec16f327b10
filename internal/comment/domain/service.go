package domain

import (
	"context"
	"errors"

	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound       = errors.New("comment_not_found")
	ErrInvalidID      = errors.New("invalid_comment_id")
	ErrForbidden      = errors.New("comment_forbidden")
	ErrEmptyContent   = errors.New("empty_comment_content")
	ErrParentMismatch = errors.New("comment_parent_campaign_mismatch")
	// ErrNestedReply rejects replies to replies; threads are one level deep.
	ErrNestedReply = errors.New("nested_reply_not_allowed")
)

type CreateCommentRequest struct {
	CampaignID string  `json:"campaign_id" binding:"required"`
	Content    string  `json:"content" binding:"required"`
	ParentID   *string `json:"parent_id,omitempty"`
}

type UpdateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// View is a comment shaped for API responses with the author resolved and
// replies nested one level deep.
type View struct {
	ID             snowflake.ID   `json:"id"`
	CampaignID     snowflake.ID   `json:"campaign_id"`
	AuthorID       snowflake.ID   `json:"author_id"`
	AuthorUsername string         `json:"author_username"`
	ParentID       *snowflake.ID  `json:"parent_id,omitempty"`
	Content        string         `json:"content"`
	MentionUserIDs []snowflake.ID `json:"mention_user_ids,omitempty"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
	Replies        []View         `json:"replies,omitempty"`
}

type ListRequest struct {
	CampaignID string
	pagination.Pagination
}

type ListResponse struct {
	Comments []View              `json:"comments"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	Create(ctx context.Context, req CreateCommentRequest, authorID snowflake.ID) (View, error)
	Update(ctx context.Context, commentID string, req UpdateCommentRequest, actorID snowflake.ID) (View, error)
	Delete(ctx context.Context, commentID string, actorID snowflake.ID) error
	ListForCampaign(ctx context.Context, req ListRequest) (ListResponse, error)
}
