package domain

import (
	"context"
	"errors"

	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

var ErrInvalidEntity = errors.New("invalid_history_entity")

// Change describes one pending history record before no-op filtering.
type Change struct {
	EntityType EntityType
	EntityID   snowflake.ID
	OldValue   map[string]interface{}
	NewValue   map[string]interface{}
	ChangedBy  snowflake.ID
}

type ListRequest struct {
	EntityType EntityType
	EntityID   snowflake.ID
	pagination.Pagination
}

type ListResponse struct {
	Entries  []Entry             `json:"entries"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	// Record persists a single change unless old and new payloads are equal.
	Record(ctx context.Context, change Change) error
	// RecordBatch persists all effective changes in one transaction. A batch
	// that filters down to nothing performs no writes.
	RecordBatch(ctx context.Context, changes []Change) error
	ListForEntity(ctx context.Context, req ListRequest) (ListResponse, error)
	ListForEntities(ctx context.Context, entityType EntityType, entityIDs []snowflake.ID, limit int) ([]Entry, error)
}
