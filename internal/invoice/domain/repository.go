package domain

import (
	"context"
	"time"

	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ListRow is an invoice joined with its campaign for list responses.
type ListRow struct {
	Invoice
	CampaignName string `json:"campaign_name"`
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]*ListRow, int64, error)
	ListLineItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]*InvoiceLineItem, error)
	// LockLineItems reads the given rows FOR UPDATE, scoped to the invoice.
	LockLineItems(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, ids []snowflake.ID) ([]*InvoiceLineItem, error)
	UpdateAdjustments(ctx context.Context, tx *gorm.DB, id snowflake.ID, adjustments decimal.Decimal, now time.Time) error
}
