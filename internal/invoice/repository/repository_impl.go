package repository

import (
	"context"
	"time"

	"github.com/adlens/campledger/internal/invoice/domain"
	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT id, campaign_id, created_at, updated_at FROM invoices WHERE id = ?`,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]*domain.ListRow, int64, error) {
	var total int64
	if err := db.WithContext(ctx).Model(&domain.Invoice{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	var rows []*domain.ListRow
	err := db.WithContext(ctx).Raw(
		`SELECT i.id, i.campaign_id, i.created_at, i.updated_at, c.name AS campaign_name
		 FROM invoices i
		 JOIN campaigns c ON c.id = i.campaign_id
		 ORDER BY i.created_at DESC, i.id DESC
		 LIMIT ? OFFSET ?`,
		page.Limit,
		page.Offset,
	).Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repo) ListLineItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]*domain.InvoiceLineItem, error) {
	var items []*domain.InvoiceLineItem
	err := db.WithContext(ctx).
		Model(&domain.InvoiceLineItem{}).
		Where("invoice_id = ?", invoiceID).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) LockLineItems(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, ids []snowflake.ID) ([]*domain.InvoiceLineItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []*domain.InvoiceLineItem
	err := tx.WithContext(ctx).Raw(
		`SELECT id, invoice_id, line_item_id, actual_amount, adjustments, created_at, updated_at
		 FROM invoice_line_items
		 WHERE invoice_id = ? AND id IN ?
		 ORDER BY id
		 FOR UPDATE`,
		invoiceID,
		ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateAdjustments(ctx context.Context, tx *gorm.DB, id snowflake.ID, adjustments decimal.Decimal, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE invoice_line_items SET adjustments = ?, updated_at = ? WHERE id = ?`,
		adjustments,
		now,
		id,
	).Error
}
