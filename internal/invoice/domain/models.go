package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CampaignID snowflake.ID `gorm:"not null;uniqueIndex" json:"campaign_id"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// InvoiceLineItem ties a campaign line item to an invoice. Adjustments carry
// full precision in storage; billable amounts are always derived, never stored.
type InvoiceLineItem struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID    snowflake.ID    `gorm:"not null;uniqueIndex:ux_invoice_line_items_pair" json:"invoice_id"`
	LineItemID   snowflake.ID    `gorm:"not null;uniqueIndex:ux_invoice_line_items_pair" json:"line_item_id"`
	ActualAmount decimal.Decimal `gorm:"type:numeric(30,15);not null;default:0" json:"actual_amount"`
	Adjustments  decimal.Decimal `gorm:"type:numeric(30,15);not null;default:0" json:"adjustments"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// BillableAmount is the line item's actual amount plus its adjustments.
func (i InvoiceLineItem) BillableAmount() decimal.Decimal {
	return i.ActualAmount.Add(i.Adjustments)
}
