package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Campaign struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null;index" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	LineItems []LineItem `gorm:"foreignKey:CampaignID" json:"line_items,omitempty"`
}

type LineItem struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	CampaignID   snowflake.ID    `gorm:"not null;uniqueIndex:ux_line_items_campaign_name" json:"campaign_id"`
	Name         string          `gorm:"not null;uniqueIndex:ux_line_items_campaign_name" json:"name"`
	BookedAmount decimal.Decimal `gorm:"type:numeric(30,15);not null;default:0" json:"booked_amount"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
