package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EntityType string

const (
	EntityInvoiceLineItem EntityType = "invoice_line_item"
	EntityCampaign        EntityType = "campaign"
	EntityLineItem        EntityType = "line_item"
	EntityComment         EntityType = "comment"
)

// Valid reports whether t names a tracked entity kind.
func (t EntityType) Valid() bool {
	switch t {
	case EntityInvoiceLineItem, EntityCampaign, EntityLineItem, EntityComment:
		return true
	default:
		return false
	}
}

// ChangeHistory is an append-only record of one entity mutation. OldValue is
// nil for creations; both payloads hold only the fields that changed.
type ChangeHistory struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	EntityType      EntityType        `gorm:"not null;index:ix_change_history_entity" json:"entity_type"`
	EntityID        snowflake.ID      `gorm:"not null;index:ix_change_history_entity" json:"entity_id"`
	OldValue        datatypes.JSONMap `gorm:"type:jsonb" json:"old_value,omitempty"`
	NewValue        datatypes.JSONMap `gorm:"type:jsonb;not null" json:"new_value"`
	ChangedByUserID snowflake.ID      `gorm:"not null;index" json:"changed_by_user_id"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ChangeHistory) TableName() string { return "change_history" }

// Entry is a history row shaped for API responses, with the actor resolved.
type Entry struct {
	ChangeHistory
	ChangedByUsername string `json:"changed_by_username"`
}
