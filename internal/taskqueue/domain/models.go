package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

const DefaultMaxAttempts = 3

// Task is one durable unit of background work. Tasks sharing a lock key are
// executed strictly in enqueue order; tasks with different keys may run
// concurrently.
type Task struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"not null;index" json:"name"`
	LockKey     string            `gorm:"not null;index" json:"lock_key"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"payload"`
	Status      TaskStatus        `gorm:"not null;index;default:pending" json:"status"`
	Attempts    int               `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int               `gorm:"not null;default:3" json:"max_attempts"`
	LastError   string            `json:"last_error,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Task) TableName() string { return "tasks" }
