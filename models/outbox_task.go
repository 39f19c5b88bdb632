package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Outbox task kinds
const (
	OutboxKindCalendarUpsert = "calendar_upsert"
	OutboxKindCalendarDelete = "calendar_delete"
	OutboxKindSendEmail      = "send_email"
	OutboxKindNotifyUser     = "notify_user"
	OutboxKindDeleteFile     = "delete_file"
)

// Outbox task statuses
const (
	OutboxStatusPending = "pending"
	OutboxStatusDone    = "done"
	OutboxStatusFailed  = "failed"
)

// OutboxTask is a side effect recorded in the same transaction as the
// state change that caused it, executed after commit.
type OutboxTask struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FirmID     string         `gorm:"type:uuid;not null;index" json:"firm_id"`
	Kind       string         `gorm:"not null" json:"kind"`
	EntityType string         `gorm:"not null" json:"entity_type"`
	EntityID   string         `gorm:"not null;index" json:"entity_id"`
	Payload    datatypes.JSON `json:"payload"`

	Status      string     `gorm:"not null;default:pending;index" json:"status"`
	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	LastError   *string    `gorm:"type:text" json:"last_error,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// BeforeCreate hook to generate UUID
func (t *OutboxTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = OutboxStatusPending
	}
	return nil
}

// TableName specifies the table name for OutboxTask model
func (OutboxTask) TableName() string {
	return "outbox_tasks"
}
