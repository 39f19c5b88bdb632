package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Reminder statuses
const (
	ReminderStatusScheduled = "scheduled"
	ReminderStatusSent      = "sent"
	ReminderStatusError     = "error"
)

// Reminder is the single derived email reminder of a key date. It is never
// edited directly; the key date's writes create, re-arm or remove it.
type Reminder struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FirmID    string `gorm:"type:uuid;not null;index" json:"firm_id"`
	KeyDateID string `gorm:"type:uuid;not null;uniqueIndex" json:"key_date_id"`

	SendAt     time.Time                      `gorm:"not null;index:idx_reminder_due" json:"send_at"`
	Recipients datatypes.JSONSlice[Recipient] `json:"recipients"`
	Subject    string                         `gorm:"not null" json:"subject"`
	Body       string                         `gorm:"type:text" json:"body"`

	Status      string     `gorm:"not null;default:scheduled;index:idx_reminder_due" json:"status"`
	ErrorReason *string    `gorm:"type:text" json:"error_reason,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
}

// BeforeCreate hook to generate UUID
func (r *Reminder) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = ReminderStatusScheduled
	}
	return nil
}

// TableName specifies the table name for Reminder model
func (Reminder) TableName() string {
	return "reminders"
}

// IsDue reports whether the dispatcher should pick this reminder up
func (r *Reminder) IsDue(now time.Time) bool {
	return r.Status == ReminderStatusScheduled && !r.SendAt.After(now)
}
