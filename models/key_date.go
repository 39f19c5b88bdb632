package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Key date kinds
const (
	KeyDateKindHearing  = "hearing"
	KeyDateKindFiling   = "filing"
	KeyDateKindDeadline = "deadline"
	KeyDateKindMeeting  = "meeting"
	KeyDateKindOther    = "other"
)

const (
	DefaultKeyDateDurationMinutes = 60
	MinKeyDateDurationMinutes     = 15
	DefaultRemindMinutesBefore    = 24 * 60
	MinRemindMinutesBefore        = 5
)

// Recipient is a notify target of a key date, unique by email
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// KeyDate is a scheduled event on a case (hearing, filing, deadline).
// ExternalEventID and ExternalEventLink are written only by calendar sync.
type KeyDate struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FirmID string `gorm:"type:uuid;not null;index" json:"firm_id"`
	CaseID string `gorm:"type:uuid;not null;index:idx_key_date_case_time" json:"case_id"`

	Title           string    `gorm:"not null" json:"title"`
	Description     string    `gorm:"type:text" json:"description,omitempty"`
	Kind            string    `gorm:"not null;default:other" json:"kind"`
	OccursAt        time.Time `gorm:"not null;index:idx_key_date_case_time" json:"occurs_at"`
	Timezone        string    `gorm:"not null;default:UTC" json:"timezone"`
	DurationMinutes int       `gorm:"not null;default:60" json:"duration_minutes"`
	Location        string    `json:"location,omitempty"`

	SyncToCalendar      bool                           `gorm:"not null;default:false" json:"sync_to_calendar"`
	NotifyRecipients    datatypes.JSONSlice[Recipient] `json:"notify_recipients"`
	NotifyByEmail       bool                           `gorm:"not null;default:false" json:"notify_by_email"`
	RemindMinutesBefore *int                           `json:"remind_minutes_before,omitempty"`

	ExternalEventID   *string `json:"external_event_id,omitempty"`
	ExternalEventLink *string `json:"external_event_link,omitempty"`

	Version int `gorm:"not null;default:1" json:"version"`

	Reminder *Reminder `gorm:"foreignKey:KeyDateID" json:"reminder,omitempty"`
}

// BeforeCreate hook to generate UUID
func (k *KeyDate) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	if k.Version == 0 {
		k.Version = 1
	}
	return nil
}

// TableName specifies the table name for KeyDate model
func (KeyDate) TableName() string {
	return "key_dates"
}

// EndsAt returns the end of the event
func (k *KeyDate) EndsAt() time.Time {
	return k.OccursAt.Add(time.Duration(k.DurationMinutes) * time.Minute)
}

// HasExternalEvent reports whether a remote calendar event is linked
func (k *KeyDate) HasExternalEvent() bool {
	return k.ExternalEventID != nil && *k.ExternalEventID != ""
}

func IsValidKeyDateKind(kind string) bool {
	switch kind {
	case KeyDateKindHearing, KeyDateKindFiling, KeyDateKindDeadline, KeyDateKindMeeting, KeyDateKindOther:
		return true
	}
	return false
}
