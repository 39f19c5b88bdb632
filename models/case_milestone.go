package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CaseMilestone is one ordered step in a case's progression
type CaseMilestone struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Parent relationships
	FirmID string `gorm:"type:uuid;not null;index" json:"firm_id"`
	CaseID string `gorm:"type:uuid;not null;index:idx_case_milestone" json:"case_id"`

	// Milestone details
	Title       string  `gorm:"not null" json:"title"`
	Description *string `gorm:"type:text" json:"description,omitempty"`
	SortOrder   int     `gorm:"not null;default:0;index:idx_case_milestone" json:"sort_order"`

	// Status tracking
	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy *string    `gorm:"type:uuid" json:"completed_by,omitempty"`
}

// BeforeCreate hook to generate UUID
func (m *CaseMilestone) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for CaseMilestone model
func (CaseMilestone) TableName() string {
	return "case_milestones"
}
