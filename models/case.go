package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Case status constants
const (
	CaseStatusOpen   = "OPEN"
	CaseStatusOnHold = "ON_HOLD"
	CaseStatusClosed = "CLOSED"
)

// Case priority constants
const (
	CasePriorityLow    = "LOW"
	CasePriorityNormal = "NORMAL"
	CasePriorityHigh   = "HIGH"
	CasePriorityUrgent = "URGENT"
)

// Case represents a legal case, the aggregate root of the timeline
type Case struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Firm relationship
	FirmID string `gorm:"type:uuid;not null;index:idx_case_firm_status" json:"firm_id"`

	// Client relationship (User with role 'client')
	ClientID string `gorm:"type:uuid;not null;index" json:"client_id"`
	Client   *User  `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	// Case identification
	CaseNumber  string `gorm:"not null;uniqueIndex" json:"case_number"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	// Status and lifecycle
	Status          string     `gorm:"not null;default:OPEN;index:idx_case_firm_status" json:"status"`
	Priority        string     `gorm:"not null;default:NORMAL" json:"priority"`
	FiledAt         *time.Time `json:"filed_at,omitempty"`
	DeadlineAt      *time.Time `json:"deadline_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ProgressPercent int        `gorm:"not null;default:0" json:"progress_percent"`

	// Assignment
	AssignedToID *string `gorm:"type:uuid" json:"assigned_to_id,omitempty"`
	AssignedTo   *User   `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`

	TemplateID *string `gorm:"type:uuid" json:"template_id,omitempty"`
}

// BeforeCreate hook to generate UUID and normalize progress
func (c *Case) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.ProgressPercent = ClampProgress(c.ProgressPercent)
	return nil
}

// TableName specifies the table name for Case model
func (Case) TableName() string {
	return "cases"
}

// ClampProgress bounds a progress percentage to 0..100
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func IsValidCaseStatus(status string) bool {
	switch status {
	case CaseStatusOpen, CaseStatusOnHold, CaseStatusClosed:
		return true
	}
	return false
}

func IsValidCasePriority(priority string) bool {
	switch priority {
	case CasePriorityLow, CasePriorityNormal, CasePriorityHigh, CasePriorityUrgent:
		return true
	}
	return false
}
