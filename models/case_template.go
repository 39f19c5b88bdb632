package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CaseTemplate describes the steps and paperwork a new case starts with
type CaseTemplate struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	FirmID string `gorm:"type:uuid;not null;index" json:"firm_id"`
	Name   string `gorm:"not null" json:"name"`

	// Ordered milestone titles
	MilestoneSteps datatypes.JSONSlice[string] `json:"milestone_steps"`
	// Named documents the client is expected to provide
	RequiredDocuments datatypes.JSONSlice[string] `json:"required_documents"`
}

// BeforeCreate hook to generate UUID
func (t *CaseTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for CaseTemplate model
func (CaseTemplate) TableName() string {
	return "case_templates"
}
