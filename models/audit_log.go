package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditAction represents the type of operation performed
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
	AuditActionReview AuditAction = "REVIEW"
	AuditActionUpload AuditAction = "UPLOAD"
)

// Audited resource types
const (
	AuditResourceCase      = "Case"
	AuditResourceDocument  = "CaseDocument"
	AuditResourceKeyDate   = "KeyDate"
	AuditResourceMilestone = "CaseMilestone"
	AuditResourceUser      = "User"
)

// AuditLog is an immutable record of a timeline change, written in the
// same transaction as the change itself
type AuditLog struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index:idx_audit_created_at" json:"created_at"`

	// Actor identification
	UserID   *string `gorm:"type:uuid;index:idx_audit_user" json:"user_id,omitempty"`
	UserName string  `gorm:"not null" json:"user_name"` // Denormalized for historical accuracy
	UserRole string  `gorm:"not null" json:"user_role"`

	FirmID string  `gorm:"type:uuid;not null;index:idx_audit_firm" json:"firm_id"`
	CaseID *string `gorm:"type:uuid;index" json:"case_id,omitempty"`

	// Target resource
	ResourceType string `gorm:"not null;index:idx_audit_resource" json:"resource_type"`
	ResourceID   string `gorm:"type:uuid;not null;index:idx_audit_resource" json:"resource_id"`
	ResourceName string `json:"resource_name,omitempty"`

	Action      AuditAction    `gorm:"not null" json:"action"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	OldValues   datatypes.JSON `json:"old_values,omitempty"`
	NewValues   datatypes.JSON `json:"new_values,omitempty"`
}

// BeforeCreate hook to generate UUID
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}
