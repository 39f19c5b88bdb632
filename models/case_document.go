package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document requirement statuses
const (
	DocumentStatusPending        = "pending"
	DocumentStatusSubmitted      = "submitted"
	DocumentStatusApproved       = "approved"
	DocumentStatusRejected       = "rejected"
	DocumentStatusRequiresAction = "requires_action"
	DocumentStatusNotRequired    = "not_required"
)

// DocumentStatuses lists every status in display order
var DocumentStatuses = []string{
	DocumentStatusPending,
	DocumentStatusSubmitted,
	DocumentStatusApproved,
	DocumentStatusRejected,
	DocumentStatusRequiresAction,
	DocumentStatusNotRequired,
}

// CaseDocument is either a tracked requirement (IsRequired) or an ad-hoc upload on a case.
// Only the latest file is referenced; replaced files are removed from storage after commit.
type CaseDocument struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Firm relationship (for scoping)
	FirmID string `gorm:"type:uuid;not null;index" json:"firm_id"`
	CaseID string `gorm:"type:uuid;not null;index" json:"case_id"`

	// Requirement
	Name           string `gorm:"not null" json:"name"`
	NormalizedName string `gorm:"not null;index" json:"-"`
	IsRequired     bool   `gorm:"not null;default:false" json:"is_required"`
	Status         string `gorm:"not null;default:pending;index" json:"status"`

	// File metadata
	FileKey          *string `json:"-"` // storage key, never exposed
	FileOriginalName *string `json:"file_original_name,omitempty"`
	FileSize         int64   `gorm:"not null;default:0" json:"file_size"`
	MimeType         string  `json:"mime_type,omitempty"`

	// Review
	ReviewerNotes *string    `gorm:"type:text" json:"reviewer_notes,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	ReviewedByID  *string    `gorm:"type:uuid" json:"reviewed_by_id,omitempty"`
	UploadedByID  *string    `gorm:"type:uuid" json:"uploaded_by_id,omitempty"`

	Version int `gorm:"not null;default:1" json:"version"`

	// DownloadURL is derived on load, never stored
	DownloadURL string `gorm:"-" json:"download_url,omitempty"`
}

// BeforeCreate hook to generate UUID and the normalized lookup name
func (d *CaseDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.NormalizedName == "" {
		d.NormalizedName = NormalizeDocumentName(d.Name)
	}
	if d.Status == "" {
		d.Status = DocumentStatusPending
	}
	if d.Version == 0 {
		d.Version = 1
	}
	return nil
}

func (d *CaseDocument) AfterCreate(tx *gorm.DB) error {
	d.DownloadURL = d.GetDownloadURL()
	return nil
}

func (d *CaseDocument) AfterFind(tx *gorm.DB) error {
	d.DownloadURL = d.GetDownloadURL()
	return nil
}

// TableName specifies the table name for CaseDocument model
func (CaseDocument) TableName() string {
	return "case_documents"
}

// HasFile reports whether a file has been attached
func (d *CaseDocument) HasFile() bool {
	return d.FileKey != nil && *d.FileKey != ""
}

// ClientCanAttach reports whether a client may upload against the current status
func (d *CaseDocument) ClientCanAttach() bool {
	return d.Status == DocumentStatusPending || d.Status == DocumentStatusRequiresAction
}

// GetDownloadURL returns a safe download URL for this document
func (d *CaseDocument) GetDownloadURL() string {
	if !d.HasFile() {
		return ""
	}
	return "/api/cases/" + d.CaseID + "/documents/" + d.ID + "/file"
}

// NormalizeDocumentName folds case and collapses whitespace so "Tax  Return" == "tax return"
func NormalizeDocumentName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func IsValidDocumentStatus(status string) bool {
	for _, s := range DocumentStatuses {
		if s == status {
			return true
		}
	}
	return false
}
