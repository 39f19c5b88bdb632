package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User roles
const (
	RoleAdmin  = "admin"
	RoleLawyer = "lawyer"
	RoleStaff  = "staff"
	RoleClient = "client"
)

type User struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name     string  `gorm:"not null" json:"name"`
	Email    string  `gorm:"uniqueIndex;not null" json:"email"`
	FirmID   *string `gorm:"type:uuid;index" json:"firm_id"`
	Role     string  `gorm:"not null;default:staff" json:"role"` // admin, lawyer, staff, client
	IsActive bool    `gorm:"not null;default:true" json:"is_active"`
	Language string  `gorm:"size:5;default:es" json:"language"`

	// Relationships
	Firm *Firm `gorm:"foreignKey:FirmID" json:"firm,omitempty"`
}

// BeforeCreate hook to generate UUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// HasFirm checks if the user has a firm assigned
func (u *User) HasFirm() bool {
	return u.FirmID != nil && *u.FirmID != ""
}

// IsClient reports whether the user acts on the client portal
func (u *User) IsClient() bool {
	return u.Role == RoleClient
}

// IsStaff reports whether the user acts on behalf of the firm
func (u *User) IsStaff() bool {
	return IsStaffRole(u.Role)
}

// IsStaffRole checks whether a role belongs to firm personnel
func IsStaffRole(role string) bool {
	return role == RoleAdmin || role == RoleLawyer || role == RoleStaff
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
