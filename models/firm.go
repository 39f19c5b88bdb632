package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9-]+`)
	slugDashes       = regexp.MustCompile(`-+`)
)

// Firm is the tenant boundary: every case-owned record carries its FirmID
type Firm struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name         string `gorm:"not null" json:"name"`
	Slug         string `gorm:"uniqueIndex;not null" json:"slug"`
	Timezone     string `gorm:"not null;default:UTC" json:"timezone"`
	NoreplyEmail string `json:"noreply_email"`

	// Relationships
	Users []User `gorm:"foreignKey:FirmID" json:"-"`
}

// BeforeCreate hook to generate UUID and slug
func (f *Firm) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.Slug == "" {
		f.Slug = generateSlug(tx, f.Name)
	}
	if f.Timezone == "" {
		f.Timezone = "UTC"
	}
	return nil
}

// generateSlug creates a unique URL-friendly slug from the firm name
func generateSlug(tx *gorm.DB, name string) string {
	slug := strings.ReplaceAll(strings.ToLower(name), " ", "-")
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = strings.Trim(slugDashes.ReplaceAllString(slug, "-"), "-")
	if len(slug) > 50 {
		slug = strings.TrimRight(slug[:50], "-")
	}
	if slug == "" {
		slug = "firm"
	}

	base := slug
	for counter := 1; ; counter++ {
		var count int64
		tx.Model(&Firm{}).Where("slug = ?", slug).Count(&count)
		if count == 0 {
			return slug
		}
		slug = base + "-" + strconv.Itoa(counter)
	}
}

// TableName specifies the table name for Firm model
func (Firm) TableName() string {
	return "firms"
}
