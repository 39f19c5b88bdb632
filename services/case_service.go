package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"law_timeline_app_go/models"

	"github.com/juju/errors"
	"gorm.io/gorm"
)

// CaseInput holds the intake fields of a new case
type CaseInput struct {
	ClientID        string     `json:"client_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Priority        string     `json:"priority"`
	FiledAt         *time.Time `json:"filed_at"`
	DeadlineAt      *time.Time `json:"deadline_at"`
	AssignedToID    *string    `json:"assigned_to_id"`
	TemplateID      *string    `json:"template_id"`
	ProgressPercent int        `json:"progress_percent"`
}

// CaseIntakeResult is a new case with what its template seeded
type CaseIntakeResult struct {
	Case       *models.Case           `json:"case"`
	Milestones []models.CaseMilestone `json:"milestones"`
	Documents  []models.CaseDocument  `json:"documents"`
}

// maxCaseNumberAttempts bounds how often intake retries after another
// intake took the same case number
const maxCaseNumberAttempts = 5

// nextCaseNumber is swapped in tests to force collisions
var nextCaseNumber = generateCaseNumber

// generateCaseNumber returns the next free {SLUG}-{YEAR}-{SEQ} number of a firm.
// Soft-deleted cases keep their numbers.
func generateCaseNumber(tx *gorm.DB, firmID string, year int) (string, error) {
	var firm models.Firm
	if err := tx.Select("id", "slug").First(&firm, "id = ?", firmID).Error; err != nil {
		return "", errors.Annotatef(err, "loading firm %s", firmID)
	}
	prefix := fmt.Sprintf("%s-%d-", strings.ToUpper(firm.Slug), year)

	var numbers []string
	if err := tx.Unscoped().Model(&models.Case{}).
		Where("firm_id = ? AND case_number LIKE ?", firmID, prefix+"%").
		Pluck("case_number", &numbers).Error; err != nil {
		return "", errors.Trace(err)
	}
	sequence := 0
	for _, n := range numbers {
		parsed, err := strconv.Atoi(strings.TrimPrefix(n, prefix))
		if err == nil && parsed > sequence {
			sequence = parsed
		}
	}
	return fmt.Sprintf("%s%05d", prefix, sequence+1), nil
}

func loadFirmUser(tx *gorm.DB, firmID, userID string) (*models.User, error) {
	var u models.User
	err := tx.Where("id = ? AND firm_id = ?", userID, firmID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFoundf("user %s", userID)
	}
	return &u, errors.Trace(err)
}

// CreateCase opens a case for a client and seeds milestones and required
// documents from the template, all in one transaction
func (s *TimelineService) CreateCase(actor Actor, input CaseInput) (*CaseIntakeResult, error) {
	if err := actor.requireStaff("opening cases"); err != nil {
		return nil, err
	}
	title := sanitizeText(input.Title)
	if title == "" {
		return nil, errors.NotValidf("empty case title")
	}
	priority := strings.ToUpper(strings.TrimSpace(input.Priority))
	if priority == "" {
		priority = models.CasePriorityNormal
	}
	if !models.IsValidCasePriority(priority) {
		return nil, errors.NotValidf("case priority %q", input.Priority)
	}

	for attempt := 1; ; attempt++ {
		result, err := s.createCase(actor, input, title, priority)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		if attempt == maxCaseNumberAttempts {
			return nil, conflictf("no free case number after %d attempts", attempt)
		}
		logger.Debugf("case number taken by a concurrent intake, retrying (attempt %d)", attempt)
	}
}

// createCase runs one intake transaction. A unique violation on the case
// number rolls it back whole so the caller can retry with a fresh number.
func (s *TimelineService) createCase(actor Actor, input CaseInput, title, priority string) (*CaseIntakeResult, error) {
	result := &CaseIntakeResult{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		client, err := loadFirmUser(tx, actor.FirmID, input.ClientID)
		if err != nil {
			return err
		}
		if !client.IsClient() {
			return errors.NotValidf("user %s is not a client", client.ID)
		}
		if input.AssignedToID != nil {
			assignee, err := loadFirmUser(tx, actor.FirmID, *input.AssignedToID)
			if err != nil {
				return err
			}
			if !assignee.IsStaff() {
				return errors.NotValidf("user %s cannot be assigned", assignee.ID)
			}
		}
		var tmpl *models.CaseTemplate
		if input.TemplateID != nil {
			tmpl = &models.CaseTemplate{}
			if err := tx.Where("id = ? AND firm_id = ?", *input.TemplateID, actor.FirmID).First(tmpl).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errors.NotFoundf("case template %s", *input.TemplateID)
				}
				return errors.Trace(err)
			}
		}

		now := s.now()
		number, err := nextCaseNumber(tx, actor.FirmID, now.Year())
		if err != nil {
			return err
		}
		c := &models.Case{
			FirmID:          actor.FirmID,
			ClientID:        client.ID,
			CaseNumber:      number,
			Title:           title,
			Description:     sanitizeText(input.Description),
			Status:          models.CaseStatusOpen,
			Priority:        priority,
			FiledAt:         utcPtr(input.FiledAt),
			DeadlineAt:      utcPtr(input.DeadlineAt),
			ProgressPercent: models.ClampProgress(input.ProgressPercent),
			AssignedToID:    input.AssignedToID,
			TemplateID:      input.TemplateID,
		}
		if err := tx.Create(c).Error; err != nil {
			return errors.Annotate(err, "creating case")
		}

		if tmpl != nil {
			if result.Milestones, err = seedMilestones(tx, c, tmpl.MilestoneSteps); err != nil {
				return err
			}
			if result.Documents, err = seedRequirements(tx, c, tmpl.RequiredDocuments); err != nil {
				return err
			}
			if err := refreshCaseProgress(tx, c); err != nil {
				return err
			}
		}
		result.Case = c

		return writeAudit(tx, actor, auditEntry{
			CaseID:       c.ID,
			ResourceType: models.AuditResourceCase,
			ResourceID:   c.ID,
			ResourceName: c.CaseNumber,
			Action:       models.AuditActionCreate,
			NewValues:    map[string]interface{}{"title": c.Title, "priority": c.Priority, "template_id": c.TemplateID},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CaseUpdate is a partial update of a case
type CaseUpdate struct {
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	Status          *string    `json:"status"`
	Priority        *string    `json:"priority"`
	FiledAt         *time.Time `json:"filed_at"`
	DeadlineAt      *time.Time `json:"deadline_at"`
	AssignedToID    *string    `json:"assigned_to_id"`
	ProgressPercent *int       `json:"progress_percent"`
}

// UpdateCase applies the supplied fields. Closing a case stamps its
// completion date; reopening clears it.
func (s *TimelineService) UpdateCase(actor Actor, caseID string, input CaseUpdate) (*models.Case, error) {
	if err := actor.requireStaff("updating cases"); err != nil {
		return nil, err
	}

	var updated *models.Case
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		c, err := loadCase(tx, actor, caseID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if input.Title != nil {
			title := sanitizeText(*input.Title)
			if title == "" {
				return errors.NotValidf("empty case title")
			}
			updates["title"] = title
		}
		if input.Description != nil {
			updates["description"] = sanitizeText(*input.Description)
		}
		if input.Status != nil && *input.Status != c.Status {
			if !models.IsValidCaseStatus(*input.Status) {
				return errors.NotValidf("case status %q", *input.Status)
			}
			updates["status"] = *input.Status
			if *input.Status == models.CaseStatusClosed {
				updates["completed_at"] = s.now()
			} else {
				updates["completed_at"] = nil
			}
		}
		if input.Priority != nil {
			priority := strings.ToUpper(*input.Priority)
			if !models.IsValidCasePriority(priority) {
				return errors.NotValidf("case priority %q", *input.Priority)
			}
			updates["priority"] = priority
		}
		if input.FiledAt != nil {
			updates["filed_at"] = input.FiledAt.UTC()
		}
		if input.DeadlineAt != nil {
			updates["deadline_at"] = input.DeadlineAt.UTC()
		}
		if input.AssignedToID != nil {
			assignee, err := loadFirmUser(tx, c.FirmID, *input.AssignedToID)
			if err != nil {
				return err
			}
			if !assignee.IsStaff() {
				return errors.NotValidf("user %s cannot be assigned", assignee.ID)
			}
			updates["assigned_to_id"] = assignee.ID
		}
		if input.ProgressPercent != nil {
			updates["progress_percent"] = models.ClampProgress(*input.ProgressPercent)
		}
		if len(updates) == 0 {
			updated = c
			return nil
		}

		if err := tx.Model(&models.Case{}).Where("id = ? AND firm_id = ?", c.ID, c.FirmID).Updates(updates).Error; err != nil {
			return errors.Trace(err)
		}
		if err := writeAudit(tx, actor, auditEntry{
			CaseID:       c.ID,
			ResourceType: models.AuditResourceCase,
			ResourceID:   c.ID,
			ResourceName: c.CaseNumber,
			Action:       models.AuditActionUpdate,
			OldValues:    map[string]interface{}{"status": c.Status, "priority": c.Priority, "progress_percent": c.ProgressPercent},
			NewValues:    updates,
		}); err != nil {
			return err
		}
		updated, err = loadCase(tx, actor, caseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetCase returns a case visible to the actor
func (s *TimelineService) GetCase(actor Actor, caseID string) (*models.Case, error) {
	return loadCase(s.DB, actor, caseID)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
