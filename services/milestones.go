package services

import (
	"sort"
	"strings"
	"time"

	"law_timeline_app_go/models"

	"github.com/juju/errors"
	"gorm.io/gorm"
)

// Milestone states in a derived progress view
const (
	MilestoneStateCompleted = "completed"
	MilestoneStateCurrent   = "current"
	MilestoneStateUpcoming  = "upcoming"
)

// MilestoneView is a milestone with its derived position in the sequence
type MilestoneView struct {
	models.CaseMilestone
	State string `json:"state"`
}

// CaseProgress is the derived read model of a case's milestones
type CaseProgress struct {
	CaseID          string          `json:"case_id"`
	Milestones      []MilestoneView `json:"milestones"`
	Current         *MilestoneView  `json:"current"`
	CompletedCount  int             `json:"completed_count"`
	Total           int             `json:"total"`
	Percent         int             `json:"percent"`
	FullyProgressed bool            `json:"fully_progressed"`
}

// DeriveProgress computes the current step from milestones ordered by
// SortOrder: the first incomplete one is current, those before it are
// completed and those after it upcoming. Without milestones the stored
// case percentage is authoritative.
func DeriveProgress(milestones []models.CaseMilestone, storedPercent int) CaseProgress {
	ordered := append([]models.CaseMilestone(nil), milestones...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SortOrder < ordered[j].SortOrder
	})

	p := CaseProgress{Total: len(ordered), Milestones: make([]MilestoneView, 0, len(ordered))}
	if len(ordered) == 0 {
		p.Percent = models.ClampProgress(storedPercent)
		p.FullyProgressed = true
		return p
	}

	currentIdx := -1
	for i, m := range ordered {
		state := MilestoneStateUpcoming
		switch {
		case currentIdx == -1 && !m.Completed:
			currentIdx = i
			state = MilestoneStateCurrent
		case currentIdx == -1:
			state = MilestoneStateCompleted
		}
		if m.Completed {
			p.CompletedCount++
		}
		p.Milestones = append(p.Milestones, MilestoneView{CaseMilestone: m, State: state})
	}

	if currentIdx >= 0 {
		p.Current = &p.Milestones[currentIdx]
	} else {
		p.FullyProgressed = true
	}
	p.Percent = p.CompletedCount * 100 / p.Total
	return p
}

func listMilestones(tx *gorm.DB, firmID, caseID string) ([]models.CaseMilestone, error) {
	var milestones []models.CaseMilestone
	err := tx.Where("firm_id = ? AND case_id = ?", firmID, caseID).
		Order("sort_order ASC, created_at ASC").
		Find(&milestones).Error
	return milestones, errors.Trace(err)
}

// GetCaseProgress returns the derived milestone view of a case
func (s *TimelineService) GetCaseProgress(actor Actor, caseID string) (*CaseProgress, error) {
	c, err := loadCase(s.DB, actor, caseID)
	if err != nil {
		return nil, err
	}
	milestones, err := listMilestones(s.DB, c.FirmID, c.ID)
	if err != nil {
		return nil, err
	}
	p := DeriveProgress(milestones, c.ProgressPercent)
	p.CaseID = c.ID
	return &p, nil
}

// seedMilestones appends one incomplete milestone per step, keeping the given order
func seedMilestones(tx *gorm.DB, c *models.Case, steps []string) ([]models.CaseMilestone, error) {
	next, err := nextSortOrder(tx, c)
	if err != nil {
		return nil, err
	}
	var created []models.CaseMilestone
	for _, step := range steps {
		title := strings.TrimSpace(step)
		if title == "" {
			continue
		}
		m := models.CaseMilestone{FirmID: c.FirmID, CaseID: c.ID, Title: title, SortOrder: next}
		if err := tx.Create(&m).Error; err != nil {
			return nil, errors.Annotate(err, "creating milestone")
		}
		created = append(created, m)
		next++
	}
	return created, nil
}

func nextSortOrder(tx *gorm.DB, c *models.Case) (int, error) {
	var max int
	err := tx.Model(&models.CaseMilestone{}).
		Where("firm_id = ? AND case_id = ?", c.FirmID, c.ID).
		Select("COALESCE(MAX(sort_order), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, errors.Trace(err)
	}
	return max + 1, nil
}

// refreshCaseProgress stores the derived ratio on the case once milestones exist
func refreshCaseProgress(tx *gorm.DB, c *models.Case) error {
	milestones, err := listMilestones(tx, c.FirmID, c.ID)
	if err != nil || len(milestones) == 0 {
		return err
	}
	percent := DeriveProgress(milestones, c.ProgressPercent).Percent
	if percent == c.ProgressPercent {
		return nil
	}
	c.ProgressPercent = percent
	return errors.Trace(tx.Model(&models.Case{}).
		Where("id = ? AND firm_id = ?", c.ID, c.FirmID).
		Update("progress_percent", percent).Error)
}

// SeedMilestones appends template steps to a case
func (s *TimelineService) SeedMilestones(actor Actor, caseID string, steps []string) ([]models.CaseMilestone, error) {
	if err := actor.requireStaff("seeding milestones"); err != nil {
		return nil, err
	}
	var created []models.CaseMilestone
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		c, err := loadCase(tx, actor, caseID)
		if err != nil {
			return err
		}
		if created, err = seedMilestones(tx, c, steps); err != nil {
			return err
		}
		return refreshCaseProgress(tx, c)
	})
	return created, err
}

// MilestoneInput holds the fields of a new milestone
type MilestoneInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

// AddMilestone appends a milestone after the last one
func (s *TimelineService) AddMilestone(actor Actor, caseID string, input MilestoneInput) (*models.CaseMilestone, error) {
	if err := actor.requireStaff("adding milestones"); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.NotValidf("empty milestone title")
	}

	var m models.CaseMilestone
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		c, err := loadCase(tx, actor, caseID)
		if err != nil {
			return err
		}
		next, err := nextSortOrder(tx, c)
		if err != nil {
			return err
		}
		m = models.CaseMilestone{
			FirmID:      c.FirmID,
			CaseID:      c.ID,
			Title:       title,
			Description: ptrIfNotEmpty(strings.TrimSpace(input.Description)),
			SortOrder:   next,
		}
		if input.DueDate != nil {
			due := input.DueDate.UTC()
			m.DueDate = &due
		}
		if err := tx.Create(&m).Error; err != nil {
			return errors.Annotate(err, "creating milestone")
		}
		return refreshCaseProgress(tx, c)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CompleteMilestone marks a milestone done by the actor
func (s *TimelineService) CompleteMilestone(actor Actor, caseID, milestoneID string) (*CaseProgress, error) {
	now := s.now()
	return s.updateMilestone(actor, caseID, milestoneID, map[string]interface{}{
		"completed":    true,
		"completed_at": now,
		"completed_by": actor.UserID,
	})
}

// ResetMilestone marks a milestone incomplete again
func (s *TimelineService) ResetMilestone(actor Actor, caseID, milestoneID string) (*CaseProgress, error) {
	return s.updateMilestone(actor, caseID, milestoneID, map[string]interface{}{
		"completed":    false,
		"completed_at": nil,
		"completed_by": nil,
	})
}

func (s *TimelineService) updateMilestone(actor Actor, caseID, milestoneID string, updates map[string]interface{}) (*CaseProgress, error) {
	if err := actor.requireStaff("updating milestones"); err != nil {
		return nil, err
	}
	var progress CaseProgress
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		c, err := loadCase(tx, actor, caseID)
		if err != nil {
			return err
		}
		res := tx.Model(&models.CaseMilestone{}).
			Where("id = ? AND case_id = ? AND firm_id = ?", milestoneID, c.ID, c.FirmID).
			Updates(updates)
		if res.Error != nil {
			return errors.Trace(res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.NotFoundf("milestone %s", milestoneID)
		}
		if err := refreshCaseProgress(tx, c); err != nil {
			return err
		}
		milestones, err := listMilestones(tx, c.FirmID, c.ID)
		if err != nil {
			return err
		}
		progress = DeriveProgress(milestones, c.ProgressPercent)
		progress.CaseID = c.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// ReorderMilestones assigns sort orders 1..n following milestoneIDs, which
// must name every milestone of the case exactly once
func (s *TimelineService) ReorderMilestones(actor Actor, caseID string, milestoneIDs []string) (*CaseProgress, error) {
	if err := actor.requireStaff("reordering milestones"); err != nil {
		return nil, err
	}
	var progress CaseProgress
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		c, err := loadCase(tx, actor, caseID)
		if err != nil {
			return err
		}
		existing, err := listMilestones(tx, c.FirmID, c.ID)
		if err != nil {
			return err
		}
		if err := sameMilestoneSet(existing, milestoneIDs); err != nil {
			return err
		}
		for i, id := range milestoneIDs {
			if err := tx.Model(&models.CaseMilestone{}).
				Where("id = ? AND case_id = ? AND firm_id = ?", id, c.ID, c.FirmID).
				Update("sort_order", i+1).Error; err != nil {
				return errors.Trace(err)
			}
		}
		milestones, err := listMilestones(tx, c.FirmID, c.ID)
		if err != nil {
			return err
		}
		progress = DeriveProgress(milestones, c.ProgressPercent)
		progress.CaseID = c.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func sameMilestoneSet(existing []models.CaseMilestone, ids []string) error {
	if len(ids) != len(existing) {
		return errors.NotValidf("order lists %d of %d milestones", len(ids), len(existing))
	}
	known := make(map[string]bool, len(existing))
	for _, m := range existing {
		known[m.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return errors.NotValidf("milestone %s in order", id)
		}
		delete(known, id)
	}
	return nil
}

// DeleteMilestone removes a milestone and refreshes the case progress
func (s *TimelineService) DeleteMilestone(actor Actor, caseID, milestoneID string) error {
	if err := actor.requireStaff("deleting milestones"); err != nil {
		return err
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		c, err := loadCase(tx, actor, caseID)
		if err != nil {
			return err
		}
		res := tx.Where("id = ? AND case_id = ? AND firm_id = ?", milestoneID, c.ID, c.FirmID).
			Delete(&models.CaseMilestone{})
		if res.Error != nil {
			return errors.Trace(res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.NotFoundf("milestone %s", milestoneID)
		}
		return refreshCaseProgress(tx, c)
	})
}
