package services

import (
	"encoding/json"

	"law_timeline_app_go/models"

	"github.com/juju/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// auditEntry describes one change to record
type auditEntry struct {
	CaseID       string
	ResourceType string
	ResourceID   string
	ResourceName string
	Action       models.AuditAction
	Description  string
	OldValues    interface{}
	NewValues    interface{}
}

// writeAudit records an entry in the caller's transaction, so the audit
// trail commits or rolls back with the change it describes
func writeAudit(tx *gorm.DB, actor Actor, e auditEntry) error {
	log := models.AuditLog{
		UserID:       ptrIfNotEmpty(actor.UserID),
		UserName:     actor.Name,
		UserRole:     actor.Role,
		FirmID:       actor.FirmID,
		CaseID:       ptrIfNotEmpty(e.CaseID),
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		ResourceName: e.ResourceName,
		Action:       e.Action,
		Description:  e.Description,
		OldValues:    toJSON(e.OldValues),
		NewValues:    toJSON(e.NewValues),
	}
	return errors.Annotate(tx.Create(&log).Error, "writing audit log")
}

func toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warningf("audit values not serializable: %v", err)
		return nil
	}
	return datatypes.JSON(data)
}

// GetCaseAuditHistory returns the audit trail of a case, newest first
func (s *TimelineService) GetCaseAuditHistory(actor Actor, caseID string) ([]models.AuditLog, error) {
	if err := actor.requireStaff("viewing the audit trail"); err != nil {
		return nil, err
	}
	if _, err := loadCase(s.DB, actor, caseID); err != nil {
		return nil, err
	}
	var logs []models.AuditLog
	err := s.DB.Where("firm_id = ? AND case_id = ?", actor.FirmID, caseID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, errors.Trace(err)
}
