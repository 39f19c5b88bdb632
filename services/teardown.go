package services

import (
	"context"

	"law_timeline_app_go/models"

	"github.com/juju/errors"
	"gorm.io/gorm"
)

// TeardownResult counts what a client teardown removed
type TeardownResult struct {
	Cases         int64     `json:"cases"`
	Milestones    int64     `json:"milestones"`
	Documents     int64     `json:"documents"`
	KeyDates      int64     `json:"key_dates"`
	Reminders     int64     `json:"reminders"`
	Notifications int64     `json:"notifications"`
	AuditLogs     int64     `json:"audit_logs"`
	Warnings      []Warning `json:"warnings"`
}

// TeardownClient purges a client and every case they own. Rows are removed
// children first (reminders, key dates, milestones, documents,
// notifications, audit entries, cases, then the user) in one transaction.
// Remote calendar events and stored files are removed through the outbox
// after commit. Each step deletes by filter, so re-running after a partial
// failure is safe.
func (s *TimelineService) TeardownClient(ctx context.Context, actor Actor, clientID string) (*TeardownResult, error) {
	if actor.Role != models.RoleAdmin {
		return nil, errors.Forbiddenf("client teardown requires an admin")
	}

	result := &TeardownResult{}
	ob := &outbox{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		client, err := loadFirmUser(tx.Unscoped(), actor.FirmID, clientID)
		if err != nil {
			return err
		}
		if !client.IsClient() {
			return errors.NotValidf("user %s is not a client", client.ID)
		}

		var caseIDs []string
		if err := tx.Unscoped().Model(&models.Case{}).
			Where("firm_id = ? AND client_id = ?", actor.FirmID, client.ID).
			Pluck("id", &caseIDs).Error; err != nil {
			return errors.Trace(err)
		}

		if len(caseIDs) > 0 {
			if err := s.enqueueTeardownCleanup(tx, ob, actor.FirmID, caseIDs); err != nil {
				return err
			}
			if err := purgeCases(tx, actor.FirmID, caseIDs, result); err != nil {
				return err
			}
		}

		res := tx.Unscoped().Where("firm_id = ? AND user_id = ?", actor.FirmID, client.ID).Delete(&models.Notification{})
		if res.Error != nil {
			return errors.Trace(res.Error)
		}
		result.Notifications += res.RowsAffected

		if err := tx.Unscoped().Delete(client).Error; err != nil {
			return errors.Annotatef(err, "deleting client %s", client.ID)
		}
		return writeAudit(tx, actor, auditEntry{
			ResourceType: models.AuditResourceUser,
			ResourceID:   client.ID,
			ResourceName: client.Name,
			Action:       models.AuditActionDelete,
			Description:  "client and cases purged",
			OldValues:    map[string]interface{}{"cases": result.Cases, "documents": result.Documents, "key_dates": result.KeyDates},
		})
	})
	if err != nil {
		return nil, err
	}
	result.Warnings = s.run(ctx, ob)
	return result, nil
}

// enqueueTeardownCleanup queues removal of the remote events and stored files of the cases
func (s *TimelineService) enqueueTeardownCleanup(tx *gorm.DB, ob *outbox, firmID string, caseIDs []string) error {
	var linked []models.KeyDate
	if err := tx.Select("id", "external_event_id").
		Where("firm_id = ? AND case_id IN ? AND external_event_id IS NOT NULL", firmID, caseIDs).
		Find(&linked).Error; err != nil {
		return errors.Trace(err)
	}
	for _, kd := range linked {
		if !kd.HasExternalEvent() {
			continue
		}
		if err := ob.add(tx, firmID, models.OutboxKindCalendarDelete, models.AuditResourceKeyDate, kd.ID,
			calendarDeletePayload{EventID: *kd.ExternalEventID}); err != nil {
			return err
		}
	}

	var docs []models.CaseDocument
	if err := tx.Unscoped().Select("id", "file_key").
		Where("firm_id = ? AND case_id IN ? AND file_key IS NOT NULL", firmID, caseIDs).
		Find(&docs).Error; err != nil {
		return errors.Trace(err)
	}
	for _, d := range docs {
		if !d.HasFile() {
			continue
		}
		if err := ob.add(tx, firmID, models.OutboxKindDeleteFile, models.AuditResourceDocument, d.ID,
			deleteFilePayload{Key: *d.FileKey}); err != nil {
			return err
		}
	}
	return nil
}

func purgeCases(tx *gorm.DB, firmID string, caseIDs []string, result *TeardownResult) error {
	keyDates := tx.Model(&models.KeyDate{}).Select("id").Where("firm_id = ? AND case_id IN ?", firmID, caseIDs)

	steps := []struct {
		name    string
		counter *int64
		run     func() *gorm.DB
	}{
		{"reminders", &result.Reminders, func() *gorm.DB {
			return tx.Where("firm_id = ? AND key_date_id IN (?)", firmID, keyDates).Delete(&models.Reminder{})
		}},
		{"key dates", &result.KeyDates, func() *gorm.DB {
			return tx.Where("firm_id = ? AND case_id IN ?", firmID, caseIDs).Delete(&models.KeyDate{})
		}},
		{"milestones", &result.Milestones, func() *gorm.DB {
			return tx.Unscoped().Where("firm_id = ? AND case_id IN ?", firmID, caseIDs).Delete(&models.CaseMilestone{})
		}},
		{"documents", &result.Documents, func() *gorm.DB {
			return tx.Unscoped().Where("firm_id = ? AND case_id IN ?", firmID, caseIDs).Delete(&models.CaseDocument{})
		}},
		{"notifications", &result.Notifications, func() *gorm.DB {
			return tx.Unscoped().Where("firm_id = ? AND case_id IN ?", firmID, caseIDs).Delete(&models.Notification{})
		}},
		{"audit logs", &result.AuditLogs, func() *gorm.DB {
			return tx.Where("firm_id = ? AND case_id IN ?", firmID, caseIDs).Delete(&models.AuditLog{})
		}},
		{"cases", &result.Cases, func() *gorm.DB {
			return tx.Unscoped().Where("firm_id = ? AND id IN ?", firmID, caseIDs).Delete(&models.Case{})
		}},
	}
	for _, step := range steps {
		res := step.run()
		if res.Error != nil {
			return errors.Annotatef(res.Error, "purging %s", step.name)
		}
		*step.counter += res.RowsAffected
	}
	return nil
}
