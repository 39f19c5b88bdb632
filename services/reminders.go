package services

import (
	"time"

	"law_timeline_app_go/models"
	"law_timeline_app_go/services/i18n"

	"github.com/juju/errors"
	"gorm.io/gorm"
)

// Reminder reconciliation actions
const (
	ReminderActionNone    = "none"
	ReminderActionCreated = "created"
	ReminderActionUpdated = "updated"
	ReminderActionDeleted = "deleted"
)

// DesiredReminder is what the reminder of a key date should look like
type DesiredReminder struct {
	SendAt     time.Time
	Recipients []models.Recipient
	Subject    string
	Body       string
}

// DeriveReminder returns the reminder a key date calls for, or nil. A
// reminder exists only when email notification is on, there is at least one
// recipient and a lead time is set. A send time that already passed is
// moved to now+soon so the reminder still goes out once.
func DeriveReminder(kd *models.KeyDate, caseNumber, lang string, now time.Time, soon time.Duration) *DesiredReminder {
	if !kd.NotifyByEmail || len(kd.NotifyRecipients) == 0 || kd.RemindMinutesBefore == nil {
		return nil
	}

	sendAt := kd.OccursAt.Add(-time.Duration(*kd.RemindMinutesBefore) * time.Minute).UTC()
	if !sendAt.After(now) {
		sendAt = now.Add(soon).UTC()
	}

	loc, err := time.LoadLocation(kd.Timezone)
	if err != nil {
		loc = time.UTC
	}
	location := kd.Location
	if location == "" {
		location = i18n.Translate(lang, "reminder.no_location")
	}
	args := map[string]interface{}{
		"title":       kd.Title,
		"case_number": caseNumber,
		"when":        kd.OccursAt.In(loc).Format("2006-01-02 15:04 MST"),
		"location":    location,
		"description": kd.Description,
	}

	return &DesiredReminder{
		SendAt:     sendAt,
		Recipients: append([]models.Recipient(nil), kd.NotifyRecipients...),
		Subject:    i18n.Translate(lang, "reminder.subject", args),
		Body:       i18n.Translate(lang, "reminder.body", args),
	}
}

// reconcileReminder makes the stored reminder of kd match desired. An
// existing reminder is always re-armed, even one that was already sent.
func reconcileReminder(tx *gorm.DB, kd *models.KeyDate, desired *DesiredReminder) (*models.Reminder, string, error) {
	var existing models.Reminder
	err := tx.Where("key_date_id = ? AND firm_id = ?", kd.ID, kd.FirmID).First(&existing).Error
	found := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", errors.Trace(err)
	}

	switch {
	case desired == nil && !found:
		return nil, ReminderActionNone, nil

	case desired == nil:
		if err := tx.Delete(&existing).Error; err != nil {
			return nil, "", errors.Annotatef(err, "deleting reminder of key date %s", kd.ID)
		}
		return nil, ReminderActionDeleted, nil

	case !found:
		r := models.Reminder{
			FirmID:     kd.FirmID,
			KeyDateID:  kd.ID,
			SendAt:     desired.SendAt,
			Recipients: desired.Recipients,
			Subject:    desired.Subject,
			Body:       desired.Body,
			Status:     models.ReminderStatusScheduled,
		}
		if err := tx.Create(&r).Error; err != nil {
			return nil, "", errors.Annotatef(err, "creating reminder of key date %s", kd.ID)
		}
		return &r, ReminderActionCreated, nil
	}

	existing.SendAt = desired.SendAt
	existing.Recipients = desired.Recipients
	existing.Subject = desired.Subject
	existing.Body = desired.Body
	existing.Status = models.ReminderStatusScheduled
	existing.SentAt = nil
	existing.ErrorReason = nil
	if err := tx.Save(&existing).Error; err != nil {
		return nil, "", errors.Annotatef(err, "updating reminder of key date %s", kd.ID)
	}
	return &existing, ReminderActionUpdated, nil
}
