package services

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"law_timeline_app_go/models"

	"github.com/juju/errors"
	"gorm.io/gorm"
)

// Layouts accepted for an occurs_at without offset, read in the key date's timezone
var localTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// KeyDateInput is a full description of a key date as submitted by a caller
type KeyDateInput struct {
	Title               string             `json:"title"`
	Description         string             `json:"description"`
	Kind                string             `json:"kind"`
	OccursAt            string             `json:"occurs_at"`
	Timezone            string             `json:"timezone"`
	DurationMinutes     *int               `json:"duration_minutes"`
	Location            string             `json:"location"`
	SyncToCalendar      bool               `json:"sync_to_calendar"`
	NotifyRecipients    []models.Recipient `json:"notify_recipients"`
	NotifyByEmail       bool               `json:"notify_by_email"`
	RemindMinutesBefore *int               `json:"remind_minutes_before"`
	ExpectedVersion     *int               `json:"expected_version"`
}

// KeyDateResult echoes a key date write with the reminder it derived
type KeyDateResult struct {
	KeyDate  *models.KeyDate  `json:"key_date"`
	Reminder *models.Reminder `json:"reminder"`
	Warnings []Warning        `json:"warnings"`
}

// keyDateFields are the validated, coerced values of a KeyDateInput
type keyDateFields struct {
	Title               string
	Description         string
	Kind                string
	OccursAt            time.Time
	Timezone            string
	DurationMinutes     int
	Location            string
	SyncToCalendar      bool
	Recipients          []models.Recipient
	NotifyByEmail       bool
	RemindMinutesBefore *int
}

// normalizeKeyDateInput validates input and applies the floors and defaults:
// duration at least 15 (default 60), lead time at least 5 (default one day
// when email is requested), no email notification without recipients.
func normalizeKeyDateInput(input KeyDateInput, defaultTimezone string) (keyDateFields, error) {
	f := keyDateFields{
		Title:          sanitizeText(input.Title),
		Description:    sanitizeText(input.Description),
		Location:       sanitizeText(input.Location),
		Kind:           strings.ToLower(strings.TrimSpace(input.Kind)),
		Timezone:       strings.TrimSpace(input.Timezone),
		SyncToCalendar: input.SyncToCalendar,
	}
	if f.Title == "" {
		return f, errors.NotValidf("empty key date title")
	}
	if f.Kind == "" {
		f.Kind = models.KeyDateKindOther
	}
	if !models.IsValidKeyDateKind(f.Kind) {
		return f, errors.NotValidf("key date kind %q", f.Kind)
	}

	if f.Timezone == "" {
		f.Timezone = defaultTimezone
	}
	if f.Timezone == "" {
		f.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return f, errors.NewNotValid(err, "timezone "+f.Timezone)
	}
	if f.OccursAt, err = parseOccursAt(input.OccursAt, loc); err != nil {
		return f, err
	}

	f.DurationMinutes = models.DefaultKeyDateDurationMinutes
	if input.DurationMinutes != nil {
		f.DurationMinutes = max(*input.DurationMinutes, models.MinKeyDateDurationMinutes)
	}

	if f.Recipients, err = normalizeRecipients(input.NotifyRecipients); err != nil {
		return f, err
	}
	f.NotifyByEmail = input.NotifyByEmail && len(f.Recipients) > 0

	switch {
	case input.RemindMinutesBefore != nil:
		remind := max(*input.RemindMinutesBefore, models.MinRemindMinutesBefore)
		f.RemindMinutesBefore = &remind
	case f.NotifyByEmail:
		remind := models.DefaultRemindMinutesBefore
		f.RemindMinutesBefore = &remind
	}
	return f, nil
}

func parseOccursAt(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.NotValidf("empty occurs_at")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range localTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.NotValidf("occurs_at %q", value)
}

// normalizeRecipients validates addresses and keeps the first entry per
// email, compared case-insensitively
func normalizeRecipients(in []models.Recipient) ([]models.Recipient, error) {
	seen := make(map[string]bool, len(in))
	out := make([]models.Recipient, 0, len(in))
	for _, r := range in {
		email := strings.ToLower(strings.TrimSpace(r.Email))
		if email == "" {
			continue
		}
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email {
			return nil, errors.NotValidf("recipient email %q", r.Email)
		}
		if seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, models.Recipient{Email: email, Name: sanitizeText(r.Name)})
	}
	return out, nil
}

func (f keyDateFields) apply(kd *models.KeyDate) {
	kd.Title = f.Title
	kd.Description = f.Description
	kd.Kind = f.Kind
	kd.OccursAt = f.OccursAt
	kd.Timezone = f.Timezone
	kd.DurationMinutes = f.DurationMinutes
	kd.Location = f.Location
	kd.SyncToCalendar = f.SyncToCalendar
	kd.NotifyRecipients = f.Recipients
	kd.NotifyByEmail = f.NotifyByEmail
	kd.RemindMinutesBefore = f.RemindMinutesBefore
}

func keyDateAuditValues(kd *models.KeyDate) map[string]interface{} {
	return map[string]interface{}{
		"title":                 kd.Title,
		"occurs_at":             kd.OccursAt,
		"timezone":              kd.Timezone,
		"duration_minutes":      kd.DurationMinutes,
		"sync_to_calendar":      kd.SyncToCalendar,
		"notify_by_email":       kd.NotifyByEmail,
		"notify_recipients":     len(kd.NotifyRecipients),
		"remind_minutes_before": kd.RemindMinutesBefore,
		"version":               kd.Version,
	}
}

func firmTimezone(tx *gorm.DB, firmID string) string {
	var firm models.Firm
	if err := tx.Select("timezone").Where("id = ?", firmID).First(&firm).Error; err != nil {
		return "UTC"
	}
	return firm.Timezone
}

func loadKeyDate(tx *gorm.DB, c *models.Case, keyDateID string) (*models.KeyDate, error) {
	var kd models.KeyDate
	err := tx.Where("id = ? AND case_id = ? AND firm_id = ?", keyDateID, c.ID, c.FirmID).First(&kd).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFoundf("key date %s", keyDateID)
		}
		return nil, errors.Trace(err)
	}
	return &kd, nil
}

// CreateKeyDate registers a key date, derives its reminder and queues the calendar push
func (s *TimelineService) CreateKeyDate(ctx context.Context, actor Actor, caseID string, input KeyDateInput) (*KeyDateResult, error) {
	if err := actor.requireStaff("creating key dates"); err != nil {
		return nil, err
	}

	result := &KeyDateResult{}
	ob := &outbox{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		c, err := loadCase(tx, actor, caseID)
		if err != nil {
			return err
		}
		fields, err := normalizeKeyDateInput(input, firmTimezone(tx, c.FirmID))
		if err != nil {
			return err
		}

		kd := &models.KeyDate{FirmID: c.FirmID, CaseID: c.ID, Version: 1}
		fields.apply(kd)
		if err := tx.Create(kd).Error; err != nil {
			return errors.Annotate(err, "creating key date")
		}

		desired := DeriveReminder(kd, c.CaseNumber, s.lang(actor.Language), s.now(), s.soonDelay())
		reminder, action, err := reconcileReminder(tx, kd, desired)
		if err != nil {
			return err
		}
		s.Metrics.observeReminder(action)

		if err := writeAudit(tx, actor, auditEntry{
			CaseID:       c.ID,
			ResourceType: models.AuditResourceKeyDate,
			ResourceID:   kd.ID,
			ResourceName: kd.Title,
			Action:       models.AuditActionCreate,
			NewValues:    keyDateAuditValues(kd),
		}); err != nil {
			return err
		}

		if kd.SyncToCalendar {
			if err := ob.add(tx, c.FirmID, models.OutboxKindCalendarUpsert, models.AuditResourceKeyDate, kd.ID, nil); err != nil {
				return err
			}
		}
		result.KeyDate, result.Reminder = kd, reminder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.finishKeyDateWrite(ctx, result, ob)
}

// UpdateKeyDate replaces a key date's fields. The reminder is re-derived
// and re-armed; turning calendar sync off removes the remote event.
func (s *TimelineService) UpdateKeyDate(ctx context.Context, actor Actor, caseID, keyDateID string, input KeyDateInput) (*KeyDateResult, error) {
	if err := actor.requireStaff("updating key dates"); err != nil {
		return nil, err
	}

	result := &KeyDateResult{}
	ob := &outbox{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		c, err := loadCase(tx, actor, caseID)
		if err != nil {
			return err
		}
		kd, err := loadKeyDate(tx, c, keyDateID)
		if err != nil {
			return err
		}
		if err := checkVersion("key date", kd.ID, kd.Version, input.ExpectedVersion); err != nil {
			return err
		}
		fields, err := normalizeKeyDateInput(input, firmTimezone(tx, c.FirmID))
		if err != nil {
			return err
		}

		before := keyDateAuditValues(kd)
		previousVersion := kd.Version
		fields.apply(kd)
		kd.Version = previousVersion + 1

		res := tx.Model(&models.KeyDate{}).
			Where("id = ? AND firm_id = ? AND version = ?", kd.ID, c.FirmID, previousVersion).
			Select("title", "description", "kind", "occurs_at", "timezone", "duration_minutes", "location",
				"sync_to_calendar", "notify_recipients", "notify_by_email", "remind_minutes_before", "version").
			Updates(kd)
		if res.Error != nil {
			return errors.Trace(res.Error)
		}
		if res.RowsAffected == 0 {
			return conflictf("key date %s was modified concurrently", kd.ID)
		}

		desired := DeriveReminder(kd, c.CaseNumber, s.lang(actor.Language), s.now(), s.soonDelay())
		reminder, action, err := reconcileReminder(tx, kd, desired)
		if err != nil {
			return err
		}
		s.Metrics.observeReminder(action)

		if err := writeAudit(tx, actor, auditEntry{
			CaseID:       c.ID,
			ResourceType: models.AuditResourceKeyDate,
			ResourceID:   kd.ID,
			ResourceName: kd.Title,
			Action:       models.AuditActionUpdate,
			OldValues:    before,
			NewValues:    keyDateAuditValues(kd),
		}); err != nil {
			return err
		}

		switch {
		case kd.SyncToCalendar:
			err = ob.add(tx, c.FirmID, models.OutboxKindCalendarUpsert, models.AuditResourceKeyDate, kd.ID, nil)
		case kd.HasExternalEvent():
			err = ob.add(tx, c.FirmID, models.OutboxKindCalendarDelete, models.AuditResourceKeyDate, kd.ID,
				calendarDeletePayload{EventID: *kd.ExternalEventID})
		}
		if err != nil {
			return err
		}
		result.KeyDate, result.Reminder = kd, reminder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.finishKeyDateWrite(ctx, result, ob)
}

// finishKeyDateWrite runs the side effects and reloads the key date so the
// result carries the calendar link they produced
func (s *TimelineService) finishKeyDateWrite(ctx context.Context, result *KeyDateResult, ob *outbox) (*KeyDateResult, error) {
	result.Warnings = s.run(ctx, ob)

	var fresh models.KeyDate
	if err := s.DB.Where("id = ? AND firm_id = ?", result.KeyDate.ID, result.KeyDate.FirmID).First(&fresh).Error; err != nil {
		return nil, errors.Trace(err)
	}
	result.KeyDate = &fresh
	if result.Warnings == nil {
		result.Warnings = []Warning{}
	}
	return result, nil
}

// DeleteKeyDate removes the reminder, then the remote event (queued), then the key date
func (s *TimelineService) DeleteKeyDate(ctx context.Context, actor Actor, caseID, keyDateID string, expectedVersion *int) ([]Warning, error) {
	if err := actor.requireStaff("deleting key dates"); err != nil {
		return nil, err
	}

	ob := &outbox{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		c, err := loadCase(tx, actor, caseID)
		if err != nil {
			return err
		}
		kd, err := loadKeyDate(tx, c, keyDateID)
		if err != nil {
			return err
		}
		if err := checkVersion("key date", kd.ID, kd.Version, expectedVersion); err != nil {
			return err
		}

		_, action, err := reconcileReminder(tx, kd, nil)
		if err != nil {
			return err
		}
		s.Metrics.observeReminder(action)
		if kd.HasExternalEvent() {
			if err := ob.add(tx, c.FirmID, models.OutboxKindCalendarDelete, models.AuditResourceKeyDate, kd.ID,
				calendarDeletePayload{EventID: *kd.ExternalEventID}); err != nil {
				return err
			}
		}
		if err := tx.Delete(kd).Error; err != nil {
			return errors.Annotatef(err, "deleting key date %s", kd.ID)
		}
		return writeAudit(tx, actor, auditEntry{
			CaseID:       c.ID,
			ResourceType: models.AuditResourceKeyDate,
			ResourceID:   kd.ID,
			ResourceName: kd.Title,
			Action:       models.AuditActionDelete,
			OldValues:    keyDateAuditValues(kd),
		})
	})
	if err != nil {
		return nil, err
	}
	warnings := s.run(ctx, ob)
	if warnings == nil {
		warnings = []Warning{}
	}
	return warnings, nil
}

// ListKeyDates returns a case's key dates in chronological order with their reminders
func (s *TimelineService) ListKeyDates(actor Actor, caseID string) ([]models.KeyDate, error) {
	c, err := loadCase(s.DB, actor, caseID)
	if err != nil {
		return nil, err
	}
	var keyDates []models.KeyDate
	err = s.DB.Preload("Reminder").
		Where("firm_id = ? AND case_id = ?", c.FirmID, c.ID).
		Order("occurs_at ASC").
		Find(&keyDates).Error
	return keyDates, errors.Trace(err)
}

// GetKeyDate returns one key date with its reminder
func (s *TimelineService) GetKeyDate(actor Actor, caseID, keyDateID string) (*models.KeyDate, error) {
	c, err := loadCase(s.DB, actor, caseID)
	if err != nil {
		return nil, err
	}
	var kd models.KeyDate
	err = s.DB.Preload("Reminder").
		Where("id = ? AND case_id = ? AND firm_id = ?", keyDateID, c.ID, c.FirmID).
		First(&kd).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFoundf("key date %s", keyDateID)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &kd, nil
}

// syncKeyDateToCalendar pushes the current state of a key date. It reads the
// row at execution time, so a later edit or sync opt-out wins.
func (s *TimelineService) syncKeyDateToCalendar(ctx context.Context, firmID, keyDateID string) error {
	var kd models.KeyDate
	err := s.DB.Where("id = ? AND firm_id = ?", keyDateID, firmID).First(&kd).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return errors.Trace(err)
	}
	if !kd.SyncToCalendar {
		return nil
	}

	var c models.Case
	if err := s.DB.Select("id", "case_number").Where("id = ? AND firm_id = ?", kd.CaseID, firmID).First(&c).Error; err != nil {
		return errors.Annotatef(err, "loading case of key date %s", kd.ID)
	}

	event := CalendarEvent{
		Summary:     CalendarSummary(c.CaseNumber, kd.Title),
		Description: kd.Description,
		Location:    kd.Location,
		Start:       kd.OccursAt,
		End:         kd.EndsAt(),
		Timezone:    kd.Timezone,
	}
	for _, r := range kd.NotifyRecipients {
		event.Attendees = append(event.Attendees, CalendarAttendee{Email: r.Email, Name: r.Name})
	}

	eventID := ""
	if kd.ExternalEventID != nil {
		eventID = *kd.ExternalEventID
	}
	ref, err := s.calendar().Upsert(ctx, eventID, event)
	if err != nil {
		return err
	}
	return errors.Trace(s.DB.Model(&models.KeyDate{}).
		Where("id = ? AND firm_id = ?", kd.ID, firmID).
		UpdateColumns(map[string]interface{}{
			"external_event_id":   ref.ID,
			"external_event_link": ref.Link,
		}).Error)
}

// removeKeyDateFromCalendar deletes a remote event and unlinks it. The link
// is cleared even when the remote call fails; the task keeps the event id
// for a retry.
func (s *TimelineService) removeKeyDateFromCalendar(ctx context.Context, firmID, keyDateID, eventID string) error {
	deleteErr := s.calendar().Delete(ctx, eventID)

	err := s.DB.Model(&models.KeyDate{}).
		Where("id = ? AND firm_id = ? AND external_event_id = ? AND sync_to_calendar = ?", keyDateID, firmID, eventID, false).
		UpdateColumns(map[string]interface{}{
			"external_event_id":   nil,
			"external_event_link": nil,
		}).Error
	if err != nil {
		logger.Errorf("key date %s: clearing calendar link: %v", keyDateID, err)
	}
	return deleteErr
}
