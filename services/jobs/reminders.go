package jobs

import (
	"context"
	"time"

	"law_timeline_app_go/config"
	"law_timeline_app_go/models"
	"law_timeline_app_go/services"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gorm.io/gorm"
)

var logger = loggo.GetLogger("lawtimeline.jobs")

// DefaultBatchSize bounds how many reminders one dispatch run handles
const DefaultBatchSize = 100

// ReminderDispatcher delivers reminders whose send time has come
type ReminderDispatcher struct {
	DB      *gorm.DB
	Mailer  services.Mailer
	Clock   clock.Clock
	Metrics *services.Collector

	OrganizerName  string
	OrganizerEmail string
	BatchSize      int
}

// DispatchStats summarizes one dispatch run
type DispatchStats struct {
	Sent   int
	Failed int
}

// NewReminderDispatcher shares the engine's store, mailer and clock
func NewReminderDispatcher(tl *services.TimelineService, cfg *config.Config) *ReminderDispatcher {
	return &ReminderDispatcher{
		DB:             tl.DB,
		Mailer:         tl.Mailer,
		Clock:          tl.Clock,
		Metrics:        tl.Metrics,
		OrganizerName:  cfg.EmailFromName,
		OrganizerEmail: cfg.EmailFrom,
		BatchSize:      DefaultBatchSize,
	}
}

// DispatchDueReminders sends every scheduled reminder with send_at <= now,
// oldest first, and records sent or error on each
func (d *ReminderDispatcher) DispatchDueReminders(ctx context.Context) (DispatchStats, error) {
	var stats DispatchStats
	now := d.Clock.Now().UTC()

	batch := d.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	var due []models.Reminder
	err := d.DB.Where("status = ? AND send_at <= ?", models.ReminderStatusScheduled, now).
		Order("send_at ASC").
		Limit(batch).
		Find(&due).Error
	if err != nil {
		return stats, errors.Annotate(err, "fetching due reminders")
	}
	if len(due) > 0 {
		logger.Infof("dispatching %d due reminders", len(due))
	}

	for i := range due {
		if err := ctx.Err(); err != nil {
			return stats, errors.Trace(err)
		}
		r := &due[i]
		if !r.IsDue(now) {
			continue
		}
		if sendErr := d.send(ctx, r, now); sendErr != nil {
			logger.Warningf("reminder %s (key date %s): %v", r.ID, r.KeyDateID, sendErr)
			d.mark(r, now, sendErr)
			d.Metrics.ObserveReminderDispatch(models.ReminderStatusError)
			stats.Failed++
			continue
		}
		d.mark(r, now, nil)
		d.Metrics.ObserveReminderDispatch(models.ReminderStatusSent)
		stats.Sent++
	}
	return stats, nil
}

func (d *ReminderDispatcher) send(ctx context.Context, r *models.Reminder, now time.Time) error {
	if d.Mailer == nil {
		return errors.NotSupportedf("email delivery")
	}
	if len(r.Recipients) == 0 {
		return errors.NotValidf("reminder without recipients")
	}

	var kd models.KeyDate
	if err := d.DB.Where("id = ? AND firm_id = ?", r.KeyDateID, r.FirmID).First(&kd).Error; err != nil {
		return errors.Annotatef(err, "loading key date %s", r.KeyDateID)
	}
	var c models.Case
	if err := d.DB.Select("id", "case_number").Where("id = ? AND firm_id = ?", kd.CaseID, r.FirmID).First(&c).Error; err != nil {
		return errors.Annotatef(err, "loading case %s", kd.CaseID)
	}

	email := &services.Email{
		Subject:  r.Subject,
		TextBody: r.Body,
		Attachments: []services.Attachment{{
			Filename: "key-date.ics",
			Content:  services.GenerateKeyDateICS(&kd, c.CaseNumber, d.OrganizerName, d.OrganizerEmail, now),
		}},
	}
	for _, rcpt := range r.Recipients {
		email.To = append(email.To, rcpt.Email)
	}
	return d.Mailer.Send(ctx, email)
}

// mark records the outcome unless the reminder was re-armed meanwhile:
// a re-armed reminder has a send_at in the future
func (d *ReminderDispatcher) mark(r *models.Reminder, now time.Time, sendErr error) {
	updates := map[string]interface{}{
		"status":       models.ReminderStatusSent,
		"sent_at":      now,
		"error_reason": nil,
	}
	if sendErr != nil {
		updates["status"] = models.ReminderStatusError
		updates["sent_at"] = nil
		updates["error_reason"] = sendErr.Error()
	}
	res := d.DB.Model(&models.Reminder{}).
		Where("id = ? AND status = ? AND send_at <= ?", r.ID, models.ReminderStatusScheduled, now).
		Updates(updates)
	if res.Error != nil {
		logger.Errorf("reminder %s: recording outcome: %v", r.ID, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		logger.Infof("reminder %s changed during dispatch, leaving it scheduled", r.ID)
	}
}
