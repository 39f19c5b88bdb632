package services

import (
	"context"
	"encoding/json"
	"time"

	"law_timeline_app_go/models"

	"github.com/juju/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxOutboxAttempts caps how often RetryFailedTasks re-runs a task
const MaxOutboxAttempts = 5

type calendarDeletePayload struct {
	EventID string `json:"event_id"`
}

type deleteFilePayload struct {
	Key string `json:"key"`
}

type notifyPayload struct {
	UserID  string `json:"user_id"`
	CaseID  string `json:"case_id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	LinkURL string `json:"link_url"`
}

// outbox collects the tasks enqueued by one operation
type outbox struct {
	tasks []models.OutboxTask
}

// add persists a task in tx; it runs only if tx commits
func (o *outbox) add(tx *gorm.DB, firmID, kind, entityType, entityID string, payload interface{}) error {
	task := models.OutboxTask{
		FirmID:     firmID,
		Kind:       kind,
		EntityType: entityType,
		EntityID:   entityID,
		Status:     models.OutboxStatusPending,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Annotatef(err, "encoding %s payload", kind)
		}
		task.Payload = datatypes.JSON(data)
	}
	if err := tx.Create(&task).Error; err != nil {
		return errors.Annotatef(err, "enqueueing %s", kind)
	}
	o.tasks = append(o.tasks, task)
	return nil
}

// run executes the collected tasks after commit. Failures are recorded on
// the task row and returned as warnings.
func (s *TimelineService) run(ctx context.Context, o *outbox) []Warning {
	var warnings []Warning
	for i := range o.tasks {
		if w := s.runTask(ctx, &o.tasks[i]); w != nil {
			warnings = append(warnings, *w)
		}
	}
	return warnings
}

func (s *TimelineService) runTask(ctx context.Context, task *models.OutboxTask) *Warning {
	err := s.executeTask(ctx, task)

	updates := map[string]interface{}{
		"attempts": gorm.Expr("attempts + 1"),
	}
	if err != nil {
		updates["status"] = models.OutboxStatusFailed
		updates["last_error"] = err.Error()
		s.Metrics.observeSideEffect(task.Kind, models.OutboxStatusFailed)
		logger.Warningf("%s %s: %s failed: %v", task.EntityType, task.EntityID, task.Kind, err)
	} else {
		updates["status"] = models.OutboxStatusDone
		updates["last_error"] = nil
		updates["completed_at"] = s.now()
		s.Metrics.observeSideEffect(task.Kind, models.OutboxStatusDone)
	}
	if uerr := s.DB.Model(&models.OutboxTask{}).Where("id = ?", task.ID).Updates(updates).Error; uerr != nil {
		logger.Errorf("outbox task %s: recording outcome: %v", task.ID, uerr)
	}

	if err == nil {
		return nil
	}
	return &Warning{
		Kind:     task.Kind,
		EntityID: task.EntityID,
		Message:  dependencyFailure(task.Kind, err).Error(),
	}
}

func (s *TimelineService) executeTask(ctx context.Context, task *models.OutboxTask) error {
	switch task.Kind {
	case models.OutboxKindCalendarUpsert:
		return s.syncKeyDateToCalendar(ctx, task.FirmID, task.EntityID)

	case models.OutboxKindCalendarDelete:
		var p calendarDeletePayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return errors.Annotate(err, "decoding payload")
		}
		return s.removeKeyDateFromCalendar(ctx, task.FirmID, task.EntityID, p.EventID)

	case models.OutboxKindSendEmail:
		var email Email
		if err := json.Unmarshal(task.Payload, &email); err != nil {
			return errors.Annotate(err, "decoding payload")
		}
		if s.Mailer == nil {
			return errors.NotSupportedf("email delivery")
		}
		return s.Mailer.Send(ctx, &email)

	case models.OutboxKindNotifyUser:
		var p notifyPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return errors.Annotate(err, "decoding payload")
		}
		return NewNotificationService(s.DB, s.Clock).CreateNotification(&models.Notification{
			FirmID:  task.FirmID,
			UserID:  ptrIfNotEmpty(p.UserID),
			CaseID:  ptrIfNotEmpty(p.CaseID),
			Type:    p.Type,
			Title:   p.Title,
			Message: p.Message,
			LinkURL: p.LinkURL,
		})

	case models.OutboxKindDeleteFile:
		var p deleteFilePayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return errors.Annotate(err, "decoding payload")
		}
		if s.Storage == nil {
			return errors.NotSupportedf("file storage")
		}
		return s.Storage.Delete(ctx, p.Key)
	}
	return errors.NotSupportedf("outbox task kind %q", task.Kind)
}

// RetryFailedTasks re-runs failed tasks and tasks left pending by a crash
// between commit and execution. The adapters are idempotent, so re-running
// a task that partially succeeded is safe.
func (s *TimelineService) RetryFailedTasks(ctx context.Context, limit int) (int, []Warning, error) {
	if limit <= 0 {
		limit = 100
	}
	stalePending := s.now().Add(-time.Minute)

	var tasks []models.OutboxTask
	err := s.DB.Where("attempts < ?", MaxOutboxAttempts).
		Where("status = ? OR (status = ? AND created_at <= ?)",
			models.OutboxStatusFailed, models.OutboxStatusPending, stalePending).
		Order("created_at ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return 0, nil, errors.Trace(err)
	}

	var warnings []Warning
	for i := range tasks {
		if err := ctx.Err(); err != nil {
			return i, warnings, errors.Trace(err)
		}
		if w := s.runTask(ctx, &tasks[i]); w != nil {
			warnings = append(warnings, *w)
		}
	}
	return len(tasks), warnings, nil
}
