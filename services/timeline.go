package services

import (
	"context"
	"time"

	"law_timeline_app_go/config"
	"law_timeline_app_go/models"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gorm.io/gorm"
)

var logger = loggo.GetLogger("lawtimeline.services")

// TimelineService is the case timeline engine: milestones, document
// requirements, key dates and their reminders. Side effects go through
// the outbox and never fail the state change that produced them.
type TimelineService struct {
	DB       *gorm.DB
	Clock    clock.Clock
	Storage  StorageProvider
	Calendar CalendarSyncAdapter
	Mailer   Mailer
	Metrics  *Collector

	Limits UploadLimits
	// SoonDelay is added to now when a reminder's natural send time has passed
	SoonDelay time.Duration
	AppURL    string
	// Language for reminder and notification texts when the recipient has none
	Language string
}

// Timeline is the global engine used by handlers and jobs
var Timeline *TimelineService

// InitializeTimeline wires the engine from configuration
func InitializeTimeline(ctx context.Context, db *gorm.DB, cfg *config.Config, metrics *Collector) *TimelineService {
	Timeline = &TimelineService{
		DB:        db,
		Clock:     clock.WallClock,
		Storage:   NewStorageProvider(cfg),
		Calendar:  NewCalendarSyncAdapter(ctx, cfg),
		Mailer:    NewResendMailer(cfg),
		Metrics:   metrics,
		Limits:    UploadLimitsFromConfig(cfg),
		SoonDelay: cfg.ReminderSoonDelay,
		AppURL:    cfg.AppURL,
		Language:  "es",
	}
	return Timeline
}

func (s *TimelineService) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s *TimelineService) soonDelay() time.Duration {
	if s.SoonDelay <= 0 {
		return config.DefaultReminderSoonDelay
	}
	return s.SoonDelay
}

func (s *TimelineService) limits() UploadLimits {
	if s.Limits.MaxBytes == 0 && len(s.Limits.AllowedTypes) == 0 {
		return DefaultUploadLimits()
	}
	return s.Limits
}

func (s *TimelineService) calendar() CalendarSyncAdapter {
	if s.Calendar == nil {
		return DisabledCalendar{}
	}
	return s.Calendar
}

func (s *TimelineService) lang(preferred string) string {
	if preferred != "" {
		return preferred
	}
	if s.Language != "" {
		return s.Language
	}
	return "en"
}

// loadCase fetches a case inside the actor's firm. Clients only see their
// own cases; anything else is reported as not found.
func loadCase(tx *gorm.DB, actor Actor, caseID string) (*models.Case, error) {
	var c models.Case
	q := tx.Where("id = ? AND firm_id = ?", caseID, actor.FirmID)
	if actor.IsClient() {
		q = q.Where("client_id = ?", actor.UserID)
	}
	if err := q.First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFoundf("case %s", caseID)
		}
		return nil, errors.Trace(err)
	}
	return &c, nil
}

// checkVersion rejects a write based on a stale read
func checkVersion(entity, id string, current int, expected *int) error {
	if expected != nil && *expected != current {
		return conflictf("%s %s was modified (version %d, expected %d)", entity, id, current, *expected)
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}

func ptrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
