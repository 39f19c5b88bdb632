package jobs

import (
	"context"
	"time"

	"law_timeline_app_go/services"

	"github.com/juju/errors"
	"github.com/robfig/cron/v3"
)

// retryBatch bounds how many outbox tasks a single tick re-runs
const retryBatch = 50

// StartScheduler runs reminder dispatch and outbox retries on the given
// cron schedule. The returned cron must be stopped on shutdown.
func StartScheduler(dispatcher *ReminderDispatcher, tl *services.TimelineService, schedule string, loc *time.Location) (*cron.Cron, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err := c.AddFunc(schedule, func() {
		RunOnce(context.Background(), dispatcher, tl)
	})
	if err != nil {
		return nil, errors.Annotatef(err, "scheduling reminder dispatch %q", schedule)
	}

	c.Start()
	logger.Infof("scheduler started (%s)", schedule)
	return c, nil
}

// RunOnce performs a single dispatch and retry pass
func RunOnce(ctx context.Context, dispatcher *ReminderDispatcher, tl *services.TimelineService) {
	stats, err := dispatcher.DispatchDueReminders(ctx)
	if err != nil {
		logger.Errorf("reminder dispatch: %v", err)
	} else if stats.Sent+stats.Failed > 0 {
		logger.Infof("reminders sent=%d failed=%d", stats.Sent, stats.Failed)
	}

	retried, warnings, err := tl.RetryFailedTasks(ctx, retryBatch)
	if err != nil {
		logger.Errorf("outbox retry: %v", err)
		return
	}
	for _, w := range warnings {
		logger.Warningf("outbox %s %s still failing: %s", w.Kind, w.EntityID, w.Message)
	}
	if retried > 0 {
		logger.Debugf("outbox retried %d tasks", retried)
	}
}
