package reminder

import (
	"context"
	"time"

	"jobtrack/internal/common/logger"
	"jobtrack/internal/common/metrics"
	"jobtrack/internal/common/observability"
	"jobtrack/internal/models"
)

// Orchestrator glues the scheduler and scanner together. The application
// CRUD layer calls the lifecycle hooks; a timer drives the periodic scan.
// There is exactly one delivery policy, so there is exactly one
// orchestrator implementation.
type Orchestrator struct {
	scheduler    *Scheduler
	scanner      *Scanner
	store        Store
	logger       logger.Logger
	obs          *observability.Observability
	scanInterval time.Duration
	now          func() time.Time
}

func NewOrchestrator(scheduler *Scheduler, scanner *Scanner, store Store, log logger.Logger, obs *observability.Observability, scanInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		scheduler:    scheduler,
		scanner:      scanner,
		store:        store,
		logger:       log.WithFields(map[string]interface{}{"component": "reminder-orchestrator"}),
		obs:          obs,
		scanInterval: scanInterval,
		now:          time.Now,
	}
}

// ApplicationSaved is invoked after an application is created or updated.
// Pass old == nil on creation. Rescheduling happens only when the effective
// (interview date, enabled flag) pair changed; scheduling failures are
// logged and never fail the enclosing CRUD operation.
func (o *Orchestrator) ApplicationSaved(ctx context.Context, old, app *models.Application) {
	if old != nil && !reminderStateChanged(old, app) {
		return
	}

	if app.InterviewTime != nil && app.NotificationsEnabled {
		err := o.scheduler.Schedule(ctx, ScheduleRequest{
			ApplicationID:        app.ID,
			RecipientEmail:       app.OwnerEmail,
			InterviewTime:        app.InterviewTime,
			NotificationsEnabled: app.NotificationsEnabled,
			CompanyName:          app.CompanyName,
			Position:             app.Position,
			CompanyLink:          app.CompanyLink,
		})
		if err != nil {
			o.logger.WithError(err).Error("reminder scheduling failed", map[string]interface{}{
				"applicationId": app.ID,
			})
		}
		return
	}

	// The new state no longer qualifies; any pending reminder is stale.
	if err := o.scheduler.Cancel(ctx, app.ID); err != nil {
		o.logger.WithError(err).Error("reminder cancellation failed", map[string]interface{}{
			"applicationId": app.ID,
		})
	}
}

// ApplicationDeleted cancels any pending reminder for the application.
func (o *Orchestrator) ApplicationDeleted(ctx context.Context, applicationID string) {
	if err := o.scheduler.Cancel(ctx, applicationID); err != nil {
		o.logger.WithError(err).Error("reminder cancellation failed", map[string]interface{}{
			"applicationId": applicationID,
		})
	}
}

// RunScan executes one due-notification scan at the injected clock's "now".
func (o *Orchestrator) RunScan(ctx context.Context) (int, error) {
	started := o.now()
	processed, err := o.scanner.ScanAndProcess(ctx, started)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	elapsed := o.now().Sub(started)
	metrics.ScanDuration.Observe(elapsed.Seconds())
	if o.obs != nil {
		o.obs.RecordScan(ctx, outcome)
		o.obs.RecordScanDuration(ctx, elapsed, outcome)
	}

	o.refreshBacklogGauge(ctx)
	return processed, err
}

// Run drives the periodic scan until ctx is cancelled. A failed run is
// logged and retried on the next tick.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.scanInterval)
	defer ticker.Stop()

	o.logger.Info("reminder scan loop started", map[string]interface{}{
		"interval": o.scanInterval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("reminder scan loop stopped", nil)
			return
		case <-ticker.C:
			if _, err := o.RunScan(ctx); err != nil {
				o.logger.WithError(err).Error("scan run aborted", nil)
			}
		}
	}
}

// Stats returns notification counts by status for the health endpoint.
func (o *Orchestrator) Stats(ctx context.Context) (map[models.NotificationStatus]int64, error) {
	return o.store.CountByStatus(ctx)
}

func (o *Orchestrator) refreshBacklogGauge(ctx context.Context) {
	counts, err := o.store.CountByStatus(ctx)
	if err != nil {
		o.logger.WithError(err).Warn("backlog gauge refresh failed", nil)
		return
	}
	metrics.PendingBacklog.Set(float64(counts[models.StatusPending]))
}

// reminderStateChanged implements the reschedule decision rule: the
// effective state is the (interview date, enabled flag) pair, where
// disabled and unset flags are uniformly "off".
func reminderStateChanged(old, updated *models.Application) bool {
	if !timePtrEqual(old.InterviewTime, updated.InterviewTime) {
		return true
	}
	return old.NotificationsEnabled != updated.NotificationsEnabled
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
