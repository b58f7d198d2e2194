package reminder

import (
	"context"
	"time"

	"jobtrack/internal/common/errors"
	"jobtrack/internal/common/logger"
	"jobtrack/internal/common/metrics"
	"jobtrack/internal/models"
)

// Scanner discovers due reminders in bounded pages and hands them to the
// executor, re-validating each against the application directory first.
type Scanner struct {
	store     Store
	directory Directory
	executor  *Executor
	logger    logger.Logger
	batchSize int
}

func NewScanner(store Store, directory Directory, executor *Executor, log logger.Logger, batchSize int) *Scanner {
	return &Scanner{
		store:     store,
		directory: directory,
		executor:  executor,
		logger:    log.WithFields(map[string]interface{}{"component": "due-scanner"}),
		batchSize: batchSize,
	}
}

// ScanAndProcess visits every PENDING row with scheduledTime <= now, oldest
// first, and returns the number of records processed. Each processed row
// leaves PENDING, so re-running the due query yields the next page; the
// loop stops when a page comes back short. A store failure aborts the run;
// terminal statuses already written stay written and the next tick retries.
func (s *Scanner) ScanAndProcess(ctx context.Context, now time.Time) (int, error) {
	processed := 0
	for {
		page, err := s.store.FindDuePage(ctx, now, s.batchSize)
		if err != nil {
			return processed, errors.NewScanAbortedError(err)
		}

		for _, n := range page {
			if err := s.processOne(ctx, n, now); err != nil {
				return processed, errors.NewScanAbortedError(err)
			}
			processed++
		}

		if len(page) < s.batchSize {
			break
		}
	}

	if processed > 0 {
		s.logger.Info("scan complete", map[string]interface{}{
			"processed": processed,
			"now":       now,
		})
	}
	return processed, nil
}

// processOne re-validates the owning application and either cancels the row
// (drift) or delivers it. Delivery failures are absorbed by the executor;
// only persistence failures bubble up.
func (s *Scanner) processOne(ctx context.Context, n *models.Notification, now time.Time) error {
	app, err := s.directory.FindByID(ctx, n.ApplicationID)
	if err != nil {
		return err
	}

	if app == nil || !app.NotificationsEnabled {
		applied, err := s.store.MarkStatus(ctx, n.ID, models.StatusCancelled, now)
		if err != nil {
			return err
		}
		if applied {
			metrics.RemindersCancelled.WithLabelValues("drift").Inc()
			s.logger.Info("stale reminder cancelled at delivery time", map[string]interface{}{
				"notificationId":    n.ID,
				"applicationId":     n.ApplicationID,
				"applicationExists": app != nil,
			})
		}
		return nil
	}

	_, err = s.executor.Deliver(ctx, n, app.OwnerPhone)
	return err
}
