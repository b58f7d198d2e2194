package reminder

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"jobtrack/internal/common/errors"
	"jobtrack/internal/common/logger"
	"jobtrack/internal/common/metrics"
	"jobtrack/internal/common/templates"
	"jobtrack/internal/models"
)

// interviewTimeFormat is how the interview instant appears in the rendered
// reminder body.
const interviewTimeFormat = "Monday, 2 January 2006 at 15:04"

// ScheduleRequest carries everything the scheduler needs to decide on and
// render a reminder. Content fields are snapshotted into the notification
// row; later application edits do not touch an existing reminder.
type ScheduleRequest struct {
	ApplicationID        string `validate:"required"`
	RecipientEmail       string `validate:"required,email"`
	InterviewTime        *time.Time
	NotificationsEnabled bool
	CompanyName          string
	Position             string
	CompanyLink          string
}

// Scheduler decides whether and when a reminder must exist and maintains
// the single-PENDING-per-application invariant via cancel-then-recreate.
type Scheduler struct {
	store     Store
	templates *templates.Registry
	logger    logger.Logger
	leadTime  time.Duration
	validate  *validator.Validate
	now       func() time.Time
}

func NewScheduler(store Store, registry *templates.Registry, log logger.Logger, leadTime time.Duration) *Scheduler {
	return &Scheduler{
		store:     store,
		templates: registry,
		logger:    log.WithFields(map[string]interface{}{"component": "reminder-scheduler"}),
		leadTime:  leadTime,
		validate:  validator.New(),
		now:       time.Now,
	}
}

// Schedule creates a PENDING reminder for the application, superseding any
// existing PENDING one. A passed reminder window still supersedes; only no
// interview time or notifications off leave an existing reminder to the
// caller's Cancel path. All skip conditions are silent non-error outcomes.
func (s *Scheduler) Schedule(ctx context.Context, req ScheduleRequest) error {
	if req.InterviewTime == nil || !req.NotificationsEnabled {
		s.logger.Debug("reminder not applicable", map[string]interface{}{
			"applicationId": req.ApplicationID,
			"hasInterview":  req.InterviewTime != nil,
			"enabled":       req.NotificationsEnabled,
		})
		metrics.RemindersSkipped.WithLabelValues("not_applicable").Inc()
		return nil
	}

	if err := s.validate.Struct(req); err != nil {
		return errors.NewScheduleValidationFailedError(err.Error())
	}

	now := s.now()
	fireAt := req.InterviewTime.Add(-s.leadTime)

	// The old reminder is stale the moment the interview moves, even when
	// the new fire time is unreachable; cancel before deciding to skip.
	superseded, err := s.store.CancelPending(ctx, req.ApplicationID, now)
	if err != nil {
		return err
	}
	if superseded > 0 {
		metrics.RemindersCancelled.WithLabelValues("superseded").Add(float64(superseded))
	}

	if !fireAt.After(now) {
		s.logger.Debug("reminder window already passed", map[string]interface{}{
			"applicationId": req.ApplicationID,
			"interviewTime": req.InterviewTime,
			"fireAt":        fireAt,
		})
		metrics.RemindersSkipped.WithLabelValues("window_passed").Inc()
		return nil
	}

	subject, body, err := s.renderContent(req)
	if err != nil {
		return err
	}

	notification := &models.Notification{
		ID:             uuid.New().String(),
		ApplicationID:  req.ApplicationID,
		RecipientEmail: req.RecipientEmail,
		Subject:        subject,
		Body:           body,
		ScheduledTime:  fireAt,
		Status:         models.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Insert(ctx, notification); err != nil {
		return err
	}

	metrics.RemindersScheduled.Inc()
	s.logger.Info("reminder scheduled", map[string]interface{}{
		"applicationId":  req.ApplicationID,
		"notificationId": notification.ID,
		"fireAt":         fireAt,
		"superseded":     superseded,
	})
	return nil
}

// Cancel transitions all PENDING reminders of the application to CANCELLED.
// Idempotent; calling it with no pending rows is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, applicationID string) error {
	cancelled, err := s.store.CancelPending(ctx, applicationID, s.now())
	if err != nil {
		return err
	}
	if cancelled > 0 {
		metrics.RemindersCancelled.WithLabelValues("cancelled").Add(float64(cancelled))
		s.logger.Info("reminders cancelled", map[string]interface{}{
			"applicationId": applicationID,
			"count":         cancelled,
		})
	}
	return nil
}

func (s *Scheduler) renderContent(req ScheduleRequest) (string, string, error) {
	linkLine := ""
	if req.CompanyLink != "" {
		linkLine = "Company page: " + req.CompanyLink + "\n"
	}

	data := map[string]interface{}{
		"company":       req.CompanyName,
		"position":      req.Position,
		"interviewTime": req.InterviewTime.Format(interviewTimeFormat),
		"linkLine":      linkLine,
	}
	return s.templates.Render(templates.TypeInterviewReminder, data)
}
