package reminder

import (
	"context"
	"time"

	"jobtrack/internal/common/errors"
	"jobtrack/internal/common/logger"
	"jobtrack/internal/common/mail"
	"jobtrack/internal/common/metrics"
	"jobtrack/internal/common/sms"
	"jobtrack/internal/models"
)

// Executor delivers one due notification and commits its terminal
// transition. Transport failures are absorbed into the FAILED status;
// only persistence failures propagate to the caller.
type Executor struct {
	store   Store
	mailer  mail.Mailer
	sms     sms.Sender // nil when the SMS mirror is disabled
	logger  logger.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewExecutor(store Store, mailer mail.Mailer, smsSender sms.Sender, log logger.Logger, timeout time.Duration) *Executor {
	return &Executor{
		store:   store,
		mailer:  mailer,
		sms:     smsSender,
		logger:  log.WithFields(map[string]interface{}{"component": "delivery-executor"}),
		timeout: timeout,
		now:     time.Now,
	}
}

// Deliver sends exactly one email for the notification and conditionally
// updates its status. It returns the terminal status that was decided; the
// error is non-nil only when the status write itself failed.
func (e *Executor) Deliver(ctx context.Context, n *models.Notification, ownerPhone string) (models.NotificationStatus, error) {
	sendCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	status := models.StatusSent
	if err := e.mailer.Send(sendCtx, n.RecipientEmail, n.Subject, n.Body); err != nil {
		status = models.StatusFailed
		sendErr := errors.NewNotificationSendFailedError(n.ID, err)
		e.logger.WithError(sendErr).Error("reminder delivery failed", map[string]interface{}{
			"notificationId": n.ID,
			"applicationId":  n.ApplicationID,
		})
	}

	applied, err := e.store.MarkStatus(ctx, n.ID, status, e.now())
	if err != nil {
		return status, err
	}
	if !applied {
		// A cancellation won the race after we read the row; its transition
		// stands and ours is a no-op.
		e.logger.Warn("terminal transition lost race, row already terminal", map[string]interface{}{
			"notificationId": n.ID,
			"applicationId":  n.ApplicationID,
			"attempted":      string(status),
		})
		return status, nil
	}

	metrics.DeliveriesTotal.WithLabelValues(string(status)).Inc()
	if status == models.StatusSent {
		e.logger.Info("reminder delivered", map[string]interface{}{
			"notificationId": n.ID,
			"applicationId":  n.ApplicationID,
			"recipient":      n.RecipientEmail,
		})
		e.mirrorSMS(ctx, n, ownerPhone)
	}
	return status, nil
}

// mirrorSMS sends the optional text-message copy of a delivered reminder.
// Best-effort: failures are logged and never touch the persisted status.
func (e *Executor) mirrorSMS(ctx context.Context, n *models.Notification, phone string) {
	if e.sms == nil || phone == "" {
		return
	}

	smsCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.sms.Send(smsCtx, phone, n.Subject); err != nil {
		e.logger.Warn("SMS mirror failed", map[string]interface{}{
			"notificationId": n.ID,
			"error":          err.Error(),
		})
	}
}
