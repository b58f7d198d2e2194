package reminder

import (
	"context"
	"database/sql"
	"time"

	"jobtrack/internal/common/errors"
	"jobtrack/internal/models"
)

// Store is the persistence boundary of the reminder core. The notification
// table is the only shared mutable resource: scheduler, scanner, and
// executor coordinate exclusively through its atomic state transitions.
type Store interface {
	Insert(ctx context.Context, n *models.Notification) error
	// CancelPending transitions every PENDING row of the application to
	// CANCELLED and returns the number of rows affected. Safe to call when
	// none exist.
	CancelPending(ctx context.Context, applicationID string, now time.Time) (int64, error)
	// FindDuePage returns up to limit PENDING rows with scheduledTime <= now,
	// oldest first.
	FindDuePage(ctx context.Context, now time.Time, limit int) ([]*models.Notification, error)
	// MarkStatus performs the conditional terminal transition
	// "set status where id = X and status = PENDING". It reports whether the
	// update applied; a lost race is a no-op, not an error.
	MarkStatus(ctx context.Context, id string, status models.NotificationStatus, now time.Time) (bool, error)
	FindPendingByApplication(ctx context.Context, applicationID string) ([]*models.Notification, error)
	CountByStatus(ctx context.Context) (map[models.NotificationStatus]int64, error)
}

// PostgresStore implements Store on the interview_notifications table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS interview_notifications (
	id               TEXT PRIMARY KEY,
	application_id   TEXT NOT NULL,
	recipient_email  TEXT NOT NULL,
	subject          TEXT NOT NULL,
	body             TEXT NOT NULL,
	scheduled_time   TIMESTAMPTZ NOT NULL,
	status           TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interview_notifications_due
	ON interview_notifications (scheduled_time) WHERE status = 'PENDING';
CREATE INDEX IF NOT EXISTS idx_interview_notifications_application
	ON interview_notifications (application_id);
`

// EnsureSchema creates the notification table and its indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return errors.NewQueryExecutionFailedError("ensure-schema", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, n *models.Notification) error {
	const query = `
		INSERT INTO interview_notifications
			(id, application_id, recipient_email, subject, body, scheduled_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		n.ID, n.ApplicationID, n.RecipientEmail, n.Subject, n.Body,
		n.ScheduledTime, string(n.Status), n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (s *PostgresStore) CancelPending(ctx context.Context, applicationID string, now time.Time) (int64, error) {
	const query = `
		UPDATE interview_notifications
		SET status = $1, updated_at = $2
		WHERE application_id = $3 AND status = $4`

	result, err := s.db.ExecContext(ctx, query,
		string(models.StatusCancelled), now, applicationID, string(models.StatusPending),
	)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("cancel-pending", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("cancel-pending", err)
	}
	return affected, nil
}

func (s *PostgresStore) FindDuePage(ctx context.Context, now time.Time, limit int) ([]*models.Notification, error) {
	const query = `
		SELECT id, application_id, recipient_email, subject, body, scheduled_time, status, created_at, updated_at
		FROM interview_notifications
		WHERE status = $1 AND scheduled_time <= $2
		ORDER BY scheduled_time ASC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, string(models.StatusPending), now, limit)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("find-due-page", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func (s *PostgresStore) MarkStatus(ctx context.Context, id string, status models.NotificationStatus, now time.Time) (bool, error) {
	const query = `
		UPDATE interview_notifications
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`

	result, err := s.db.ExecContext(ctx, query,
		string(status), now, id, string(models.StatusPending),
	)
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("mark-status", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("mark-status", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) FindPendingByApplication(ctx context.Context, applicationID string) ([]*models.Notification, error) {
	const query = `
		SELECT id, application_id, recipient_email, subject, body, scheduled_time, status, created_at, updated_at
		FROM interview_notifications
		WHERE application_id = $1 AND status = $2
		ORDER BY scheduled_time ASC`

	rows, err := s.db.QueryContext(ctx, query, applicationID, string(models.StatusPending))
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("find-pending-by-application", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.NotificationStatus]int64, error) {
	const query = `
		SELECT status, COUNT(*)
		FROM interview_notifications
		GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("count-by-status", err)
	}
	defer rows.Close()

	counts := make(map[models.NotificationStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.NewQueryExecutionFailedError("count-by-status", err)
		}
		counts[models.NotificationStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("count-by-status", err)
	}
	return counts, nil
}

func scanNotifications(rows *sql.Rows) ([]*models.Notification, error) {
	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		var status string
		if err := rows.Scan(
			&n.ID, &n.ApplicationID, &n.RecipientEmail, &n.Subject, &n.Body,
			&n.ScheduledTime, &status, &n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan-notification", err)
		}
		n.Status = models.NotificationStatus(status)
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("scan-notification", err)
	}
	return notifications, nil
}
