package reminder

import (
	"context"
	"database/sql"
	goerrors "errors"

	"jobtrack/internal/common/errors"
	"jobtrack/internal/models"
)

// Directory is the read-only view of the application CRUD layer. The
// scheduler uses it to build content; the scanner uses it for the
// delivery-time consistency re-check.
type Directory interface {
	// FindByID returns (nil, nil) when the application no longer exists.
	FindByID(ctx context.Context, applicationID string) (*models.Application, error)
}

// PostgresDirectory reads the applications and users tables owned by the
// CRUD layer.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) FindByID(ctx context.Context, applicationID string) (*models.Application, error) {
	const query = `
		SELECT a.id, a.company_name, a.position, COALESCE(a.company_link, ''),
		       a.interview_date, a.notifications_enabled, u.email, COALESCE(u.phone, '')
		FROM applications a
		JOIN users u ON u.id = a.user_id
		WHERE a.id = $1`

	var app models.Application
	var interview sql.NullTime
	err := d.db.QueryRowContext(ctx, query, applicationID).Scan(
		&app.ID, &app.CompanyName, &app.Position, &app.CompanyLink,
		&interview, &app.NotificationsEnabled, &app.OwnerEmail, &app.OwnerPhone,
	)
	if goerrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("find-application", err)
	}
	if interview.Valid {
		t := interview.Time
		app.InterviewTime = &t
	}
	return &app, nil
}
