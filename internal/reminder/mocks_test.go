package reminder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"jobtrack/internal/models"
)

// ==========================
// In-memory Store
// ==========================

// fakeStore mirrors the conditional-update semantics of the Postgres store
// so invariants can be asserted without a database.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string]*models.Notification

	insertErr error
	queryErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*models.Notification)}
}

func (s *fakeStore) Insert(_ context.Context, n *models.Notification) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[n.ID]; exists {
		return fmt.Errorf("duplicate id %s", n.ID)
	}
	clone := *n
	s.rows[n.ID] = &clone
	return nil
}

func (s *fakeStore) CancelPending(_ context.Context, applicationID string, now time.Time) (int64, error) {
	if s.queryErr != nil {
		return 0, s.queryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for _, n := range s.rows {
		if n.ApplicationID == applicationID && n.Status == models.StatusPending {
			n.Status = models.StatusCancelled
			n.UpdatedAt = now
			affected++
		}
	}
	return affected, nil
}

func (s *fakeStore) FindDuePage(_ context.Context, now time.Time, limit int) ([]*models.Notification, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*models.Notification
	for _, n := range s.rows {
		if n.Status == models.StatusPending && !n.ScheduledTime.After(now) {
			clone := *n
			due = append(due, &clone)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledTime.Before(due[j].ScheduledTime)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *fakeStore) MarkStatus(_ context.Context, id string, status models.NotificationStatus, now time.Time) (bool, error) {
	if s.queryErr != nil {
		return false, s.queryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, exists := s.rows[id]
	if !exists || n.Status != models.StatusPending {
		return false, nil
	}
	n.Status = status
	n.UpdatedAt = now
	return true, nil
}

func (s *fakeStore) FindPendingByApplication(_ context.Context, applicationID string) ([]*models.Notification, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []*models.Notification
	for _, n := range s.rows {
		if n.ApplicationID == applicationID && n.Status == models.StatusPending {
			clone := *n
			pending = append(pending, &clone)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ScheduledTime.Before(pending[j].ScheduledTime)
	})
	return pending, nil
}

func (s *fakeStore) CountByStatus(_ context.Context) (map[models.NotificationStatus]int64, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[models.NotificationStatus]int64)
	for _, n := range s.rows {
		counts[n.Status]++
	}
	return counts, nil
}

// byApplication returns all rows for an application, any status, oldest first.
func (s *fakeStore) byApplication(applicationID string) []*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Notification
	for _, n := range s.rows {
		if n.ApplicationID == applicationID {
			clone := *n
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// ==========================
// Directory fake
// ==========================

type fakeDirectory struct {
	mu      sync.Mutex
	apps    map[string]*models.Application
	findErr error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{apps: make(map[string]*models.Application)}
}

func (d *fakeDirectory) put(app *models.Application) {
	d.mu.Lock()
	defer d.mu.Unlock()
	clone := *app
	d.apps[app.ID] = &clone
}

func (d *fakeDirectory) remove(applicationID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.apps, applicationID)
}

func (d *fakeDirectory) FindByID(_ context.Context, applicationID string) (*models.Application, error) {
	if d.findErr != nil {
		return nil, d.findErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	app, exists := d.apps[applicationID]
	if !exists {
		return nil, nil
	}
	clone := *app
	return &clone, nil
}

// ==========================
// Transport mocks
// ==========================

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type mockMailer struct {
	mu       sync.Mutex
	SendFunc func(ctx context.Context, to, subject, body string) error
	sent     []sentMail
}

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, to, subject, body)
	}
	return nil
}

func (m *mockMailer) sentMails() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type mockSMSSender struct {
	mu       sync.Mutex
	SendFunc func(ctx context.Context, phone, message string) error
	sent     []string
}

func (m *mockSMSSender) Send(ctx context.Context, phone, message string) error {
	m.mu.Lock()
	m.sent = append(m.sent, phone)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, phone, message)
	}
	return nil
}

// ==========================
// Helpers
// ==========================

func mustParseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
