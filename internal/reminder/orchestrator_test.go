package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtrack/internal/common/logger"
	"jobtrack/internal/common/templates"
	"jobtrack/internal/models"
)

type orchestratorFixture struct {
	store        *fakeStore
	directory    *fakeDirectory
	mailer       *mockMailer
	orchestrator *Orchestrator
	scheduler    *Scheduler
	executor     *Executor
}

func newOrchestratorFixture(t *testing.T, now time.Time) *orchestratorFixture {
	log := logger.NewTestLogger(t)
	store := newFakeStore()
	directory := newFakeDirectory()
	mailer := &mockMailer{}

	scheduler := NewScheduler(store, templates.NewRegistry(), log, 2*time.Hour)
	scheduler.now = fixedClock(now)
	executor := NewExecutor(store, mailer, nil, log, 5*time.Second)
	executor.now = fixedClock(now)
	scanner := NewScanner(store, directory, executor, log, 100)
	orchestrator := NewOrchestrator(scheduler, scanner, store, log, nil, time.Hour)
	orchestrator.now = fixedClock(now)

	return &orchestratorFixture{
		store:        store,
		directory:    directory,
		mailer:       mailer,
		orchestrator: orchestrator,
		scheduler:    scheduler,
		executor:     executor,
	}
}

func (f *orchestratorFixture) advanceTo(now time.Time) {
	f.scheduler.now = fixedClock(now)
	f.executor.now = fixedClock(now)
	f.orchestrator.now = fixedClock(now)
}

func interviewApp(id string, interview time.Time) *models.Application {
	return &models.Application{
		ID:                   id,
		CompanyName:          "Acme Corp",
		Position:             "Backend Engineer",
		InterviewTime:        timePtr(interview),
		NotificationsEnabled: true,
		OwnerEmail:           "dev@example.com",
	}
}

func TestOrchestrator_CreateThenScanDeliversReminder(t *testing.T) {
	created := mustParseTime("2025-07-18T09:00:00Z")
	f := newOrchestratorFixture(t, created)

	app := interviewApp("app-1", mustParseTime("2025-07-18T14:30:00Z"))
	f.directory.put(app)
	f.orchestrator.ApplicationSaved(context.Background(), nil, app)

	pending, err := f.store.FindPendingByApplication(context.Background(), "app-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].ScheduledTime.Equal(mustParseTime("2025-07-18T12:30:00Z")))

	// Scan before the fire time: nothing happens.
	f.advanceTo(mustParseTime("2025-07-18T12:29:00Z"))
	processed, err := f.orchestrator.RunScan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Empty(t, f.mailer.sentMails())

	// Scan after the fire time: exactly one email goes out.
	f.advanceTo(mustParseTime("2025-07-18T12:31:00Z"))
	processed, err = f.orchestrator.RunScan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	require.Len(t, f.mailer.sentMails(), 1)

	all := f.store.byApplication("app-1")
	require.Len(t, all, 1)
	assert.Equal(t, models.StatusSent, all[0].Status)

	// A later scan must not deliver again.
	f.advanceTo(mustParseTime("2025-07-18T13:31:00Z"))
	processed, err = f.orchestrator.RunScan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Len(t, f.mailer.sentMails(), 1)
}

func TestOrchestrator_RescheduleSupersedesPending(t *testing.T) {
	now := mustParseTime("2025-07-18T09:00:00Z")
	f := newOrchestratorFixture(t, now)

	old := interviewApp("app-1", mustParseTime("2025-07-18T14:30:00Z"))
	f.directory.put(old)
	f.orchestrator.ApplicationSaved(context.Background(), nil, old)

	updated := interviewApp("app-1", mustParseTime("2025-07-19T09:00:00Z"))
	f.directory.put(updated)
	f.orchestrator.ApplicationSaved(context.Background(), old, updated)

	pending, err := f.store.FindPendingByApplication(context.Background(), "app-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].ScheduledTime.Equal(mustParseTime("2025-07-19T07:00:00Z")))

	// The original fire time passes; only the superseding reminder may fire,
	// and only at its own time.
	f.advanceTo(mustParseTime("2025-07-18T12:31:00Z"))
	processed, err := f.orchestrator.RunScan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Empty(t, f.mailer.sentMails())

	f.advanceTo(mustParseTime("2025-07-19T07:01:00Z"))
	processed, err = f.orchestrator.RunScan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	require.Len(t, f.mailer.sentMails(), 1)
	assert.Contains(t, f.mailer.sentMails()[0].Body, "Saturday, 19 July 2025 at 09:00")
}

func TestOrchestrator_RescheduleIntoPassedWindowCancelsOldReminder(t *testing.T) {
	now := mustParseTime("2025-07-18T09:00:00Z")
	f := newOrchestratorFixture(t, now)

	old := interviewApp("app-1", mustParseTime("2025-07-19T14:30:00Z"))
	f.directory.put(old)
	f.orchestrator.ApplicationSaved(context.Background(), nil, old)

	before, err := f.store.FindPendingByApplication(context.Background(), "app-1")
	require.NoError(t, err)
	require.Len(t, before, 1)

	// Interview moved to 90 minutes out: inside the 2h lead window, so no
	// replacement reminder is possible.
	updated := interviewApp("app-1", mustParseTime("2025-07-18T10:30:00Z"))
	f.directory.put(updated)
	f.orchestrator.ApplicationSaved(context.Background(), old, updated)

	pending, err := f.store.FindPendingByApplication(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	all := f.store.byApplication("app-1")
	require.Len(t, all, 1)
	assert.Equal(t, models.StatusCancelled, all[0].Status)

	// The old fire time passes without a reminder for the moved interview.
	f.advanceTo(mustParseTime("2025-07-19T12:31:00Z"))
	processed, err := f.orchestrator.RunScan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Empty(t, f.mailer.sentMails(), "a reminder carrying the stale interview time must never go out")
}

func TestOrchestrator_UnrelatedEditDoesNotReschedule(t *testing.T) {
	now := mustParseTime("2025-07-18T09:00:00Z")
	f := newOrchestratorFixture(t, now)

	old := interviewApp("app-1", mustParseTime("2025-07-18T14:30:00Z"))
	f.directory.put(old)
	f.orchestrator.ApplicationSaved(context.Background(), nil, old)

	before, err := f.store.FindPendingByApplication(context.Background(), "app-1")
	require.NoError(t, err)
	require.Len(t, before, 1)

	updated := interviewApp("app-1", mustParseTime("2025-07-18T14:30:00Z"))
	updated.Position = "Staff Engineer" // content-only edit
	f.orchestrator.ApplicationSaved(context.Background(), old, updated)

	after, err := f.store.FindPendingByApplication(context.Background(), "app-1")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].ID, after[0].ID, "same effective state must keep the same reminder row")
}

func TestOrchestrator_DisablingCancelsPending(t *testing.T) {
	now := mustParseTime("2025-07-18T09:00:00Z")
	f := newOrchestratorFixture(t, now)

	old := interviewApp("app-1", mustParseTime("2025-07-18T14:30:00Z"))
	f.directory.put(old)
	f.orchestrator.ApplicationSaved(context.Background(), nil, old)

	updated := interviewApp("app-1", mustParseTime("2025-07-18T14:30:00Z"))
	updated.NotificationsEnabled = false
	f.directory.put(updated)
	f.orchestrator.ApplicationSaved(context.Background(), old, updated)

	pending, err := f.store.FindPendingByApplication(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	all := f.store.byApplication("app-1")
	require.Len(t, all, 1)
	assert.Equal(t, models.StatusCancelled, all[0].Status)
}

func TestOrchestrator_ClearingInterviewCancelsPending(t *testing.T) {
	now := mustParseTime("2025-07-18T09:00:00Z")
	f := newOrchestratorFixture(t, now)

	old := interviewApp("app-1", mustParseTime("2025-07-18T14:30:00Z"))
	f.directory.put(old)
	f.orchestrator.ApplicationSaved(context.Background(), nil, old)

	updated := interviewApp("app-1", mustParseTime("2025-07-18T14:30:00Z"))
	updated.InterviewTime = nil
	f.directory.put(updated)
	f.orchestrator.ApplicationSaved(context.Background(), old, updated)

	pending, err := f.store.FindPendingByApplication(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOrchestrator_DeleteCancelsPending(t *testing.T) {
	now := mustParseTime("2025-07-18T09:00:00Z")
	f := newOrchestratorFixture(t, now)

	app := interviewApp("app-1", mustParseTime("2025-07-18T14:30:00Z"))
	f.directory.put(app)
	f.orchestrator.ApplicationSaved(context.Background(), nil, app)
	f.directory.remove("app-1")
	f.orchestrator.ApplicationDeleted(context.Background(), "app-1")

	all := f.store.byApplication("app-1")
	require.Len(t, all, 1)
	assert.Equal(t, models.StatusCancelled, all[0].Status)

	// Nothing fires afterwards.
	f.advanceTo(mustParseTime("2025-07-18T12:31:00Z"))
	processed, err := f.orchestrator.RunScan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Empty(t, f.mailer.sentMails())
}

func TestOrchestrator_DisableRaceResolvedAtDeliveryTime(t *testing.T) {
	// Notifications are switched off through a path that bypasses the
	// lifecycle hooks; the scan still has to honor the current state.
	now := mustParseTime("2025-07-18T09:00:00Z")
	f := newOrchestratorFixture(t, now)

	app := interviewApp("app-1", mustParseTime("2025-07-18T14:30:00Z"))
	f.directory.put(app)
	f.orchestrator.ApplicationSaved(context.Background(), nil, app)

	disabled := interviewApp("app-1", mustParseTime("2025-07-18T14:30:00Z"))
	disabled.NotificationsEnabled = false
	f.directory.put(disabled)

	f.advanceTo(mustParseTime("2025-07-18T12:31:00Z"))
	processed, err := f.orchestrator.RunScan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Empty(t, f.mailer.sentMails())

	all := f.store.byApplication("app-1")
	require.Len(t, all, 1)
	assert.Equal(t, models.StatusCancelled, all[0].Status)
}

func TestOrchestrator_SchedulingFailureDoesNotPanicHook(t *testing.T) {
	now := mustParseTime("2025-07-18T09:00:00Z")
	f := newOrchestratorFixture(t, now)
	f.store.insertErr = assert.AnError

	app := interviewApp("app-1", mustParseTime("2025-07-18T14:30:00Z"))
	// The hook absorbs the failure; the CRUD operation it decorates must
	// never see it.
	f.orchestrator.ApplicationSaved(context.Background(), nil, app)
}

func TestOrchestrator_StatsReflectsLifecycle(t *testing.T) {
	now := mustParseTime("2025-07-18T09:00:00Z")
	f := newOrchestratorFixture(t, now)

	first := interviewApp("app-1", mustParseTime("2025-07-18T14:30:00Z"))
	f.directory.put(first)
	f.orchestrator.ApplicationSaved(context.Background(), nil, first)

	second := interviewApp("app-2", mustParseTime("2025-07-20T10:00:00Z"))
	f.directory.put(second)
	f.orchestrator.ApplicationSaved(context.Background(), nil, second)

	f.advanceTo(mustParseTime("2025-07-18T12:31:00Z"))
	_, err := f.orchestrator.RunScan(context.Background())
	require.NoError(t, err)

	counts, err := f.orchestrator.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.StatusSent])
	assert.Equal(t, int64(1), counts[models.StatusPending])
}

func TestReminderStateChanged(t *testing.T) {
	t1 := mustParseTime("2025-07-18T14:30:00Z")
	t2 := mustParseTime("2025-07-19T09:00:00Z")
	t1Copy := mustParseTime("2025-07-18T14:30:00Z")

	tests := []struct {
		name    string
		old     *models.Application
		updated *models.Application
		want    bool
	}{
		{
			name:    "same time and flag",
			old:     &models.Application{InterviewTime: &t1, NotificationsEnabled: true},
			updated: &models.Application{InterviewTime: &t1Copy, NotificationsEnabled: true},
			want:    false,
		},
		{
			name:    "time moved",
			old:     &models.Application{InterviewTime: &t1, NotificationsEnabled: true},
			updated: &models.Application{InterviewTime: &t2, NotificationsEnabled: true},
			want:    true,
		},
		{
			name:    "time cleared",
			old:     &models.Application{InterviewTime: &t1, NotificationsEnabled: true},
			updated: &models.Application{InterviewTime: nil, NotificationsEnabled: true},
			want:    true,
		},
		{
			name:    "flag flipped",
			old:     &models.Application{InterviewTime: &t1, NotificationsEnabled: true},
			updated: &models.Application{InterviewTime: &t1, NotificationsEnabled: false},
			want:    true,
		},
		{
			name:    "both unset",
			old:     &models.Application{},
			updated: &models.Application{},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reminderStateChanged(tt.old, tt.updated))
		})
	}
}
