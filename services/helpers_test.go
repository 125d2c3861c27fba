package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"editorial-desk/config"
	"editorial-desk/models"
	"editorial-desk/providers"
	"editorial-desk/storage"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingMailer keeps every message; fail makes all sends to that address fail.
type recordingMailer struct {
	mu   sync.Mutex
	sent []providers.Message
	fail map[string]error
}

func (m *recordingMailer) Name() string { return "recording" }

func (m *recordingMailer) Send(_ context.Context, msg providers.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[msg.To]; err != nil {
		return &providers.DeliveryError{Provider: m.Name(), To: msg.To, Err: err}
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) Sent() []providers.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]providers.Message(nil), m.sent...)
}

func (m *recordingMailer) FailFor(addr string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail == nil {
		m.fail = map[string]error{}
	}
	m.fail[addr] = err
}

type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) Archive(ctx context.Context, entries []models.AuditLog) (string, error) {
	args := m.Called(ctx, entries)
	return args.String(0), args.Error(1)
}

// hookStore lets single store calls fail while the rest hits the memory store.
type hookStore struct {
	*storage.MemoryStore
	createNotification func(n *models.Notification) error
	createDeadline     func(d *models.Deadline) error
	updateStatus       func(id string) (bool, error)
	overdueCandidates  func() error
}

func (s *hookStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if s.createNotification != nil {
		if err := s.createNotification(n); err != nil {
			return err
		}
	}
	return s.MemoryStore.CreateNotification(ctx, n)
}

func (s *hookStore) CreateDeadline(ctx context.Context, d *models.Deadline) error {
	if s.createDeadline != nil {
		if err := s.createDeadline(d); err != nil {
			return err
		}
	}
	return s.MemoryStore.CreateDeadline(ctx, d)
}

func (s *hookStore) UpdateSubmissionStatus(ctx context.Context, id string, from, to models.SubmissionStatus, at time.Time) (bool, error) {
	if s.updateStatus != nil {
		return s.updateStatus(id)
	}
	return s.MemoryStore.UpdateSubmissionStatus(ctx, id, from, to, at)
}

func (s *hookStore) OverdueCandidates(ctx context.Context, now time.Time) ([]models.Deadline, error) {
	if s.overdueCandidates != nil {
		if err := s.overdueCandidates(); err != nil {
			return nil, err
		}
	}
	return s.MemoryStore.OverdueCandidates(ctx, now)
}

type testEnv struct {
	cfg      *config.Config
	clock    *testClock
	mem      *storage.MemoryStore
	hooks    *hookStore
	mailer   *recordingMailer
	archiver *mockArchiver
	metrics  *Metrics
	logs     *observer.ObservedLogs
	engine   *Engine
}

func testConfig() *config.Config {
	return &config.Config{
		AppBaseURL:             "https://desk.example.org",
		ReminderCap:            2,
		DeadlineReminderWindow: 72 * time.Hour,
		SLAUnderReview:         30 * 24 * time.Hour,
		ReviewerReminderAfter:  7 * 24 * time.Hour,
		AuditRetention:         365 * 24 * time.Hour,
		CronOverdue:            "@hourly",
		CronReminders:          "@daily",
		CronSLA:                "@daily",
		CronReviewerReminders:  "@weekly",
		CronAuditCleanup:       "@monthly",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := &testClock{t: t0}
	mem := storage.NewMemoryStore().WithClock(clock.Now)
	core, logs := observer.New(zap.DebugLevel)
	env := &testEnv{
		cfg:      testConfig(),
		clock:    clock,
		mem:      mem,
		hooks:    &hookStore{MemoryStore: mem},
		mailer:   &recordingMailer{},
		archiver: &mockArchiver{},
		metrics:  NewMetrics(nil),
		logs:     logs,
	}
	env.engine = NewEngine(Options{
		Config:   env.cfg,
		Store:    env.hooks,
		Mailer:   env.mailer,
		Locker:   storage.NewLocalLocker(),
		Archiver: env.archiver,
		Logger:   zap.New(core),
		Metrics:  env.metrics,
		Now:      clock.Now,
	})
	return env
}

func (e *testEnv) user(t *testing.T, name, email string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: email}
	require.NoError(t, e.mem.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) submission(t *testing.T, code string, author *models.User) *models.Submission {
	t.Helper()
	s := &models.Submission{Code: code, Title: "On the Origin of Deadlines", AuthorID: author.ID}
	require.NoError(t, e.mem.CreateSubmission(context.Background(), s))
	return s
}

func (e *testEnv) notifications(t *testing.T, userID string) []models.Notification {
	t.Helper()
	out, err := e.mem.NotificationsForUser(context.Background(), userID, false, 0)
	require.NoError(t, err)
	return out
}

func (e *testEnv) deadline(t *testing.T, id string) *models.Deadline {
	t.Helper()
	d, err := e.mem.DeadlineByID(context.Background(), id)
	require.NoError(t, err)
	return d
}
