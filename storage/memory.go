package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"editorial-desk/models"
)

// MemoryStore keeps every record in process memory. It backs the dev mode and the service tests
// and honours the same conditional-update contract as PostgresStore.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]models.User
	submissions   map[string]models.Submission
	deadlines     map[string]models.Deadline
	reviews       map[string]models.Review
	notifications map[string]models.Notification
	auditLogs     map[string]models.AuditLog
	now           func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         map[string]models.User{},
		submissions:   map[string]models.Submission{},
		deadlines:     map[string]models.Deadline{},
		reviews:       map[string]models.Review{},
		notifications: map[string]models.Notification{},
		auditLogs:     map[string]models.AuditLog{},
		now:           time.Now,
	}
}

// WithClock sets the clock used for created_at defaults.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) stamp(t *time.Time) {
	if t.IsZero() {
		*t = m.now()
	}
}

func (m *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ensureID(&u.ID)
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, notFound("UserByID", "user", id)
	}
	return &u, nil
}

func (m *MemoryStore) CreateSubmission(ctx context.Context, s *models.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ensureID(&s.ID)
	m.stamp(&s.CreatedAt)
	s.UpdatedAt = s.CreatedAt
	if s.Status == "" {
		s.Status = models.StatusNew
	}
	if s.StatusChangedAt.IsZero() {
		s.StatusChangedAt = s.CreatedAt
	}
	m.submissions[s.ID] = *s
	return nil
}

func (m *MemoryStore) SubmissionByID(ctx context.Context, id string) (*models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, notFound("SubmissionByID", "submission", id)
	}
	return &s, nil
}

func (m *MemoryStore) UpdateSubmissionStatus(ctx context.Context, id string, from, to models.SubmissionStatus, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return false, notFound("UpdateSubmissionStatus", "submission", id)
	}
	if s.Status != from {
		return false, nil
	}
	s.Status = to
	s.StatusChangedAt = at
	s.UpdatedAt = at
	m.submissions[id] = s
	return true, nil
}

func (m *MemoryStore) SubmissionsInStatusSince(ctx context.Context, status models.SubmissionStatus, cutoff time.Time) ([]models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Submission
	for _, s := range m.submissions {
		if s.Status == status && s.StatusChangedAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return lessByTime(out[i].StatusChangedAt, out[j].StatusChangedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (m *MemoryStore) CreateDeadline(ctx context.Context, d *models.Deadline) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ensureID(&d.ID)
	m.stamp(&d.CreatedAt)
	m.deadlines[d.ID] = cloneDeadline(*d)
	return nil
}

func (m *MemoryStore) DeadlineByID(ctx context.Context, id string) (*models.Deadline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deadlines[id]
	if !ok {
		return nil, notFound("DeadlineByID", "deadline", id)
	}
	d = cloneDeadline(d)
	return &d, nil
}

func (m *MemoryStore) DeadlinesForSubmission(ctx context.Context, submissionID string) ([]models.Deadline, error) {
	return m.scanDeadlines(ctx, func(d models.Deadline) bool {
		return d.SubmissionID == submissionID
	})
}

func (m *MemoryStore) CompleteDeadline(ctx context.Context, id string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deadlines[id]
	if !ok {
		return false, notFound("CompleteDeadline", "deadline", id)
	}
	if d.CompletedAt != nil {
		return false, nil
	}
	d.CompletedAt = &at
	m.deadlines[id] = d
	return true, nil
}

func (m *MemoryStore) OverdueCandidates(ctx context.Context, now time.Time) ([]models.Deadline, error) {
	return m.scanDeadlines(ctx, func(d models.Deadline) bool {
		return d.DueDate.Before(now) && d.CompletedAt == nil && !d.IsOverdue
	})
}

func (m *MemoryStore) MarkDeadlineOverdue(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deadlines[id]
	if !ok || d.IsOverdue || d.CompletedAt != nil {
		return false, nil
	}
	d.IsOverdue = true
	m.deadlines[id] = d
	return true, nil
}

func (m *MemoryStore) UnmarkDeadlineOverdue(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deadlines[id]
	if !ok {
		return notFound("UnmarkDeadlineOverdue", "deadline", id)
	}
	d.IsOverdue = false
	m.deadlines[id] = d
	return nil
}

func (m *MemoryStore) ReminderCandidates(ctx context.Context, from, to time.Time, limit int) ([]models.Deadline, error) {
	return m.scanDeadlines(ctx, func(d models.Deadline) bool {
		return !d.DueDate.Before(from) && !d.DueDate.After(to) &&
			d.CompletedAt == nil && d.RemindersSent < limit
	})
}

func (m *MemoryStore) ClaimDeadlineReminder(ctx context.Context, id string, limit int) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deadlines[id]
	if !ok || d.CompletedAt != nil || d.RemindersSent >= limit {
		return d.RemindersSent, false, nil
	}
	d.RemindersSent++
	m.deadlines[id] = d
	return d.RemindersSent, true, nil
}

func (m *MemoryStore) ReleaseDeadlineReminder(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deadlines[id]
	if !ok {
		return notFound("ReleaseDeadlineReminder", "deadline", id)
	}
	if d.RemindersSent > 0 {
		d.RemindersSent--
		m.deadlines[id] = d
	}
	return nil
}

func (m *MemoryStore) scanDeadlines(ctx context.Context, match func(models.Deadline) bool) ([]models.Deadline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Deadline
	for _, d := range m.deadlines {
		if match(d) {
			out = append(out, cloneDeadline(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return lessByTime(out[i].DueDate, out[j].DueDate, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (m *MemoryStore) CreateReview(ctx context.Context, r *models.Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ensureID(&r.ID)
	m.stamp(&r.CreatedAt)
	if r.InvitedAt.IsZero() {
		r.InvitedAt = r.CreatedAt
	}
	m.reviews[r.ID] = *r
	return nil
}

func (m *MemoryStore) ReviewsAwaitingReport(ctx context.Context, invitedBefore time.Time, limit int) ([]models.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Review
	for _, r := range m.reviews {
		if r.InvitedAt.Before(invitedBefore) && r.AwaitingReport() && r.RemindersSent < limit {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return lessByTime(out[i].InvitedAt, out[j].InvitedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (m *MemoryStore) ClaimReviewReminder(ctx context.Context, id string, limit int) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok || !r.AwaitingReport() || r.RemindersSent >= limit {
		return r.RemindersSent, false, nil
	}
	r.RemindersSent++
	m.reviews[id] = r
	return r.RemindersSent, true, nil
}

func (m *MemoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ensureID(&n.ID)
	m.stamp(&n.CreatedAt)
	m.notifications[n.ID] = *n
	return nil
}

func (m *MemoryStore) SetNotificationEmailSent(ctx context.Context, id string, sent bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return notFound("SetNotificationEmailSent", "notification", id)
	}
	n.EmailSent = sent
	m.notifications[id] = n
	return nil
}

func (m *MemoryStore) NotificationsForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	// newest first
	sort.Slice(out, func(i, j int) bool {
		return lessByTime(out[j].CreatedAt, out[i].CreatedAt, out[j].ID, out[i].ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ensureID(&entry.ID)
	m.stamp(&entry.CreatedAt)
	m.auditLogs[entry.ID] = *entry
	return nil
}

func (m *MemoryStore) AuditLogsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.AuditLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditLog
	for _, a := range m.auditLogs {
		if a.CreatedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return lessByTime(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) DeleteAuditLogs(ctx context.Context, ids []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.auditLogs[id]; ok {
			delete(m.auditLogs, id)
			n++
		}
	}
	return n, nil
}

// AuditLogs returns the whole audit trail, oldest first.
func (m *MemoryStore) AuditLogs() []models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AuditLog, 0, len(m.auditLogs))
	for _, a := range m.auditLogs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessByTime(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) Close() error {
	return nil
}

func cloneDeadline(d models.Deadline) models.Deadline {
	if d.AssignedTo != nil {
		v := *d.AssignedTo
		d.AssignedTo = &v
	}
	if d.CompletedAt != nil {
		v := *d.CompletedAt
		d.CompletedAt = &v
	}
	return d
}

func lessByTime(a, b time.Time, idA, idB string) bool {
	if a.Equal(b) {
		return idA < idB
	}
	return a.Before(b)
}
