package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"editorial-desk/models"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// StoreError wraps a failed store operation with the entity it touched.
type StoreError struct {
	Op     string // e.g. "CompleteDeadline"
	Entity string // e.g. "deadline"
	ID     string
	Err    error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err signals a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func notFound(op, entity, id string) error {
	return &StoreError{Op: op, Entity: entity, ID: id, Err: ErrNotFound}
}

func failed(op, entity, id string, err error) error {
	return &StoreError{Op: op, Entity: entity, ID: id, Err: err}
}

// Store is the persistence boundary of the workflow engine. Scans return records in a stable
// order; conditional updates report whether they changed a row.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByID(ctx context.Context, id string) (*models.User, error)

	CreateSubmission(ctx context.Context, s *models.Submission) error
	SubmissionByID(ctx context.Context, id string) (*models.Submission, error)
	// UpdateSubmissionStatus moves a submission from -> to only if it is still in from.
	UpdateSubmissionStatus(ctx context.Context, id string, from, to models.SubmissionStatus, at time.Time) (bool, error)
	// SubmissionsInStatusSince lists submissions in status whose last transition is before cutoff.
	SubmissionsInStatusSince(ctx context.Context, status models.SubmissionStatus, cutoff time.Time) ([]models.Submission, error)

	CreateDeadline(ctx context.Context, d *models.Deadline) error
	DeadlineByID(ctx context.Context, id string) (*models.Deadline, error)
	DeadlinesForSubmission(ctx context.Context, submissionID string) ([]models.Deadline, error)
	// CompleteDeadline sets completed_at if it is still null.
	CompleteDeadline(ctx context.Context, id string, at time.Time) (bool, error)
	// OverdueCandidates lists incomplete, unflagged deadlines due before now.
	OverdueCandidates(ctx context.Context, now time.Time) ([]models.Deadline, error)
	// MarkDeadlineOverdue flags a deadline that is still incomplete and unflagged.
	MarkDeadlineOverdue(ctx context.Context, id string) (bool, error)
	// UnmarkDeadlineOverdue clears the overdue flag so the next scan picks the deadline up again.
	UnmarkDeadlineOverdue(ctx context.Context, id string) error
	// ReminderCandidates lists incomplete deadlines due in [from, to] with fewer than limit reminders.
	ReminderCandidates(ctx context.Context, from, to time.Time, limit int) ([]models.Deadline, error)
	// ClaimDeadlineReminder increments reminders_sent when below limit and returns the new count.
	ClaimDeadlineReminder(ctx context.Context, id string, limit int) (int, bool, error)
	// ReleaseDeadlineReminder gives back a claimed reminder slot.
	ReleaseDeadlineReminder(ctx context.Context, id string) error

	CreateReview(ctx context.Context, r *models.Review) error
	// ReviewsAwaitingReport lists accepted, open reviews invited before cutoff with fewer than limit reminders.
	ReviewsAwaitingReport(ctx context.Context, invitedBefore time.Time, limit int) ([]models.Review, error)
	// ClaimReviewReminder increments the review's reminder counter when below limit.
	ClaimReviewReminder(ctx context.Context, id string, limit int) (int, bool, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	SetNotificationEmailSent(ctx context.Context, id string, sent bool) error
	NotificationsForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)

	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	AuditLogsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.AuditLog, error)
	DeleteAuditLogs(ctx context.Context, ids []string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
