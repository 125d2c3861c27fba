package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"editorial-desk/models"
)

// PostgresStore implements Store on top of gorm and PostgreSQL.
type PostgresStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenPostgres connects to PostgreSQL and runs the auto-migration.
func OpenPostgres(ctx context.Context, dsn string, log *zap.Logger) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := NewPostgresStore(db, log)
	if err := store.Ping(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// NewPostgresStore wraps an existing gorm connection.
func NewPostgresStore(db *gorm.DB, log *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: log}
}

// Migrate creates or updates the tables owned by the engine.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	p.logger.Info("Running database auto-migration...")
	err := p.db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Submission{},
		&models.Deadline{},
		&models.Review{},
		&models.Notification{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}

func (p *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	ensureID(&u.ID)
	if err := p.db.WithContext(ctx).Create(u).Error; err != nil {
		return failed("CreateUser", "user", u.ID, err)
	}
	return nil
}

func (p *PostgresStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := p.first(ctx, &u, id); err != nil {
		return nil, wrapLookup("UserByID", "user", id, err)
	}
	return &u, nil
}

func (p *PostgresStore) CreateSubmission(ctx context.Context, s *models.Submission) error {
	ensureID(&s.ID)
	if s.Status == "" {
		s.Status = models.StatusNew
	}
	if s.StatusChangedAt.IsZero() {
		s.StatusChangedAt = time.Now()
	}
	if err := p.db.WithContext(ctx).Create(s).Error; err != nil {
		return failed("CreateSubmission", "submission", s.ID, err)
	}
	return nil
}

func (p *PostgresStore) SubmissionByID(ctx context.Context, id string) (*models.Submission, error) {
	var s models.Submission
	if err := p.first(ctx, &s, id); err != nil {
		return nil, wrapLookup("SubmissionByID", "submission", id, err)
	}
	return &s, nil
}

func (p *PostgresStore) UpdateSubmissionStatus(ctx context.Context, id string, from, to models.SubmissionStatus, at time.Time) (bool, error) {
	if uuid.Validate(id) != nil {
		return false, notFound("UpdateSubmissionStatus", "submission", id)
	}
	res := p.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "status_changed_at": at, "updated_at": at})
	if res.Error != nil {
		return false, failed("UpdateSubmissionStatus", "submission", id, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := p.SubmissionByID(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (p *PostgresStore) SubmissionsInStatusSince(ctx context.Context, status models.SubmissionStatus, cutoff time.Time) ([]models.Submission, error) {
	var out []models.Submission
	err := p.db.WithContext(ctx).
		Where("status = ? AND status_changed_at < ?", status, cutoff).
		Order("status_changed_at, id").
		Find(&out).Error
	if err != nil {
		return nil, failed("SubmissionsInStatusSince", "submission", "", err)
	}
	return out, nil
}

func (p *PostgresStore) CreateDeadline(ctx context.Context, d *models.Deadline) error {
	ensureID(&d.ID)
	if err := p.db.WithContext(ctx).Create(d).Error; err != nil {
		return failed("CreateDeadline", "deadline", d.ID, err)
	}
	return nil
}

func (p *PostgresStore) DeadlineByID(ctx context.Context, id string) (*models.Deadline, error) {
	var d models.Deadline
	if err := p.first(ctx, &d, id); err != nil {
		return nil, wrapLookup("DeadlineByID", "deadline", id, err)
	}
	return &d, nil
}

func (p *PostgresStore) DeadlinesForSubmission(ctx context.Context, submissionID string) ([]models.Deadline, error) {
	var out []models.Deadline
	err := p.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("due_date, id").
		Find(&out).Error
	if err != nil {
		return nil, failed("DeadlinesForSubmission", "deadline", "", err)
	}
	return out, nil
}

func (p *PostgresStore) CompleteDeadline(ctx context.Context, id string, at time.Time) (bool, error) {
	if uuid.Validate(id) != nil {
		return false, notFound("CompleteDeadline", "deadline", id)
	}
	res := p.db.WithContext(ctx).Model(&models.Deadline{}).
		Where("id = ? AND completed_at IS NULL", id).
		Update("completed_at", at)
	if res.Error != nil {
		return false, failed("CompleteDeadline", "deadline", id, res.Error)
	}
	if res.RowsAffected == 0 {
		// either missing or already completed
		if _, err := p.DeadlineByID(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (p *PostgresStore) OverdueCandidates(ctx context.Context, now time.Time) ([]models.Deadline, error) {
	var out []models.Deadline
	err := p.db.WithContext(ctx).
		Where("due_date < ? AND completed_at IS NULL AND is_overdue = ?", now, false).
		Order("due_date, id").
		Find(&out).Error
	if err != nil {
		return nil, failed("OverdueCandidates", "deadline", "", err)
	}
	return out, nil
}

func (p *PostgresStore) MarkDeadlineOverdue(ctx context.Context, id string) (bool, error) {
	res := p.db.WithContext(ctx).Model(&models.Deadline{}).
		Where("id = ? AND is_overdue = ? AND completed_at IS NULL", id, false).
		Update("is_overdue", true)
	if res.Error != nil {
		return false, failed("MarkDeadlineOverdue", "deadline", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (p *PostgresStore) UnmarkDeadlineOverdue(ctx context.Context, id string) error {
	res := p.db.WithContext(ctx).Model(&models.Deadline{}).
		Where("id = ?", id).
		Update("is_overdue", false)
	if res.Error != nil {
		return failed("UnmarkDeadlineOverdue", "deadline", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("UnmarkDeadlineOverdue", "deadline", id)
	}
	return nil
}

func (p *PostgresStore) ReminderCandidates(ctx context.Context, from, to time.Time, limit int) ([]models.Deadline, error) {
	var out []models.Deadline
	err := p.db.WithContext(ctx).
		Where("due_date BETWEEN ? AND ? AND completed_at IS NULL AND reminders_sent < ?", from, to, limit).
		Order("due_date, id").
		Find(&out).Error
	if err != nil {
		return nil, failed("ReminderCandidates", "deadline", "", err)
	}
	return out, nil
}

func (p *PostgresStore) ClaimDeadlineReminder(ctx context.Context, id string, limit int) (int, bool, error) {
	var count int
	res := p.db.WithContext(ctx).Raw(
		`UPDATE deadlines SET reminders_sent = reminders_sent + 1
		 WHERE id = ? AND reminders_sent < ? AND completed_at IS NULL
		 RETURNING reminders_sent`, id, limit).Scan(&count)
	if res.Error != nil {
		return 0, false, failed("ClaimDeadlineReminder", "deadline", id, res.Error)
	}
	return count, res.RowsAffected == 1, nil
}

func (p *PostgresStore) ReleaseDeadlineReminder(ctx context.Context, id string) error {
	res := p.db.WithContext(ctx).Model(&models.Deadline{}).
		Where("id = ? AND reminders_sent > 0", id).
		Update("reminders_sent", gorm.Expr("reminders_sent - 1"))
	if res.Error != nil {
		return failed("ReleaseDeadlineReminder", "deadline", id, res.Error)
	}
	return nil
}

func (p *PostgresStore) CreateReview(ctx context.Context, r *models.Review) error {
	ensureID(&r.ID)
	if r.InvitedAt.IsZero() {
		r.InvitedAt = time.Now()
	}
	if err := p.db.WithContext(ctx).Create(r).Error; err != nil {
		return failed("CreateReview", "review", r.ID, err)
	}
	return nil
}

func (p *PostgresStore) ReviewsAwaitingReport(ctx context.Context, invitedBefore time.Time, limit int) ([]models.Review, error) {
	var out []models.Review
	err := p.db.WithContext(ctx).
		Where("invited_at < ? AND accepted_at IS NOT NULL AND declined_at IS NULL AND submitted_at IS NULL AND reminders_sent < ?",
			invitedBefore, limit).
		Order("invited_at, id").
		Find(&out).Error
	if err != nil {
		return nil, failed("ReviewsAwaitingReport", "review", "", err)
	}
	return out, nil
}

func (p *PostgresStore) ClaimReviewReminder(ctx context.Context, id string, limit int) (int, bool, error) {
	var count int
	res := p.db.WithContext(ctx).Raw(
		`UPDATE reviews SET reminders_sent = reminders_sent + 1
		 WHERE id = ? AND reminders_sent < ? AND accepted_at IS NOT NULL
		   AND declined_at IS NULL AND submitted_at IS NULL
		 RETURNING reminders_sent`, id, limit).Scan(&count)
	if res.Error != nil {
		return 0, false, failed("ClaimReviewReminder", "review", id, res.Error)
	}
	return count, res.RowsAffected == 1, nil
}

func (p *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	ensureID(&n.ID)
	if err := p.db.WithContext(ctx).Create(n).Error; err != nil {
		return failed("CreateNotification", "notification", n.ID, err)
	}
	return nil
}

func (p *PostgresStore) SetNotificationEmailSent(ctx context.Context, id string, sent bool) error {
	res := p.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Update("email_sent", sent)
	if res.Error != nil {
		return failed("SetNotificationEmailSent", "notification", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("SetNotificationEmailSent", "notification", id)
	}
	return nil
}

func (p *PostgresStore) NotificationsForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	q := p.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Notification
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, failed("NotificationsForUser", "notification", "", err)
	}
	return out, nil
}

func (p *PostgresStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	ensureID(&entry.ID)
	if err := p.db.WithContext(ctx).Create(entry).Error; err != nil {
		return failed("CreateAuditLog", "audit_log", entry.ID, err)
	}
	return nil
}

func (p *PostgresStore) AuditLogsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.AuditLog, error) {
	q := p.db.WithContext(ctx).Where("created_at < ?", cutoff).Order("created_at, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.AuditLog
	if err := q.Find(&out).Error; err != nil {
		return nil, failed("AuditLogsBefore", "audit_log", "", err)
	}
	return out, nil
}

func (p *PostgresStore) DeleteAuditLogs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := p.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.AuditLog{})
	if res.Error != nil {
		return 0, failed("DeleteAuditLogs", "audit_log", "", res.Error)
	}
	return res.RowsAffected, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *PostgresStore) first(ctx context.Context, dest any, id string) error {
	// ids are uuid columns; a malformed id cannot match any row
	if uuid.Validate(id) != nil {
		return gorm.ErrRecordNotFound
	}
	return p.db.WithContext(ctx).Where("id = ?", id).First(dest).Error
}

func wrapLookup(op, entity, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(op, entity, id)
	}
	return failed(op, entity, id, err)
}
