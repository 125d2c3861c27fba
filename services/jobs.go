package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"editorial-desk/config"
	"editorial-desk/models"
	"editorial-desk/storage"
)

// Job names, also the keys of config.CronSpecs.
const (
	JobCheckOverdueDeadlines = "checkOverdueDeadlines"
	JobSendDeadlineReminders = "sendDeadlineReminders"
	JobTrackSLACompliance    = "trackSLACompliance"
	JobSendReviewerReminders = "sendReviewerReminders"
	JobCleanupOldAuditLogs   = "cleanupOldAuditLogs"
)

// auditCleanupBatch is the number of audit entries archived and deleted per round.
const auditCleanupBatch = 500

// ErrJobRunning is reported when another invocation holds the job's lock.
var ErrJobRunning = errors.New("job already running")

// JobResult is the outcome of one job invocation.
type JobResult struct {
	Job           string    `json:"job"`
	Success       bool      `json:"success"`
	AffectedCount int       `json:"affected_count"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Job is one entry of the catalogue.
type Job struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schedule    string `json:"schedule"`
	run         func(ctx context.Context) (int, error)
}

// JobRunner executes catalogue jobs, one invocation per job at a time.
type JobRunner struct {
	Config    *config.Config
	Store     storage.Store
	Deadlines *DeadlineService
	Events    *EventMapper
	Auditor   *Auditor
	Archiver  storage.Archiver // optional
	Locker    storage.Locker
	Logger    *zap.Logger
	Metrics   *Metrics
	Now       func() time.Time

	once sync.Once
	jobs []Job
}

func (r *JobRunner) catalogue() []Job {
	r.once.Do(r.buildCatalogue)
	return r.jobs
}

func (r *JobRunner) buildCatalogue() {
	specs := r.Config.CronSpecs()
	r.jobs = []Job{
		{Name: JobCheckOverdueDeadlines, Description: "flag past-due deadlines and notify assignees",
			Schedule: specs[JobCheckOverdueDeadlines], run: r.Deadlines.CheckOverdueDeadlines},
		{Name: JobSendDeadlineReminders, Description: "remind assignees of deadlines due soon",
			Schedule: specs[JobSendDeadlineReminders], run: r.Deadlines.SendDeadlineReminders},
		{Name: JobTrackSLACompliance, Description: "audit submissions stuck in review",
			Schedule: specs[JobTrackSLACompliance], run: r.trackSLACompliance},
		{Name: JobSendReviewerReminders, Description: "remind reviewers with outstanding reports",
			Schedule: specs[JobSendReviewerReminders], run: r.sendReviewerReminders},
		{Name: JobCleanupOldAuditLogs, Description: "archive and delete expired audit entries",
			Schedule: specs[JobCleanupOldAuditLogs], run: r.cleanupOldAuditLogs},
	}
}

// Jobs lists the catalogue in a fixed order.
func (r *JobRunner) Jobs() []Job {
	return append([]Job(nil), r.catalogue()...)
}

// Lookup finds a job by name.
func (r *JobRunner) Lookup(name string) (Job, bool) {
	for _, j := range r.catalogue() {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}

// Run executes one invocation of the named job. It never panics and never returns an error;
// failures are described by the result.
func (r *JobRunner) Run(ctx context.Context, name string) JobResult {
	res := JobResult{Job: name, StartedAt: r.Now()}
	log := r.Logger.With(zap.String("job", name))

	job, ok := r.Lookup(name)
	if !ok {
		res.Error = fmt.Errorf("%w: %s", ErrUnknownJob, name).Error()
		res.FinishedAt = r.Now()
		return res
	}

	release, ok, err := r.Locker.TryLock(ctx, name)
	if err != nil {
		res.Error = err.Error()
		res.FinishedAt = r.Now()
		r.Metrics.JobRuns.WithLabelValues(name, "failure").Inc()
		log.Error("Could not acquire job lock", zap.Error(err))
		return res
	}
	if !ok {
		res.Error = ErrJobRunning.Error()
		res.FinishedAt = r.Now()
		r.Metrics.JobRuns.WithLabelValues(name, "skipped").Inc()
		log.Warn("Job skipped, previous run still active")
		return res
	}
	defer release()

	log.Info("Job started")
	affected, err := job.run(ctx)
	res.AffectedCount = affected
	res.FinishedAt = r.Now()
	r.Metrics.JobAffectedRecords.WithLabelValues(name).Add(float64(affected))

	if err != nil {
		res.Error = err.Error()
		r.Metrics.JobRuns.WithLabelValues(name, "failure").Inc()
		log.Error("Job failed", zap.Int("affected", affected), zap.Error(err))
		return res
	}
	res.Success = true
	r.Metrics.JobRuns.WithLabelValues(name, "success").Inc()
	log.Info("Job finished", zap.Int("affected", affected), zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
	return res
}

// Schedule registers every job with its cron expression.
func (r *JobRunner) Schedule(c *cron.Cron) error {
	for _, job := range r.catalogue() {
		name := job.Name
		if job.Schedule == "" {
			r.Logger.Warn("No schedule for job, not registered", zap.String("job", name))
			continue
		}
		_, err := c.AddFunc(job.Schedule, func() {
			r.Run(context.Background(), name)
		})
		if err != nil {
			return fmt.Errorf("schedule %s (%q): %w", name, job.Schedule, err)
		}
		r.Logger.Info("Job scheduled", zap.String("job", name), zap.String("schedule", job.Schedule))
	}
	return nil
}

func (r *JobRunner) trackSLACompliance(ctx context.Context) (int, error) {
	now := r.Now()
	subs, err := r.Store.SubmissionsInStatusSince(ctx, models.StatusUnderReview, now.Add(-r.Config.SLAUnderReview))
	if err != nil {
		return 0, fmt.Errorf("scan submissions in review: %w", err)
	}
	for i := range subs {
		s := &subs[i]
		r.Auditor.Record(ctx, nil, models.AuditSLAViolation, "submission", strPtr(s.ID), map[string]any{
			"code":           s.Code,
			"status":         s.Status,
			"since":          s.StatusChangedAt,
			"days_in_status": int(now.Sub(s.StatusChangedAt) / day),
			"sla_days":       int(r.Config.SLAUnderReview / day),
		})
	}
	return len(subs), nil
}

func (r *JobRunner) sendReviewerReminders(ctx context.Context) (int, error) {
	now := r.Now()
	limit := r.Config.ReminderCap
	reviews, err := r.Store.ReviewsAwaitingReport(ctx, now.Add(-r.Config.ReviewerReminderAfter), limit)
	if err != nil {
		return 0, fmt.Errorf("scan open reviews: %w", err)
	}

	sent := 0
	for i := range reviews {
		rv := &reviews[i]
		count, ok, err := r.Store.ClaimReviewReminder(ctx, rv.ID, limit)
		if err != nil {
			return sent, fmt.Errorf("claim reminder for review %s: %w", rv.ID, err)
		}
		if !ok {
			continue
		}
		sub, err := r.Store.SubmissionByID(ctx, rv.SubmissionID)
		if err != nil {
			return sent, fmt.Errorf("load submission of review %s: %w", rv.ID, err)
		}
		sent++
		r.Auditor.Record(ctx, nil, models.AuditReviewerReminder, "review", strPtr(rv.ID), map[string]any{
			"submission_id": rv.SubmissionID,
			"reviewer_id":   rv.ReviewerID,
			"reminder":      count,
		})

		ec := EventContext{
			RecipientID:     rv.ReviewerID,
			SubmissionID:    sub.ID,
			SubmissionCode:  sub.Code,
			SubmissionTitle: sub.Title,
			Link:            SubmissionLink(r.Config.AppBaseURL, sub.ID),
		}
		if rv.Deadline != nil {
			days := DaysLeft(*rv.Deadline, now)
			ec.DaysLeft = &days
		}
		if _, err := r.Events.TriggerWorkflowEvent(ctx, EventReviewerDeadlineApproaching, ec); err != nil {
			r.Logger.Error("Reviewer reminder event failed", zap.String("review_id", rv.ID), zap.Error(err))
		}
	}
	return sent, nil
}

func (r *JobRunner) cleanupOldAuditLogs(ctx context.Context) (int, error) {
	cutoff := r.Now().Add(-r.Config.AuditRetention)
	var deleted int64
	var archives []string

	for {
		entries, err := r.Store.AuditLogsBefore(ctx, cutoff, auditCleanupBatch)
		if err != nil {
			return int(deleted), fmt.Errorf("scan audit logs: %w", err)
		}
		if len(entries) == 0 {
			break
		}
		if r.Archiver != nil {
			link, err := r.Archiver.Archive(ctx, entries)
			if err != nil {
				return int(deleted), fmt.Errorf("archive audit logs: %w", err)
			}
			archives = append(archives, link)
		}
		ids := make([]string, len(entries))
		for i := range entries {
			ids[i] = entries[i].ID
		}
		n, err := r.Store.DeleteAuditLogs(ctx, ids)
		if err != nil {
			return int(deleted), fmt.Errorf("delete audit logs: %w", err)
		}
		deleted += n
		if n == 0 || len(entries) < auditCleanupBatch {
			break
		}
	}

	meta := map[string]any{"deleted": deleted, "cutoff": cutoff}
	if len(archives) > 0 {
		meta["archives"] = archives
	}
	r.Auditor.Record(ctx, nil, models.AuditLogCleanup, "audit_log", nil, meta)
	return int(deleted), nil
}
