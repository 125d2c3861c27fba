package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"editorial-desk/config"
	"editorial-desk/models"
	"editorial-desk/storage"
)

// NewDeadline describes a deadline to create.
type NewDeadline struct {
	SubmissionID string              `json:"submission_id"`
	Type         models.DeadlineType `json:"type"`
	DueDate      time.Time           `json:"due_date"`
	AssignedTo   *string             `json:"assigned_to,omitempty"`
	Note         string              `json:"note,omitempty"`
	// InAppOnly skips the assignee email when another message already covers it.
	InAppOnly bool `json:"-"`
}

// DeadlineService owns deadline creation, completion and the overdue and reminder scans.
type DeadlineService struct {
	Config   *config.Config
	Store    storage.Store
	Notifier *Notifier
	Auditor  *Auditor
	Logger   *zap.Logger
	Metrics  *Metrics
	Now      func() time.Time
}

// SubmissionLink is the deep link into the editorial UI.
func SubmissionLink(baseURL, submissionID string) string {
	return strings.TrimRight(baseURL, "/") + "/submissions/" + submissionID
}

// CreateDeadline persists a deadline and tells the assignee, if any.
func (s *DeadlineService) CreateDeadline(ctx context.Context, in NewDeadline, actorID *string) (*models.Deadline, error) {
	if _, ok := models.ParseDeadlineType(string(in.Type)); !ok {
		return nil, fmt.Errorf("%w: deadline type %q", ErrInvalidInput, in.Type)
	}
	if in.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due date required", ErrInvalidInput)
	}
	sub, err := s.Store.SubmissionByID(ctx, in.SubmissionID)
	if err != nil {
		return nil, err
	}

	d := &models.Deadline{
		CreatedAt:    s.Now(),
		SubmissionID: in.SubmissionID,
		Type:         in.Type,
		DueDate:      in.DueDate,
		AssignedTo:   in.AssignedTo,
		Note:         in.Note,
	}
	if err := s.Store.CreateDeadline(ctx, d); err != nil {
		return nil, fmt.Errorf("create %s deadline: %w", in.Type, err)
	}
	s.Metrics.DeadlinesCreated.WithLabelValues(string(d.Type)).Inc()
	s.Auditor.Record(ctx, actorID, models.AuditDeadlineCreated, "deadline", strPtr(d.ID), map[string]any{
		"submission_id": d.SubmissionID,
		"type":          d.Type,
		"due_date":      d.DueDate,
	})

	if d.AssignedTo != nil {
		label := DeadlineTypeLabel(d.Type)
		msg := fmt.Sprintf("%s for %s (%s) is due on %s.", label, sub.Code, sub.Title, formatDate(d.DueDate))
		if d.Note != "" {
			msg += " Task: " + d.Note + "."
		}
		if err := s.notify(ctx, d, models.NotificationDeadlineApproaching, "New deadline: "+label, msg, nil, !in.InAppOnly); err != nil {
			s.Logger.Error("Deadline created but assignee was not notified",
				zap.String("deadline_id", d.ID), zap.Error(err))
		}
	}
	return d, nil
}

// CompleteDeadline marks a deadline done. Completing it again keeps the first completion time.
func (s *DeadlineService) CompleteDeadline(ctx context.Context, id string, actorID *string) (*models.Deadline, error) {
	changed, err := s.Store.CompleteDeadline(ctx, id, s.Now())
	if err != nil {
		return nil, err
	}
	if changed {
		s.Auditor.Record(ctx, actorID, models.AuditDeadlineCompleted, "deadline", strPtr(id), nil)
	}
	return s.Store.DeadlineByID(ctx, id)
}

// DeadlinesForSubmission lists the deadlines of one submission, earliest due first.
func (s *DeadlineService) DeadlinesForSubmission(ctx context.Context, submissionID string) ([]models.Deadline, error) {
	if _, err := s.Store.SubmissionByID(ctx, submissionID); err != nil {
		return nil, err
	}
	return s.Store.DeadlinesForSubmission(ctx, submissionID)
}

// CheckOverdueDeadlines flags past-due, incomplete deadlines and notifies their assignees.
// Returns the number of deadlines flagged by this run.
func (s *DeadlineService) CheckOverdueDeadlines(ctx context.Context) (int, error) {
	now := s.Now()
	candidates, err := s.Store.OverdueCandidates(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("scan overdue deadlines: %w", err)
	}

	flagged := 0
	for i := range candidates {
		d := &candidates[i]
		ok, err := s.Store.MarkDeadlineOverdue(ctx, d.ID)
		if err != nil {
			return flagged, fmt.Errorf("flag deadline %s overdue: %w", d.ID, err)
		}
		if !ok {
			// completed or flagged since the scan
			continue
		}
		if d.AssignedTo != nil {
			label := DeadlineTypeLabel(d.Type)
			msg := fmt.Sprintf("%s for submission %s was due on %s and is not complete.",
				label, d.SubmissionID, formatDate(d.DueDate))
			err := s.notify(ctx, d, models.NotificationDeadlineOverdue, "Deadline overdue: "+label, msg, nil, true)
			if err != nil {
				// leave the deadline unflagged so the next run notifies again
				if uerr := s.Store.UnmarkDeadlineOverdue(ctx, d.ID); uerr != nil {
					err = errors.Join(err, uerr)
				}
				return flagged, fmt.Errorf("notify overdue deadline %s: %w", d.ID, err)
			}
		}
		flagged++
		s.Auditor.Record(ctx, nil, models.AuditDeadlineOverdue, "deadline", strPtr(d.ID), map[string]any{
			"submission_id": d.SubmissionID,
			"due_date":      d.DueDate,
		})
	}
	return flagged, nil
}

// SendDeadlineReminders reminds assignees of deadlines due within the reminder window. A slot is
// claimed before anything is sent, so no deadline gets more than the configured cap.
func (s *DeadlineService) SendDeadlineReminders(ctx context.Context) (int, error) {
	now := s.Now()
	limit := s.Config.ReminderCap
	candidates, err := s.Store.ReminderCandidates(ctx, now, now.Add(s.Config.DeadlineReminderWindow), limit)
	if err != nil {
		return 0, fmt.Errorf("scan reminder candidates: %w", err)
	}

	sent := 0
	for i := range candidates {
		d := &candidates[i]
		count, ok, err := s.Store.ClaimDeadlineReminder(ctx, d.ID, limit)
		if err != nil {
			return sent, fmt.Errorf("claim reminder for deadline %s: %w", d.ID, err)
		}
		if !ok {
			continue
		}
		days := DaysLeft(d.DueDate, now)
		if d.AssignedTo == nil {
			s.Logger.Debug("Reminder slot used on unassigned deadline", zap.String("deadline_id", d.ID))
		} else {
			label := DeadlineTypeLabel(d.Type)
			msg := fmt.Sprintf("%s for submission %s: %s (due %s).",
				label, d.SubmissionID, DaysLeftLabel(days), formatDate(d.DueDate))
			err := s.notify(ctx, d, models.NotificationDeadlineReminder, "Reminder: "+label, msg, map[string]any{
				"days_left": days,
				"reminder":  count,
			}, true)
			if err != nil {
				if rerr := s.Store.ReleaseDeadlineReminder(ctx, d.ID); rerr != nil {
					err = errors.Join(err, rerr)
				}
				return sent, fmt.Errorf("notify reminder for deadline %s: %w", d.ID, err)
			}
		}
		sent++
		s.Auditor.Record(ctx, nil, models.AuditDeadlineReminder, "deadline", strPtr(d.ID), map[string]any{
			"reminder":  count,
			"days_left": days,
		})
	}
	return sent, nil
}

// notify persists the assignee's notification. Only a persistence failure is returned.
func (s *DeadlineService) notify(ctx context.Context, d *models.Deadline, typ models.NotificationType, title, msg string, extra map[string]any, email bool) error {
	meta := map[string]any{
		"deadline_id":   d.ID,
		"submission_id": d.SubmissionID,
		"deadline_type": d.Type,
		"due_date":      d.DueDate,
	}
	for k, v := range extra {
		meta[k] = v
	}
	link := SubmissionLink(s.Config.AppBaseURL, d.SubmissionID)
	_, err := s.Notifier.Dispatch(ctx, Dispatch{
		UserID:    *d.AssignedTo,
		Type:      typ,
		Title:     title,
		Message:   msg,
		Link:      &link,
		Metadata:  meta,
		SendEmail: email,
	})
	if err != nil {
		s.Logger.Error("Failed to notify deadline assignee",
			zap.String("deadline_id", d.ID),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
	return err
}
