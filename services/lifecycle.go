package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"editorial-desk/config"
	"editorial-desk/models"
	"editorial-desk/storage"
)

// deadlineRule is the obligation created when a submission enters a status.
type deadlineRule struct {
	typ          models.DeadlineType
	after        time.Duration
	assignAuthor bool
	note         string
}

const day = 24 * time.Hour

var deadlineRules = map[models.SubmissionStatus]deadlineRule{
	models.StatusUnderReview:  {typ: models.DeadlineInitialReview, after: 21 * day, note: "complete review"},
	models.StatusRevision:     {typ: models.DeadlineRevisionSubmit, after: 14 * day, assignAuthor: true, note: "submit revision"},
	models.StatusInProduction: {typ: models.DeadlineProduction, after: 14 * day, note: "complete layout"},
}

// decisionEvents are told to the author when a submission enters the status.
var decisionEvents = map[models.SubmissionStatus]WorkflowEvent{
	models.StatusRevision:   EventRevisionRequested,
	models.StatusAccepted:   EventDecisionMade,
	models.StatusRejected:   EventDecisionMade,
	models.StatusDeskReject: EventDecisionMade,
	models.StatusPublished:  EventPaperPublished,
}

// TransitionResult describes an applied status change. The change stands even when DeadlineErr
// is set.
type TransitionResult struct {
	Submission  *models.Submission      `json:"submission"`
	From        models.SubmissionStatus `json:"from"`
	To          models.SubmissionStatus `json:"to"`
	Deadline    *models.Deadline        `json:"deadline,omitempty"`
	DeadlineErr error                   `json:"-"`
	Event       *EventResult            `json:"event,omitempty"`
}

// LifecycleService moves submissions through the editorial state machine.
type LifecycleService struct {
	Config    *config.Config
	Store     storage.Store
	Deadlines *DeadlineService
	Events    *EventMapper
	Auditor   *Auditor
	Logger    *zap.Logger
	Now       func() time.Time
}

// Transition applies one status change, creates the deadline the new status requires and tells
// the author about editorial decisions.
func (l *LifecycleService) Transition(ctx context.Context, submissionID string, to models.SubmissionStatus, actorID *string) (*TransitionResult, error) {
	sub, err := l.Store.SubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	from := sub.Status
	if !from.CanTransitionTo(to) {
		return nil, &TransitionError{From: from, To: to}
	}

	now := l.Now()
	ok, err := l.Store.UpdateSubmissionStatus(ctx, submissionID, from, to, now)
	if err != nil {
		return nil, fmt.Errorf("update submission status: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("submission %s left %s: %w", submissionID, from, ErrStatusConflict)
	}
	sub.Status = to
	sub.StatusChangedAt = now
	sub.UpdatedAt = now

	log := l.Logger.With(
		zap.String("submission_id", submissionID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	log.Info("Submission status changed")
	l.Auditor.Record(ctx, actorID, models.AuditStatusChanged, "submission", strPtr(submissionID), map[string]any{
		"from": from,
		"to":   to,
	})

	res := &TransitionResult{Submission: sub, From: from, To: to}

	if rule, ok := deadlineRules[to]; ok {
		in := NewDeadline{
			SubmissionID: submissionID,
			Type:         rule.typ,
			DueDate:      now.Add(rule.after),
			Note:         rule.note,
		}
		if rule.assignAuthor {
			in.AssignedTo = strPtr(sub.AuthorID)
			// the decision event below already emails the author
			_, in.InAppOnly = decisionEvents[to]
		}
		d, err := l.Deadlines.CreateDeadline(ctx, in, actorID)
		if err != nil {
			log.Error("Status changed but deadline was not created",
				zap.String("deadline_type", string(rule.typ)), zap.Error(err))
			res.DeadlineErr = err
		} else {
			res.Deadline = d
		}
	}

	if event, ok := decisionEvents[to]; ok && l.Events != nil {
		ec := EventContext{
			RecipientID:     sub.AuthorID,
			SubmissionID:    sub.ID,
			SubmissionCode:  sub.Code,
			SubmissionTitle: sub.Title,
			Decision:        StatusLabel(to),
			Link:            SubmissionLink(l.Config.AppBaseURL, sub.ID),
		}
		if res.Deadline != nil {
			days := DaysLeft(res.Deadline.DueDate, now)
			ec.DaysLeft = &days
		}
		er, err := l.Events.TriggerWorkflowEvent(ctx, event, ec)
		if err != nil {
			log.Error("Decision event failed", zap.String("event", string(event)), zap.Error(err))
		} else {
			res.Event = er
		}
	}

	return res, nil
}
