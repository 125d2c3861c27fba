package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"editorial-desk/models"
	"editorial-desk/storage"
)

func TestCreateDeadline_AssignedNotifiesAssignee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "Ada", "ada@example.org")
	editor := env.user(t, "Grace", "grace@example.org")
	sub := env.submission(t, "SUB-1", author)

	d, err := env.engine.Deadlines.CreateDeadline(ctx, NewDeadline{
		SubmissionID: sub.ID,
		Type:         models.DeadlineEditorDecision,
		DueDate:      t0.Add(5 * day),
		AssignedTo:   &editor.ID,
		Note:         "decide",
	}, &editor.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, t0, d.CreatedAt)

	got := env.notifications(t, editor.ID)
	require.Len(t, got, 1)
	assert.Equal(t, models.NotificationDeadlineApproaching, got[0].Type)
	assert.Equal(t, "New deadline: Editor Decision", got[0].Title)
	assert.Contains(t, got[0].Message, "SUB-1")
	assert.Contains(t, got[0].Message, "7 Mar 2026")
	require.NotNil(t, got[0].Link)
	assert.Equal(t, "https://desk.example.org/submissions/"+sub.ID, *got[0].Link)
	assert.True(t, got[0].EmailSent)

	audit := env.mem.AuditLogs()
	require.Len(t, audit, 1)
	assert.Equal(t, models.AuditDeadlineCreated, audit[0].Action)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.DeadlinesCreated.WithLabelValues("EDITOR_DECISION")))
}

func TestCreateDeadline_UnassignedIsSilent(t *testing.T) {
	env := newTestEnv(t)
	author := env.user(t, "Ada", "ada@example.org")
	sub := env.submission(t, "SUB-1", author)

	_, err := env.engine.Deadlines.CreateDeadline(context.Background(), NewDeadline{
		SubmissionID: sub.ID,
		Type:         models.DeadlinePublication,
		DueDate:      t0.Add(30 * day),
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, env.mailer.Sent())
	assert.Empty(t, env.notifications(t, author.ID))
}

func TestCreateDeadline_Validation(t *testing.T) {
	env := newTestEnv(t)
	author := env.user(t, "Ada", "ada@example.org")
	sub := env.submission(t, "SUB-1", author)
	ctx := context.Background()

	_, err := env.engine.Deadlines.CreateDeadline(ctx, NewDeadline{SubmissionID: sub.ID, Type: "COFFEE", DueDate: t0}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.engine.Deadlines.CreateDeadline(ctx, NewDeadline{SubmissionID: sub.ID, Type: models.DeadlineProduction}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.engine.Deadlines.CreateDeadline(ctx, NewDeadline{
		SubmissionID: "6d1f7e0c-0000-4000-8000-000000000000",
		Type:         models.DeadlineProduction,
		DueDate:      t0,
	}, nil)
	assert.True(t, storage.IsNotFound(err))
}

func TestCompleteDeadline_SecondCallKeepsFirstTimestamp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "Ada", "ada@example.org")
	sub := env.submission(t, "SUB-1", author)
	d, err := env.engine.Deadlines.CreateDeadline(ctx, NewDeadline{
		SubmissionID: sub.ID, Type: models.DeadlineProduction, DueDate: t0.Add(14 * day),
	}, nil)
	require.NoError(t, err)

	env.clock.Set(t0.Add(2 * day))
	first, err := env.engine.Deadlines.CompleteDeadline(ctx, d.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, first.CompletedAt)
	assert.Equal(t, t0.Add(2*day), *first.CompletedAt)

	env.clock.Set(t0.Add(3 * day))
	second, err := env.engine.Deadlines.CompleteDeadline(ctx, d.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(2*day), *second.CompletedAt)

	var completions int
	for _, a := range env.mem.AuditLogs() {
		if a.Action == models.AuditDeadlineCompleted {
			completions++
		}
	}
	assert.Equal(t, 1, completions)
}

func TestCompleteDeadline_Missing(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.Deadlines.CompleteDeadline(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeadlinesForSubmission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "Ada", "ada@example.org")
	sub := env.submission(t, "SUB-1", author)
	for _, due := range []time.Duration{10 * day, 2 * day} {
		_, err := env.engine.Deadlines.CreateDeadline(ctx, NewDeadline{
			SubmissionID: sub.ID, Type: models.DeadlineReReview, DueDate: t0.Add(due),
		}, nil)
		require.NoError(t, err)
	}

	list, err := env.engine.Deadlines.DeadlinesForSubmission(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, t0.Add(2*day), list[0].DueDate)

	_, err = env.engine.Deadlines.DeadlinesForSubmission(ctx, "missing")
	assert.True(t, storage.IsNotFound(err))
}

func TestCheckOverdueDeadlines_FlagsOnceAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "Ada", "ada@example.org")
	editor := env.user(t, "Grace", "grace@example.org")
	sub := env.submission(t, "SUB-1", author)

	late, err := env.engine.Deadlines.CreateDeadline(ctx, NewDeadline{
		SubmissionID: sub.ID, Type: models.DeadlineEditorDecision, DueDate: t0.Add(day), AssignedTo: &editor.ID,
	}, nil)
	require.NoError(t, err)
	done, err := env.engine.Deadlines.CreateDeadline(ctx, NewDeadline{
		SubmissionID: sub.ID, Type: models.DeadlineProduction, DueDate: t0.Add(day), AssignedTo: &editor.ID,
	}, nil)
	require.NoError(t, err)
	_, err = env.engine.Deadlines.CompleteDeadline(ctx, done.ID, nil)
	require.NoError(t, err)

	env.clock.Set(t0.Add(2 * day))
	flagged, err := env.engine.Deadlines.CheckOverdueDeadlines(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)
	assert.True(t, env.deadline(t, late.ID).IsOverdue)
	assert.False(t, env.deadline(t, done.ID).IsOverdue)

	var overdue []models.Notification
	for _, n := range env.notifications(t, editor.ID) {
		if n.Type == models.NotificationDeadlineOverdue {
			overdue = append(overdue, n)
		}
	}
	require.Len(t, overdue, 1)
	assert.Equal(t, "Deadline overdue: Editor Decision", overdue[0].Title)

	flagged, err = env.engine.Deadlines.CheckOverdueDeadlines(ctx)
	require.NoError(t, err)
	assert.Zero(t, flagged)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.NotificationsCreated.WithLabelValues("DEADLINE_OVERDUE")))
}

func TestCheckOverdueDeadlines_NeverResetsFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "Ada", "ada@example.org")
	sub := env.submission(t, "SUB-1", author)
	d, err := env.engine.Deadlines.CreateDeadline(ctx, NewDeadline{
		SubmissionID: sub.ID, Type: models.DeadlineProduction, DueDate: t0.Add(day),
	}, nil)
	require.NoError(t, err)

	env.clock.Set(t0.Add(3 * day))
	_, err = env.engine.Deadlines.CheckOverdueDeadlines(ctx)
	require.NoError(t, err)
	_, err = env.engine.Deadlines.CompleteDeadline(ctx, d.ID, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		env.clock.Advance(day)
		_, err = env.engine.Deadlines.CheckOverdueDeadlines(ctx)
		require.NoError(t, err)
		assert.True(t, env.deadline(t, d.ID).IsOverdue)
	}
}

func TestCheckOverdueDeadlines_StoreError(t *testing.T) {
	env := newTestEnv(t)
	env.hooks.overdueCandidates = func() error { return errors.New("connection reset") }

	_, err := env.engine.Deadlines.CheckOverdueDeadlines(context.Background())
	assert.ErrorContains(t, err, "connection reset")
}

func TestSendDeadlineReminders_NeverExceedsCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "Ada", "ada@example.org")
	sub := env.submission(t, "SUB-1", author)
	d, err := env.engine.Deadlines.CreateDeadline(ctx, NewDeadline{
		SubmissionID: sub.ID, Type: models.DeadlineRevisionSubmit, DueDate: t0.Add(3 * day), AssignedTo: &author.ID,
	}, nil)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, err := env.engine.Deadlines.SendDeadlineReminders(ctx)
		require.NoError(t, err)
		assert.LessOrEqual(t, env.deadline(t, d.ID).RemindersSent, 2)
		env.clock.Advance(6 * time.Hour)
	}
	assert.Equal(t, 2, env.deadline(t, d.ID).RemindersSent)

	var reminders int
	for _, n := range env.notifications(t, author.ID) {
		if n.Type == models.NotificationDeadlineReminder {
			reminders++
		}
	}
	assert.Equal(t, 2, reminders)
}

func TestSendDeadlineReminders_DaysLeftSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "Ada", "ada@example.org")
	sub := env.submission(t, "SUB-1", author)
	d, err := env.engine.Deadlines.CreateDeadline(ctx, NewDeadline{
		SubmissionID: sub.ID, Type: models.DeadlineRevisionSubmit, DueDate: t0.Add(2 * day), AssignedTo: &author.ID,
	}, nil)
	require.NoError(t, err)

	reminderMessages := func() []string {
		var out []string
		for _, n := range env.notifications(t, author.ID) {
			if n.Type == models.NotificationDeadlineReminder {
				out = append(out, n.Message)
			}
		}
		return out
	}

	sent, err := env.engine.Deadlines.SendDeadlineReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, env.deadline(t, d.ID).RemindersSent)
	require.Len(t, reminderMessages(), 1)
	assert.Contains(t, reminderMessages()[0], "2 days left")

	env.clock.Set(t0.Add(12 * time.Hour))
	sent, err = env.engine.Deadlines.SendDeadlineReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 2, env.deadline(t, d.ID).RemindersSent)
	msgs := reminderMessages()
	require.Len(t, msgs, 2)
	// newest first
	assert.Contains(t, msgs[0], "1 day left")

	env.clock.Set(t0.Add(24 * time.Hour))
	sent, err = env.engine.Deadlines.SendDeadlineReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, reminderMessages(), 2)
}

func TestSendDeadlineReminders_UnassignedClaimsWithoutNotifying(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "Ada", "ada@example.org")
	sub := env.submission(t, "SUB-1", author)
	d, err := env.engine.Deadlines.CreateDeadline(ctx, NewDeadline{
		SubmissionID: sub.ID, Type: models.DeadlineProduction, DueDate: t0.Add(day),
	}, nil)
	require.NoError(t, err)

	sent, err := env.engine.Deadlines.SendDeadlineReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, env.deadline(t, d.ID).RemindersSent)
	assert.Empty(t, env.mailer.Sent())
	assert.Len(t, env.logs.FilterMessage("Reminder slot used on unassigned deadline").All(), 1)
}

func TestSendDeadlineReminders_OutsideWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "Ada", "ada@example.org")
	sub := env.submission(t, "SUB-1", author)
	for _, due := range []time.Time{t0.Add(5 * day), t0.Add(-time.Hour)} {
		_, err := env.engine.Deadlines.CreateDeadline(ctx, NewDeadline{
			SubmissionID: sub.ID, Type: models.DeadlineProduction, DueDate: due, AssignedTo: &author.ID,
		}, nil)
		require.NoError(t, err)
	}

	sent, err := env.engine.Deadlines.SendDeadlineReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}
