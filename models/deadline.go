package models

import "time"

// DeadlineType classifies the obligation a deadline tracks.
type DeadlineType string

const (
	DeadlineInitialReview  DeadlineType = "INITIAL_REVIEW"
	DeadlineRevisionSubmit DeadlineType = "REVISION_SUBMIT"
	DeadlineReReview       DeadlineType = "RE_REVIEW"
	DeadlineEditorDecision DeadlineType = "EDITOR_DECISION"
	DeadlineProduction     DeadlineType = "PRODUCTION"
	DeadlinePublication    DeadlineType = "PUBLICATION"
)

// ParseDeadlineType validates a raw deadline type.
func ParseDeadlineType(raw string) (DeadlineType, bool) {
	switch t := DeadlineType(raw); t {
	case DeadlineInitialReview, DeadlineRevisionSubmit, DeadlineReReview,
		DeadlineEditorDecision, DeadlineProduction, DeadlinePublication:
		return t, true
	}
	return "", false
}

// Deadline is a time-bound obligation tied to exactly one submission.
type Deadline struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	SubmissionID string       `json:"submission_id" gorm:"type:uuid;index;not null"`
	Type         DeadlineType `json:"type" gorm:"type:varchar(32);not null"`
	DueDate      time.Time    `json:"due_date" gorm:"index;not null"`
	AssignedTo   *string      `json:"assigned_to,omitempty" gorm:"type:uuid;index"`
	Note         string       `json:"note,omitempty" gorm:"type:text"`

	CompletedAt   *time.Time `json:"completed_at,omitempty" gorm:"index"`
	IsOverdue     bool       `json:"is_overdue" gorm:"not null;default:false"`
	RemindersSent int        `json:"reminders_sent" gorm:"not null;default:0"`
}

// TableName pins the table name for gorm.
func (Deadline) TableName() string {
	return "deadlines"
}

// Completed reports whether the deadline has been marked done.
func (d *Deadline) Completed() bool {
	return d.CompletedAt != nil
}
