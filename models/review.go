package models

import "time"

// Review is a reviewer's obligation for a submission. It carries its own reminder counter,
// independent of Deadline.RemindersSent.
type Review struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	SubmissionID string `json:"submission_id" gorm:"type:uuid;index;not null"`
	ReviewerID   string `json:"reviewer_id" gorm:"type:uuid;index;not null"`

	InvitedAt   time.Time  `json:"invited_at" gorm:"index;not null"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	DeclinedAt  *time.Time `json:"declined_at,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`

	RemindersSent int `json:"reminders_sent" gorm:"not null;default:0"`
}

// TableName pins the table name for gorm.
func (Review) TableName() string {
	return "reviews"
}

// AwaitingReport reports whether the reviewer accepted and has neither declined nor submitted.
func (r *Review) AwaitingReport() bool {
	return r.AcceptedAt != nil && r.DeclinedAt == nil && r.SubmittedAt == nil
}
