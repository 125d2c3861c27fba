package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType enumerates the workflow and deadline events a user can be told about.
type NotificationType string

const (
	NotificationDeadlineApproaching    NotificationType = "DEADLINE_APPROACHING"
	NotificationDeadlineOverdue        NotificationType = "DEADLINE_OVERDUE"
	NotificationDeadlineReminder       NotificationType = "DEADLINE_REMINDER"
	NotificationReviewerInvited        NotificationType = "REVIEWER_INVITED"
	NotificationReviewReminder         NotificationType = "REVIEW_REMINDER"
	NotificationReviewCompleted        NotificationType = "REVIEW_COMPLETED"
	NotificationDecisionMade           NotificationType = "DECISION_MADE"
	NotificationRevisionRequested      NotificationType = "REVISION_REQUESTED"
	NotificationPaperPublished         NotificationType = "PAPER_PUBLISHED"
	NotificationAuthorRevisionReminder NotificationType = "AUTHOR_REVISION_REMINDER"
	NotificationSystem                 NotificationType = "SYSTEM"
)

// Notification is a persisted, user-facing message.
type Notification struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	UserID   string           `json:"user_id" gorm:"type:uuid;index;not null"`
	Type     NotificationType `json:"type" gorm:"type:varchar(48);index;not null"`
	Title    string           `json:"title" gorm:"not null"`
	Message  string           `json:"message" gorm:"type:text"`
	Link     *string          `json:"link,omitempty"`
	Metadata datatypes.JSON   `json:"metadata,omitempty" gorm:"type:jsonb"`

	IsRead bool `json:"is_read" gorm:"not null;default:false"`
	// EmailSent only reflects the transport outcome at creation time.
	EmailSent bool `json:"email_sent" gorm:"not null;default:false"`
}

// TableName pins the table name for gorm.
func (Notification) TableName() string {
	return "notifications"
}
