package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions written by the engine.
const (
	AuditStatusChanged     = "SUBMISSION_STATUS_CHANGED"
	AuditDeadlineCreated   = "DEADLINE_CREATED"
	AuditDeadlineCompleted = "DEADLINE_COMPLETED"
	AuditDeadlineOverdue   = "DEADLINE_OVERDUE"
	AuditDeadlineReminder  = "DEADLINE_REMINDER_SENT"
	AuditSLAViolation      = "SLA_VIOLATION"
	AuditReviewerReminder  = "REVIEWER_REMINDER_SENT"
	AuditLogCleanup        = "AUDIT_LOG_CLEANUP"
)

// AuditLog is one entry of the audit trail.
type AuditLog struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	ActorID  *string        `json:"actor_id,omitempty" gorm:"type:uuid"`
	Action   string         `json:"action" gorm:"index;not null"`
	Entity   string         `json:"entity" gorm:"not null"`
	EntityID *string        `json:"entity_id,omitempty" gorm:"index"`
	Metadata datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
}

// TableName pins the table name for gorm.
func (AuditLog) TableName() string {
	return "audit_logs"
}
