package models

import "time"

// Submission is a manuscript moving through the editorial process.
type Submission struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Code       string           `json:"code" gorm:"uniqueIndex;not null"`
	Title      string           `json:"title" gorm:"not null"`
	Status     SubmissionStatus `json:"status" gorm:"type:varchar(32);index;not null;default:'NEW'"`
	AuthorID   string           `json:"author_id" gorm:"type:uuid;index;not null"`
	CategoryID string           `json:"category_id,omitempty" gorm:"index"`

	// StatusChangedAt is the instant of the last applied transition; the SLA job measures from it.
	StatusChangedAt time.Time `json:"status_changed_at" gorm:"index"`
}

// TableName pins the table name for gorm.
func (Submission) TableName() string {
	return "submissions"
}
