package models

// User is the slice of the account record this engine needs: who to address and where.
type User struct {
	ID    string `json:"id" gorm:"type:uuid;primaryKey"`
	Name  string `json:"name"`
	Email string `json:"email" gorm:"index"`
}

// TableName pins the table name for gorm.
func (User) TableName() string {
	return "users"
}
