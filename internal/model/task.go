package model

import (
	"time"
)

// Task is a persisted to-do item. Email-origin tasks carry the message id of
// the inbound email; many tasks may share one message id under fan-out.
type Task struct {
	ID              uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID         uint       `json:"owner_id" gorm:"not null;index"`
	TaskName        string     `json:"task_name" gorm:"type:varchar(500);not null"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	IsCompleted     bool       `json:"is_completed" gorm:"default:false"`
	OriginalRequest string     `json:"original_request" gorm:"type:varchar(2000)"`
	MessageID       *string    `json:"message_id,omitempty" gorm:"type:varchar(255);index"`
	IsArchived      bool       `json:"is_archived" gorm:"default:false"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Task
func (Task) TableName() string {
	return "tasks"
}
