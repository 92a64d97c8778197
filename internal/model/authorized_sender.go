package model

import (
	"time"
)

// AuthorizedSender is an external email address that an owner has registered
// as a trusted task source. An unverified sender has no task-creation rights.
type AuthorizedSender struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID      uint      `json:"owner_id" gorm:"not null;uniqueIndex:idx_owner_email"`
	EmailAddress string    `json:"email_address" gorm:"type:varchar(255);not null;uniqueIndex:idx_owner_email"`
	IsVerified   bool      `json:"is_verified" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for AuthorizedSender
func (AuthorizedSender) TableName() string {
	return "authorized_senders"
}
