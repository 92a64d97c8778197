package model

import (
	"time"
)

// PendingConfirmation is a short-lived, persisted confirmation record for
// destructive owner actions (sender deletion). Keeping it in the shared store
// instead of process memory lets any service instance redeem it.
type PendingConfirmation struct {
	ID        string     `json:"id" gorm:"type:char(36);primaryKey"`
	OwnerID   uint       `json:"owner_id" gorm:"not null;index"`
	SenderID  uint       `json:"sender_id" gorm:"not null"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null;index"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName specifies the table name for PendingConfirmation
func (PendingConfirmation) TableName() string {
	return "pending_confirmations"
}
