package model

import (
	"time"
)

// VerificationToken is a one-time magic-link token proving control of an
// external address. Only the SHA-256 hash of the token is ever persisted;
// the plaintext exists only inside the delivered link.
type VerificationToken struct {
	ID          uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID     uint       `json:"owner_id" gorm:"not null;index"`
	TargetEmail string     `json:"target_email" gorm:"type:varchar(255);not null"`
	TokenHash   string     `json:"-" gorm:"type:char(64);not null;uniqueIndex"`
	ExpiresAt   time.Time  `json:"expires_at" gorm:"not null"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName specifies the table name for VerificationToken
func (VerificationToken) TableName() string {
	return "verification_tokens"
}
