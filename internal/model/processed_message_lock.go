package model

import (
	"time"
)

// ProcessedMessageLock is the idempotency ledger for inbound messages. A
// message_id seen again while its row is inside the lock window is treated
// as already handled; rows older than the window no longer block.
type ProcessedMessageLock struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID   string    `json:"message_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	ProcessedAt time.Time `json:"processed_at" gorm:"index"`
}

// TableName specifies the table name for ProcessedMessageLock
func (ProcessedMessageLock) TableName() string {
	return "processed_message_locks"
}
