package model

import (
	"time"
)

// WatchState tracks the Gmail watch registration for the ingestion mailbox:
// the last history id already fetched and when the watch expires. Watches
// expire after roughly seven days and must be renewed before that.
type WatchState struct {
	ID            uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	EmailAddress  string    `json:"email_address" gorm:"type:varchar(255);not null;uniqueIndex"`
	LastHistoryID uint64    `json:"last_history_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for WatchState
func (WatchState) TableName() string {
	return "watch_states"
}
