package model

import (
	"time"
)

// Outbound mail statuses.
const (
	MailStatusSent   = "sent"
	MailStatusFailed = "failed"
)

// OutboundMailRecord is one ledger row per send attempt, written regardless
// of provider outcome. The count of rows inside the current UTC calendar day
// is the authoritative daily quota counter.
type OutboundMailRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SentAt    time.Time `json:"sent_at" gorm:"not null;index"`
	Purpose   string    `json:"purpose" gorm:"type:varchar(100);not null"`
	Recipient string    `json:"recipient" gorm:"type:varchar(255);not null"`
	Status    string    `json:"status" gorm:"type:varchar(20);not null"`
}

// TableName specifies the table name for OutboundMailRecord
func (OutboundMailRecord) TableName() string {
	return "outbound_mail_records"
}
