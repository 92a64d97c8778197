package handler

import (
	"time"

	"smart-task-ingest-go/internal/ingest"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// QuotaExceededResponse is the 503 body for exhausted mail quota. ResetTime
// is the next UTC midnight.
type QuotaExceededResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	ResetTime time.Time `json:"resetTime"`
}

// IngestionRequest is the body of POST /email-ingestion.
type IngestionRequest struct {
	Sender    string `json:"sender" binding:"required"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	MessageID string `json:"messageId"`
}

// IngestionResponse echoes what processing produced.
type IngestionResponse struct {
	ModelPath string               `json:"modelPath"`
	Tasks     []ingest.TaskOutcome `json:"tasks"`
}

// RegisterSenderRequest is the body of POST /authorized-senders.
type RegisterSenderRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// RegisterSenderResponse confirms registration and the pending verification.
type RegisterSenderResponse struct {
	ID           uint   `json:"id"`
	EmailAddress string `json:"email_address"`
	IsVerified   bool   `json:"is_verified"`
}

// DeleteRequestResponse carries the confirmation the owner must redeem to
// complete a sender deletion.
type DeleteRequestResponse struct {
	ConfirmationID string    `json:"confirmationId"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// ConfirmDeleteRequest is the body of POST /authorized-senders/:id/confirm-delete.
type ConfirmDeleteRequest struct {
	ConfirmationID string `json:"confirmationId" binding:"required"`
}

// PushNotification is the Pub/Sub push wrapper delivered by the inbound
// event source. Data is the base64-encoded NotificationPayload.
type PushNotification struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// NotificationPayload is the decoded notification content.
type NotificationPayload struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Details   map[string]string `json:"details,omitempty"`
}
