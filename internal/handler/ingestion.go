package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"smart-task-ingest-go/internal/apperrors"
	"smart-task-ingest-go/internal/model"
)

// IngestEmail runs one inbound message through the pipeline synchronously.
// A missing messageId skips deduplication.
func (h *Handlers) IngestEmail(c *gin.Context) {
	var req IngestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	email := model.InboundEmail{
		MessageID: req.MessageID,
		Sender:    req.Sender,
		Subject:   req.Subject,
		Body:      req.Body,
	}

	outcome, err := h.orchestrator.Process(c.Request.Context(), email)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrSenderNotAuthorized):
			c.JSON(http.StatusForbidden, ErrorResponse{
				Error:   "sender_not_authorized",
				Message: "Sender is not verified for any owner",
				Code:    http.StatusForbidden,
			})
		case errors.Is(err, apperrors.ErrDuplicateMessage):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "duplicate_message",
				Message: "Message was already processed inside the lock window",
				Code:    http.StatusConflict,
			})
		case errors.Is(err, apperrors.ErrContentRejected):
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error:   "content_rejected",
				Message: "Message content was rejected",
				Code:    http.StatusUnprocessableEntity,
			})
		default:
			logrus.Errorf("Ingestion failed: %v", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to process message",
				Code:    http.StatusInternalServerError,
			})
		}
		return
	}

	c.JSON(http.StatusOK, IngestionResponse{
		ModelPath: outcome.ModelPath,
		Tasks:     outcome.Tasks,
	})
}

// HandleNotification accepts a push notification from the inbound event
// source and triggers an asynchronous drain of the mailbox. Both the Pub/Sub
// push wrapper and the bare payload shape are accepted. Always acknowledges:
// the polling safety net covers anything dropped here.
func (h *Handlers) HandleNotification(c *gin.Context) {
	var push PushNotification
	if err := c.ShouldBindJSON(&push); err == nil && push.Message.Data != "" {
		if data, err := base64.StdEncoding.DecodeString(push.Message.Data); err == nil {
			var payload NotificationPayload
			if json.Unmarshal(data, &payload) == nil && payload.HistoryID > 0 {
				logrus.Debugf("Push notification for history %d", payload.HistoryID)
			}
		}
	}

	h.scheduler.Notify()
	c.Status(http.StatusNoContent)
}
