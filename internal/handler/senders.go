package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"smart-task-ingest-go/internal/apperrors"
)

// RegisterSender registers an external address for the calling owner and
// sends the verification mail.
func (h *Handlers) RegisterSender(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	var req RegisterSenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "A valid email is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	sender, err := h.verifier.Register(c.Request.Context(), owner, req.Email)
	if err != nil {
		h.senderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterSenderResponse{
		ID:           sender.ID,
		EmailAddress: sender.EmailAddress,
		IsVerified:   sender.IsVerified,
	})
}

// ResendVerification reissues a verification token for a registered sender.
func (h *Handlers) ResendVerification(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.verifier.ResendVerification(c.Request.Context(), owner, id); err != nil {
		h.senderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Verification email sent"})
}

// RedeemMagicLink consumes a magic-link token. Invalid, expired and used
// tokens produce the same 400 response.
func (h *Handlers) RedeemMagicLink(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired token",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if err := h.verifier.Redeem(token); err != nil {
		if errors.Is(err, apperrors.ErrInvalidToken) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_token",
				Message: "Invalid or expired token",
				Code:    http.StatusBadRequest,
			})
			return
		}
		logrus.Errorf("Token redemption failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to redeem token",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email address verified"})
}

// RequestSenderDelete starts a sender deletion, returning a short-lived
// confirmation the owner must redeem.
func (h *Handlers) RequestSenderDelete(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	confirmation, err := h.verifier.RequestDelete(owner, id)
	if err != nil {
		h.senderError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, DeleteRequestResponse{
		ConfirmationID: confirmation.ID,
		ExpiresAt:      confirmation.ExpiresAt,
	})
}

// ConfirmSenderDelete redeems a delete confirmation and removes the sender.
func (h *Handlers) ConfirmSenderDelete(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req ConfirmDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "confirmationId is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if err := h.verifier.ConfirmDelete(owner, id, req.ConfirmationID); err != nil {
		h.senderError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// senderError maps verification-flow errors onto HTTP responses.
func (h *Handlers) senderError(c *gin.Context, err error) {
	if quota, ok := apperrors.AsQuotaExceeded(err); ok {
		c.JSON(http.StatusServiceUnavailable, QuotaExceededResponse{
			Error:     "mail_quota_exceeded",
			Message:   "Daily verification mail quota is exhausted",
			ResetTime: quota.ResetTime,
		})
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrSenderAlreadyRegistered):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "already_registered",
			Message: "Sender already registered for this owner",
			Code:    http.StatusConflict,
		})
	case errors.Is(err, apperrors.ErrSenderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Sender does not exist",
			Code:    http.StatusNotFound,
		})
	case errors.Is(err, apperrors.ErrConfirmationInvalid):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_confirmation",
			Message: "Invalid or expired confirmation",
			Code:    http.StatusBadRequest,
		})
	default:
		logrus.Errorf("Sender operation failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Unexpected error",
			Code:    http.StatusInternalServerError,
		})
	}
}
