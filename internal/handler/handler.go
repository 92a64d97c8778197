package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"smart-task-ingest-go/internal/ingest"
	"smart-task-ingest-go/internal/scheduler"
	"smart-task-ingest-go/internal/verify"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db           *gorm.DB
	orchestrator *ingest.Orchestrator
	verifier     *verify.Service
	scheduler    *scheduler.Scheduler
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, orchestrator *ingest.Orchestrator, verifier *verify.Service, sched *scheduler.Scheduler) *Handlers {
	return &Handlers{
		db:           db,
		orchestrator: orchestrator,
		verifier:     verifier,
		scheduler:    sched,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/email-ingestion", h.IngestEmail)
	router.POST("/notifications", h.HandleNotification)
	router.GET("/verify-magic-link", h.RedeemMagicLink)

	senders := router.Group("/authorized-senders")
	{
		senders.POST("", h.RegisterSender)
		senders.POST("/:id/resend-verification", h.ResendVerification)
		senders.DELETE("/:id", h.RequestSenderDelete)
		senders.POST("/:id/confirm-delete", h.ConfirmSenderDelete)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Details:   make(map[string]string),
	}

	if err := h.db.Raw("SELECT 1").Error; err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if h.scheduler.IsRunning() {
		response.Details["scheduler"] = "running"
	} else {
		response.Details["scheduler"] = "stopped"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

// ownerID extracts the calling owner from the X-Owner-ID header. Session
// issuance is out of scope; an upstream gateway establishes the header.
func ownerID(c *gin.Context) (uint, bool) {
	raw := c.GetHeader("X-Owner-ID")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "owner_required",
			Message: "A valid X-Owner-ID header is required",
			Code:    http.StatusUnauthorized,
		})
		return 0, false
	}
	return uint(id), true
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid id",
			Code:    http.StatusBadRequest,
		})
		return 0, false
	}
	return uint(id), true
}
