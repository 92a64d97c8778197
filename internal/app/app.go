package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"smart-task-ingest-go/internal/config"
	"smart-task-ingest-go/internal/db"
	"smart-task-ingest-go/internal/fetcher"
	"smart-task-ingest-go/internal/handler"
	"smart-task-ingest-go/internal/ingest"
	"smart-task-ingest-go/internal/llm"
	"smart-task-ingest-go/internal/mailer"
	"smart-task-ingest-go/internal/metrics"
	"smart-task-ingest-go/internal/repository"
	"smart-task-ingest-go/internal/scheduler"
	"smart-task-ingest-go/internal/verify"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Smart Task Ingest Service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dbConn, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.NewMetrics()
	repo := repository.New(dbConn)

	// Message source: Gmail push/history by default, IMAP polling as the
	// alternative.
	var source fetcher.Source
	var renewer scheduler.WatchRenewer
	if cfg.Gmail.UseIMAP {
		source, err = fetcher.NewIMAPSource(&cfg.Gmail)
		if err != nil {
			return fmt.Errorf("failed to create IMAP source: %w", err)
		}
		logrus.Info("Using IMAP for message fetching")
	} else {
		gmailSource, err := fetcher.NewGmailSource(&cfg.Gmail, repo)
		if err != nil {
			return fmt.Errorf("failed to create Gmail source: %w", err)
		}
		source = gmailSource
		renewer = gmailSource
		logrus.Info("Using Gmail API for message fetching")
	}

	llmClient := llm.NewClient(&cfg.LLM)
	sentinel := llm.NewSentinel(llmClient, cfg.LLM.SentinelModel, cfg.LLM.SentinelTimeout)
	extractor := llm.NewExtractor(llmClient,
		cfg.LLM.PrimaryModel, cfg.LLM.SecondaryModel,
		cfg.LLM.PrimaryTimeout, cfg.LLM.SecondaryTimeout)

	orchestrator := ingest.New(repo, sentinel, extractor, m, cfg.Ingest.LockWindow)

	mailProvider, err := mailer.NewGmailProvider(&cfg.Gmail)
	if err != nil {
		return fmt.Errorf("failed to create mail provider: %w", err)
	}
	rateLimited := mailer.New(mailProvider, repo, cfg.Ingest.DailyMailQuota, m)

	verifier := verify.NewService(repo, rateLimited,
		cfg.Ingest.TokenTTL, cfg.Ingest.ConfirmationTTL, cfg.Ingest.BaseURL)

	sched := scheduler.New(source, orchestrator, repo, renewer, cfg.Ingest.LockWindow)

	handlers := handler.NewHandlers(dbConn, orchestrator, verifier, sched)
	router := setupRouter(handlers)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := source.Close(); err != nil {
		logrus.Errorf("Failed to close message source: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}

// setupRouter sets up the HTTP router with middleware
func setupRouter(handlers *handler.Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware())

	handlers.SetupRoutes(router)
	return router
}

// loggerMiddleware adds logging middleware
func loggerMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	})
}
