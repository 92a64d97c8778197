// Package scheduler owns the background jobs: the polling safety net that
// drains the message source, Gmail watch renewal, and garbage collection of
// expired locks, tokens and confirmations.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"smart-task-ingest-go/internal/apperrors"
	"smart-task-ingest-go/internal/fetcher"
	"smart-task-ingest-go/internal/ingest"
	"smart-task-ingest-go/internal/model"
)

// Processor runs the ingestion pipeline for one message.
type Processor interface {
	Process(ctx context.Context, email model.InboundEmail) (*ingest.Outcome, error)
}

// Janitor sweeps rows past their windows. Correctness never depends on the
// sweep; it only keeps the tables small.
type Janitor interface {
	DeleteExpiredLocks(cutoff time.Time) error
	DeleteExpiredTokens(cutoff time.Time) error
	DeleteExpiredConfirmations(cutoff time.Time) error
}

// WatchRenewer re-registers the provider push watch before it lapses.
type WatchRenewer interface {
	RenewWatch(ctx context.Context) error
}

// Scheduler manages the periodic jobs and the on-demand drain triggered by
// push notifications.
type Scheduler struct {
	cron       *cron.Cron
	source     fetcher.Source
	processor  Processor
	janitor    Janitor
	renewer    WatchRenewer
	lockWindow time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	isRunning  bool
	mu         sync.RWMutex
}

// New creates a scheduler. renewer may be nil when the source has no push
// watch to maintain (IMAP polling).
func New(source fetcher.Source, processor Processor, janitor Janitor, renewer WatchRenewer, lockWindow time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		source:     source,
		processor:  processor,
		janitor:    janitor,
		renewer:    renewer,
		lockWindow: lockWindow,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start registers and starts the cron jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	// Polling safety net: push notifications are the fast path, this catches
	// anything they missed.
	if _, err := s.cron.AddFunc("0 */5 * * * *", s.drain); err != nil {
		return fmt.Errorf("failed to add drain job: %w", err)
	}

	if _, err := s.cron.AddFunc("0 0 * * * *", s.sweep); err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}

	if s.renewer != nil {
		if _, err := s.cron.AddFunc("0 0 3 * * *", s.renewWatch); err != nil {
			return fmt.Errorf("failed to add watch renewal job: %w", err)
		}
	}

	s.cron.Start()
	s.isRunning = true

	logrus.Info("Scheduler started")
	return nil
}

// Stop stops the cron scheduler and cancels in-flight jobs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()
	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Wait blocks until in-flight jobs have drained.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Notify triggers an asynchronous drain of the message source. Called by the
// push-notification handler; returns immediately.
func (s *Scheduler) Notify() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.drainOnce()
	}()
}

func (s *Scheduler) drain() {
	s.wg.Add(1)
	defer s.wg.Done()
	s.drainOnce()
}

// drainOnce fetches new messages and runs each through the pipeline.
// Rejections from the pipeline's own controls are skips, not errors.
func (s *Scheduler) drainOnce() {
	select {
	case <-s.ctx.Done():
		return
	default:
	}

	emails, err := s.source.FetchNew(s.ctx)
	if err != nil {
		logrus.Errorf("Failed to fetch messages: %v", err)
		return
	}

	if len(emails) == 0 {
		return
	}
	logrus.Infof("Fetched %d new messages", len(emails))

	for _, email := range emails {
		if _, err := s.processor.Process(s.ctx, email); err != nil {
			switch {
			case errors.Is(err, apperrors.ErrDuplicateMessage),
				errors.Is(err, apperrors.ErrSenderNotAuthorized),
				errors.Is(err, apperrors.ErrContentRejected):
				logrus.Infof("Skipped message %s: %v", email.MessageID, err)
			default:
				logrus.Errorf("Failed to process message %s: %v", email.MessageID, err)
			}
		}
	}
}

// sweep garbage-collects rows whose windows have passed.
func (s *Scheduler) sweep() {
	s.wg.Add(1)
	defer s.wg.Done()

	now := time.Now()
	if err := s.janitor.DeleteExpiredLocks(now.Add(-s.lockWindow)); err != nil {
		logrus.Errorf("Lock sweep failed: %v", err)
	}
	if err := s.janitor.DeleteExpiredTokens(now); err != nil {
		logrus.Errorf("Token sweep failed: %v", err)
	}
	if err := s.janitor.DeleteExpiredConfirmations(now); err != nil {
		logrus.Errorf("Confirmation sweep failed: %v", err)
	}
}

func (s *Scheduler) renewWatch() {
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.renewer.RenewWatch(s.ctx); err != nil {
		logrus.Errorf("Watch renewal failed: %v", err)
	}
}
