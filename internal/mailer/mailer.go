// Package mailer sends transactional verification mail through a provider,
// refusing to send once the daily quota is exhausted. The ledger row count
// inside the current UTC calendar day is the authoritative quota counter.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"smart-task-ingest-go/internal/apperrors"
	"smart-task-ingest-go/internal/metrics"
	"smart-task-ingest-go/internal/model"
)

// Mail purposes recorded in the ledger.
const (
	PurposeVerification = "sender_verification"
)

// Provider is the transactional mail provider.
type Provider interface {
	Send(ctx context.Context, recipient, subject, htmlBody string) error
}

// Ledger is the persistence surface the mailer needs.
type Ledger interface {
	CountMailBetween(start, end time.Time) (int64, error)
	RecordMail(record *model.OutboundMailRecord) error
}

// Mailer enforces the daily quota in front of the provider.
type Mailer struct {
	provider Provider
	ledger   Ledger
	quota    int
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates a rate-limited mailer with the given daily quota.
func New(provider Provider, ledger Ledger, quota int, m *metrics.Metrics) *Mailer {
	return &Mailer{
		provider: provider,
		ledger:   ledger,
		quota:    quota,
		metrics:  m,
		now:      time.Now,
	}
}

// CheckQuota returns a QuotaExceededError carrying the next UTC midnight when
// today's send count has reached the quota.
func (m *Mailer) CheckQuota() error {
	start, end := utcDayBounds(m.now())

	count, err := m.ledger.CountMailBetween(start, end)
	if err != nil {
		return err
	}

	if count >= int64(m.quota) {
		return &apperrors.QuotaExceededError{ResetTime: end}
	}
	return nil
}

// Send checks the quota, calls the provider, and records one ledger row
// reflecting the outcome. Provider failure is recorded and then propagated;
// quota exhaustion never reaches the provider; a failed ledger write after a
// successful send is surfaced as an error too.
func (m *Mailer) Send(ctx context.Context, recipient, subject, htmlBody, purpose string) error {
	if err := m.CheckQuota(); err != nil {
		if _, ok := apperrors.AsQuotaExceeded(err); ok {
			m.metrics.MailQuotaRejected.Inc()
		}
		return err
	}

	sendErr := m.provider.Send(ctx, recipient, subject, htmlBody)
	if sendErr == nil {
		m.metrics.MailSent.Inc()
	}

	status := model.MailStatusSent
	if sendErr != nil {
		status = model.MailStatusFailed
	}

	record := &model.OutboundMailRecord{
		SentAt:    m.now(),
		Purpose:   purpose,
		Recipient: recipient,
		Status:    status,
	}
	if err := m.ledger.RecordMail(record); err != nil {
		logrus.Errorf("Failed to record mail ledger row for %s: %v", recipient, err)
		// A missing row would under-count the quota. Surface the failure so
		// the attempt is not treated as a clean send.
		if sendErr == nil {
			return fmt.Errorf("mail sent but ledger row not recorded: %w", err)
		}
	}

	return sendErr
}

// utcDayBounds returns [start of current UTC day, start of next UTC day).
func utcDayBounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
