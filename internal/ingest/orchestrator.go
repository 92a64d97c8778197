// Package ingest sequences the per-message pipeline: sender authorization,
// deduplication, sanitization, sentinel classification, extraction,
// validation and fan-out persistence. The claimed sender, the message body
// and the model output are all untrusted until deterministic application
// logic has validated them.
package ingest

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"smart-task-ingest-go/internal/apperrors"
	"smart-task-ingest-go/internal/llm"
	"smart-task-ingest-go/internal/metrics"
	"smart-task-ingest-go/internal/model"
	"smart-task-ingest-go/internal/sanitize"
	"smart-task-ingest-go/internal/validate"
)

// Store is the persistence surface the orchestrator needs.
type Store interface {
	VerifiedOwnerIDs(email string) ([]uint, error)
	IsLocked(messageID string, cutoff time.Time) (bool, error)
	AcquireLock(messageID string, now time.Time) error
	CreateTask(task *model.Task) error
	UpdateTaskForOwner(ownerID, taskID uint, updates map[string]interface{}) (bool, error)
}

// Classifier is the sentinel verdict call.
type Classifier interface {
	IsMalicious(ctx context.Context, content string) bool
}

// Engine is the two-tier extraction invocation.
type Engine interface {
	Extract(ctx context.Context, content string) llm.ExtractionResult
}

// Model path label reported when the deterministic safe task was used.
const PathFallback = "fallback"

// TaskOutcome is one persisted effect of processing, per (task, owner) pair.
type TaskOutcome struct {
	OwnerID  uint   `json:"owner_id"`
	TaskID   uint   `json:"task_id,omitempty"`
	TaskName string `json:"task_name"`
	Action   string `json:"action"` // created, updated, skipped
}

// Outcome summarizes one processed message.
type Outcome struct {
	ModelPath string        `json:"model_path"` // primary, secondary, fallback
	Tasks     []TaskOutcome `json:"tasks"`
}

// Orchestrator runs the pipeline for one inbound message at a time. Multiple
// orchestrator invocations may run concurrently; the relational store's
// uniqueness constraints are the only shared guard.
type Orchestrator struct {
	store      Store
	sentinel   Classifier
	extractor  Engine
	validator  *validate.Validator
	metrics    *metrics.Metrics
	lockWindow time.Duration
	now        func() time.Time
}

// New creates an ingestion orchestrator.
func New(store Store, sentinel Classifier, extractor Engine, m *metrics.Metrics, lockWindow time.Duration) *Orchestrator {
	return &Orchestrator{
		store:      store,
		sentinel:   sentinel,
		extractor:  extractor,
		validator:  validate.New(),
		metrics:    m,
		lockWindow: lockWindow,
		now:        time.Now,
	}
}

// Process runs the full pipeline for one inbound message.
//
// Error taxonomy: ErrSenderNotAuthorized and ErrDuplicateMessage reject
// before any model cost; ErrContentRejected aborts after the sentinel;
// model failures degrade to the safe fallback and are never surfaced as
// errors; only persistence failures propagate as generic errors.
func (o *Orchestrator) Process(ctx context.Context, email model.InboundEmail) (*Outcome, error) {
	start := o.now()

	senderAddr := normalizeAddress(email.Sender)

	owners, err := o.store.VerifiedOwnerIDs(senderAddr)
	if err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		o.metrics.SendersRejected.Inc()
		logrus.Infof("Rejected message from unverified sender")
		return nil, apperrors.ErrSenderNotAuthorized
	}

	// Messages without an id skip deduplication entirely.
	if email.MessageID != "" {
		locked, err := o.store.IsLocked(email.MessageID, start.Add(-o.lockWindow))
		if err != nil {
			return nil, err
		}
		if locked {
			o.metrics.DuplicatesSkipped.Inc()
			logrus.Infof("Skipping duplicate message %s", email.MessageID)
			return nil, apperrors.ErrDuplicateMessage
		}
	}

	subject := sanitize.Clean(email.Subject)
	body := email.Body
	if body == "" && email.HTMLBody != "" {
		body = email.HTMLBody
	}
	body = sanitize.Clean(body)

	content := "Subject: " + subject + "\n\n" + body

	if o.sentinel.IsMalicious(ctx, content) {
		o.metrics.SentinelBlocks.Inc()
		logrus.Warnf("Sentinel blocked message %s", email.MessageID)
		return nil, apperrors.ErrContentRejected
	}

	// The expensive sentinel/extraction/validation work happens exactly once
	// per message; only persistence fans out below.
	extraction := o.extractor.Extract(ctx, content)

	tasks, path := o.decide(extraction, senderAddr, subject)
	o.metrics.ExtractionPath.WithLabelValues(path).Inc()

	outcome := &Outcome{ModelPath: path}
	originalRequest := validate.OriginalRequest(subject, body)

	// Fan-out: one write per (task, owner) pair, each owner independent.
	// A failed owner never rolls back the others.
	for _, task := range tasks {
		for _, ownerID := range owners {
			result := o.persist(ownerID, task, originalRequest, email.MessageID)
			outcome.Tasks = append(outcome.Tasks, result)
		}
	}

	if email.MessageID != "" {
		if err := o.store.AcquireLock(email.MessageID, o.now()); err != nil {
			return nil, err
		}
	}

	o.metrics.MessagesIngested.Inc()
	o.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	return outcome, nil
}

// decide turns the raw extraction into validated tasks, substituting the
// deterministic safe fallback whenever the engine produced nothing or its
// output violates the schema. The fallback never mutates an existing record.
func (o *Orchestrator) decide(extraction llm.ExtractionResult, sender, subject string) ([]validate.ExtractedTask, string) {
	if extraction.Path == llm.PathNone {
		return []validate.ExtractedTask{validate.SafeFallback(sender, subject)}, PathFallback
	}

	result := o.validator.Extraction(extraction.Raw)
	if !result.Valid {
		logrus.Warnf("Extraction output rejected (%s), using safe fallback", result.Reason)
		return []validate.ExtractedTask{validate.SafeFallback(sender, subject)}, PathFallback
	}

	return result.Tasks, extraction.Path
}

// persist applies one validated task for one owner.
func (o *Orchestrator) persist(ownerID uint, task validate.ExtractedTask, originalRequest, messageID string) TaskOutcome {
	outcome := TaskOutcome{OwnerID: ownerID, TaskName: task.TaskName}

	switch task.Intent {
	case validate.IntentCreate:
		row := &model.Task{
			OwnerID:         ownerID,
			TaskName:        task.TaskName,
			DueDate:         task.DueDate,
			OriginalRequest: originalRequest,
		}
		if messageID != "" {
			row.MessageID = &messageID
		}
		if err := o.store.CreateTask(row); err != nil {
			o.metrics.FanOutFailures.Inc()
			logrus.Errorf("Failed to create task for owner %d: %v", ownerID, err)
			outcome.Action = "skipped"
			return outcome
		}
		o.metrics.TasksCreated.Inc()
		outcome.TaskID = row.ID
		outcome.Action = "created"

	case validate.IntentEdit, validate.IntentComplete:
		updates := map[string]interface{}{}
		if task.Intent == validate.IntentComplete {
			updates["is_completed"] = true
		} else {
			updates["task_name"] = task.TaskName
			if task.DueDate != nil {
				updates["due_date"] = *task.DueDate
			}
		}
		// Owner-scoped update: a target id pointing at someone else's task
		// matches nothing.
		matched, err := o.store.UpdateTaskForOwner(ownerID, *task.TargetTaskID, updates)
		if err != nil {
			o.metrics.FanOutFailures.Inc()
			logrus.Errorf("Failed to update task %d for owner %d: %v", *task.TargetTaskID, ownerID, err)
			outcome.Action = "skipped"
			return outcome
		}
		if !matched {
			outcome.Action = "skipped"
			return outcome
		}
		outcome.TaskID = *task.TargetTaskID
		outcome.Action = "updated"
	}

	return outcome
}

// normalizeAddress reduces a From header to a bare lowercase address.
func normalizeAddress(sender string) string {
	if addr, err := mail.ParseAddress(sender); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(strings.TrimSpace(sender))
}
