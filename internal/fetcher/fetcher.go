// Package fetcher retrieves new inbound messages for the ingestion mailbox,
// either through the Gmail API (history-cursor based, driven by push
// notifications) or through IMAP polling.
package fetcher

import (
	"context"

	"smart-task-ingest-go/internal/model"
)

// Source yields inbound messages not yet handed to the pipeline. The
// pipeline's message lock, not the source, is what guarantees idempotency:
// a source may deliver the same message more than once.
type Source interface {
	FetchNew(ctx context.Context) ([]model.InboundEmail, error)
	Close() error
}
