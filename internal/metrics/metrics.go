package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	MessagesIngested  prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	SendersRejected   prometheus.Counter
	SentinelBlocks    prometheus.Counter
	ExtractionPath    *prometheus.CounterVec
	TasksCreated      prometheus.Counter
	FanOutFailures    prometheus.Counter
	MailSent          prometheus.Counter
	MailQuotaRejected prometheus.Counter
	PipelineDuration  prometheus.Histogram
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "task_ingest_messages_total",
			Help: "Total number of inbound messages accepted into the pipeline",
		}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "task_ingest_duplicates_skipped_total",
			Help: "Total number of messages skipped by the deduplication lock",
		}),
		SendersRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "task_ingest_senders_rejected_total",
			Help: "Total number of messages rejected because the sender is unverified",
		}),
		SentinelBlocks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "task_ingest_sentinel_blocks_total",
			Help: "Total number of messages the sentinel classified as malicious",
		}),
		ExtractionPath: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "task_ingest_extraction_path_total",
			Help: "Extraction outcomes by model path (primary, secondary, fallback)",
		}, []string{"path"}),
		TasksCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "task_ingest_tasks_created_total",
			Help: "Total number of task rows created by fan-out",
		}),
		FanOutFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "task_ingest_fanout_failures_total",
			Help: "Total number of per-owner persistence failures during fan-out",
		}),
		MailSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "task_ingest_mail_sent_total",
			Help: "Total number of verification mails handed to the provider",
		}),
		MailQuotaRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "task_ingest_mail_quota_rejected_total",
			Help: "Total number of sends refused because the daily quota was exhausted",
		}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "task_ingest_pipeline_duration_seconds",
			Help:    "Time spent processing one inbound message end to end",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
