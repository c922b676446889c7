package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Queue metrics
	QueueDepth     prometheus.Gauge
	QueueEnqueued  prometheus.Counter
	QueueDequeued  prometheus.Counter
	QueueCompleted prometheus.Counter
	QueueFailed    prometheus.Counter

	// Run metrics
	RunsTotal   prometheus.Counter
	RunsFailed  prometheus.Counter
	RunDuration prometheus.Histogram

	// Record metrics
	RecordsProcessed prometheus.Counter
	RecordsSkipped   *prometheus.CounterVec
	RecordsMatched   prometheus.Counter

	// Match cache metrics
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	CacheReadFailures  prometheus.Counter
	CacheWriteFailures prometheus.Counter

	// Corpus metrics
	CorpusQueries       *prometheus.CounterVec
	CorpusQueryDuration *prometheus.HistogramVec

	// Worker metrics
	ActiveWorkers prometheus.Gauge
	BatchesTotal  *prometheus.CounterVec
	BatchRetries  prometheus.Counter
	BatchDuration prometheus.Histogram
	WorkerErrors  prometheus.Counter

	// Resolver metrics
	EntitiesResolved *prometheus.CounterVec
	EntitiesDropped  prometheus.Counter

	// Session metrics
	SessionsCreated prometheus.Counter
	SessionsExpired prometheus.Counter

	// Policy metrics
	PolicyPassed prometheus.Counter
	PolicyFailed prometheus.Counter
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "swaudit_queue_depth",
				Help: "Current number of batches waiting in the queue",
			}),
			QueueEnqueued: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_queue_enqueued_total",
				Help: "Total number of batches enqueued",
			}),
			QueueDequeued: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_queue_dequeued_total",
				Help: "Total number of batches dequeued",
			}),
			QueueCompleted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_queue_completed_total",
				Help: "Total number of batches completed successfully",
			}),
			QueueFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_queue_failed_total",
				Help: "Total number of batches that failed",
			}),

			RunsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_runs_total",
				Help: "Total number of matching runs started",
			}),
			RunsFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_runs_failed_total",
				Help: "Total number of matching runs that produced no report",
			}),
			RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "swaudit_run_duration_seconds",
				Help:    "Duration of matching runs in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7min
			}),

			RecordsProcessed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_records_processed_total",
				Help: "Total number of inventory records processed",
			}),
			RecordsSkipped: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "swaudit_records_skipped_total",
					Help: "Total number of inventory records that contributed no match",
				},
				[]string{"reason"}, // empty_name, no_candidates, no_corpus_match, no_valid_tier
			),
			RecordsMatched: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_records_matched_total",
				Help: "Total number of inventory records with a valid match",
			}),

			CacheHits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_cache_hits_total",
				Help: "Total number of match cache hits",
			}),
			CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_cache_misses_total",
				Help: "Total number of match cache misses",
			}),
			CacheReadFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_cache_read_failures_total",
				Help: "Total number of match cache reads that failed and were treated as misses",
			}),
			CacheWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_cache_write_failures_total",
				Help: "Total number of match cache writes that failed",
			}),

			CorpusQueries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "swaudit_corpus_queries_total",
					Help: "Total number of vulnerability corpus queries by kind",
				},
				[]string{"kind"}, // patterns, entity
			),
			CorpusQueryDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "swaudit_corpus_query_duration_seconds",
					Help:    "Duration of vulnerability corpus queries in seconds",
					Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
				},
				[]string{"kind"},
			),

			ActiveWorkers: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "swaudit_active_workers",
				Help: "Current number of running batch workers",
			}),
			BatchesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "swaudit_batches_total",
					Help: "Total number of batches by outcome",
				},
				[]string{"outcome"}, // success, failure
			),
			BatchRetries: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_batch_retries_total",
				Help: "Total number of batch retries after transient failures",
			}),
			BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "swaudit_batch_duration_seconds",
				Help:    "Duration of batch processing in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			}),
			WorkerErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_worker_errors_total",
				Help: "Total number of worker errors",
			}),

			EntitiesResolved: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "swaudit_entities_resolved_total",
					Help: "Total number of entities resolved by the capitalization variant that hit",
				},
				[]string{"variant"}, // original, capitalized, upper, title
			),
			EntitiesDropped: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_entities_dropped_total",
				Help: "Total number of entities with no vulnerability records under any variant",
			}),

			SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_sessions_created_total",
				Help: "Total number of audit sessions created",
			}),
			SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_sessions_expired_total",
				Help: "Total number of audit sessions removed after expiry",
			}),

			PolicyPassed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_policy_passed_total",
				Help: "Total number of reports that passed policy evaluation",
			}),
			PolicyFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "swaudit_policy_failed_total",
				Help: "Total number of reports that failed policy evaluation",
			}),
		}
	})
	return metricsInstance
}
