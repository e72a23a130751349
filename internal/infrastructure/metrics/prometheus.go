// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ingestworker"

var (
	// CacheOperationsTotal tracks cache operations (get, set, delete).
	// Labels:
	//   - operation: get, set, delete
	//   - status: hit, miss, success, error
	//   - cache_type: redis
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// DBQueriesTotal tracks database queries.
	// Labels:
	//   - query_type: select, insert, update
	//   - table: ingest_jobs, videos, segments, occurrences, fine_unit
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_queries_total",
			Help:      "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)

	// IngestJobsTotal tracks ingestion job outcomes by terminal/transitional
	// status, one increment per job state change.
	// Labels:
	//   - status: queued, processing, done, error
	IngestJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_jobs_total",
			Help:      "Total number of ingest job state transitions, by status",
		},
		[]string{"status"},
	)

	// AnnotationLMCallDuration observes how long a single annotator's
	// language-model call (including its tool-call loop) takes.
	// Labels:
	//   - annotator: phrase, word
	AnnotationLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "annotation_lm_call_duration_seconds",
			Help:      "Duration of a single annotator's language model call",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"annotator"},
	)

	// PersistenceOccurrencesTotal tracks occurrence rows by how the upsert
	// resolved them.
	// Labels:
	//   - result: inserted, skipped
	PersistenceOccurrencesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_occurrences_total",
			Help:      "Total number of occurrence rows processed by SaveVideoAnalysis, by outcome",
		},
		[]string{"result"},
	)
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet    = "get"
	CacheOpSet    = "set"
	CacheOpDelete = "delete"
)

// Cache type constants.
const (
	CacheTypeRedis = "redis"
)

// DB query type constants.
const (
	DBQuerySelect = "select"
	DBQueryInsert = "insert"
	DBQueryUpdate = "update"
)

// Table name constants.
const (
	TableIngestJobs  = "ingest_jobs"
	TableVideos      = "videos"
	TableSegments    = "segments"
	TableOccurrences = "occurrences"
	TableFineUnit    = "fine_unit"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)

// Ingest job status constants, mirroring model.JobStatus.
const (
	IngestJobQueued     = "queued"
	IngestJobProcessing = "processing"
	IngestJobDone       = "done"
	IngestJobError      = "error"
)

// Persistence occurrence outcome constants.
const (
	PersistenceOccurrenceInserted = "inserted"
	PersistenceOccurrenceSkipped  = "skipped"
)
