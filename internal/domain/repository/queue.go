package repository

import (
	"context"

	"github.com/google/uuid"
)

// FailedIngestTask is published to the dead-letter queue when an ingest job
// exhausts its retries. It exists for operator replay; the HTTP ingress path
// never waits on it and never retries automatically itself.
type FailedIngestTask struct {
	JobID       uuid.UUID `json:"job_id"`
	VideoUID    string    `json:"video_uid"`
	ObjectKey   string    `json:"object_key"`
	ContentHash string    `json:"content_hash"`
	RetryCount  int       `json:"retry_count"`
	Err         string    `json:"error"`
}

// DeadLetterQueue defines the interface for publishing/consuming failed
// ingest jobs for operator inspection and manual replay.
type DeadLetterQueue interface {
	// PublishFailed sends a failed job to the dead-letter queue.
	PublishFailed(ctx context.Context, task FailedIngestTask) error

	// ConsumeFailed starts consuming failed jobs. handler is invoked per
	// message; used by a replay tool, not by the ingestion path itself.
	ConsumeFailed(ctx context.Context, handler func(task FailedIngestTask) error) error

	Close() error
}
