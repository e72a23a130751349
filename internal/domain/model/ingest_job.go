package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of an IngestJob.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobError      JobStatus = "error"
)

func (s JobStatus) String() string {
	return string(s)
}

var ErrEmptyObjectKey = errors.New("object_key cannot be empty")
var ErrEmptyContentHash = errors.New("content_hash cannot be empty")

// IngestJob tracks exactly one ingestion attempt keyed by the unique pair
// (object_key, content_hash). It is the single serialization point for
// idempotency: concurrent deliveries of the same key race on its unique
// insert, and the loser follows the rules in IngestController.
type IngestJob struct {
	ID          uuid.UUID
	ObjectKey   string
	ContentHash string
	VideoUID    string
	VideoID     uuid.UUID
	Status      JobStatus
	RetryCount  int
	StartedAt   *time.Time
	FinishedAt  *time.Time
	Err         *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewIngestJob creates a job row in the processing state, as inserted on
// first sighting of an (object_key, content_hash) pair.
func NewIngestJob(objectKey, contentHash, videoUID string, videoID uuid.UUID) (*IngestJob, error) {
	if objectKey == "" {
		return nil, ErrEmptyObjectKey
	}
	if contentHash == "" {
		return nil, ErrEmptyContentHash
	}

	now := time.Now()
	started := now
	return &IngestJob{
		ID:          uuid.New(),
		ObjectKey:   objectKey,
		ContentHash: contentHash,
		VideoUID:    videoUID,
		VideoID:     videoID,
		Status:      JobProcessing,
		StartedAt:   &started,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsAbandoned reports whether a processing job has exceeded the processing
// timeout and should be reset to queued.
func (j *IngestJob) IsAbandoned(now time.Time, timeout time.Duration) bool {
	if j.Status != JobProcessing || j.StartedAt == nil {
		return false
	}
	return now.Sub(*j.StartedAt) >= timeout
}

// ResetAbandoned transitions an abandoned processing job back to queued,
// bumping retry_count, per the idempotency-check timeout rule.
func (j *IngestJob) ResetAbandoned() {
	j.Status = JobQueued
	j.StartedAt = nil
	j.RetryCount++
	j.UpdatedAt = time.Now()
}

// MarkProcessing transitions a queued/errored job back into processing,
// used when a previously abandoned or failed job is retried.
func (j *IngestJob) MarkProcessing() {
	now := time.Now()
	j.Status = JobProcessing
	j.StartedAt = &now
	j.UpdatedAt = now
}

// MarkDone finalizes a successfully completed job.
func (j *IngestJob) MarkDone() {
	now := time.Now()
	j.Status = JobDone
	j.FinishedAt = &now
	j.UpdatedAt = now
}

// MarkError finalizes a fatally failed job, recording the error message.
func (j *IngestJob) MarkError(message string) {
	now := time.Now()
	j.Status = JobError
	j.Err = &message
	j.FinishedAt = &now
	j.UpdatedAt = now
}
