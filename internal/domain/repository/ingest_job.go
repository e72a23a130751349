package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/videoannot/ingestworker/internal/domain/model"
)

// IngestJobRepository defines the interface for ingest job persistence.
// An ingest job is keyed on (object_key, content_hash) so that a redelivered
// ingress event is idempotent.
type IngestJobRepository interface {
	// FindOrCreate looks up an existing job by (object_key, content_hash) or
	// inserts a new one atomically. The bool return is true when an existing
	// row was found.
	FindOrCreate(ctx context.Context, job *model.IngestJob) (*model.IngestJob, bool, error)

	GetByID(ctx context.Context, id uuid.UUID) (*model.IngestJob, error)

	Update(ctx context.Context, job *model.IngestJob) error

	// ListAbandoned returns jobs stuck in "processing" past the given
	// timeout, for the reaper to reset back to "queued".
	ListAbandoned(ctx context.Context, timeout time.Duration) ([]*model.IngestJob, error)
}
