package repository

import (
	"context"

	"github.com/videoannot/ingestworker/internal/domain/model"
)

// OccurrenceRepository defines the interface for fine-unit occurrence
// persistence.
type OccurrenceRepository interface {
	// UpsertBatch inserts occurrences, doing nothing on conflict of
	// (segment_id, fine_id, evidence span). A foreign-key violation against
	// fine_id is tolerated and skipped rather than aborting the batch.
	// Returns counts of inserted and skipped rows, plus the first
	// non-FK-violation, non-conflict error encountered (if any); the
	// transaction this batch runs in must be rolled back by the caller when
	// that error is non-nil.
	UpsertBatch(ctx context.Context, occurrences []*model.Occurrence) (inserted, skipped int, err error)
}
