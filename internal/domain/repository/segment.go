package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/videoannot/ingestworker/internal/domain/model"
)

// SegmentRepository defines the interface for transcript segment persistence.
type SegmentRepository interface {
	// UpsertBatch inserts segments for a video, updating t_end on conflict of
	// (video_id, t_start, text). Returns the persisted rows with IDs populated,
	// in the same order as the input.
	UpsertBatch(ctx context.Context, segments []*model.Segment) ([]*model.Segment, error)

	ListByVideoID(ctx context.Context, videoID uuid.UUID) ([]*model.Segment, error)
}
