package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/videoannot/ingestworker/internal/domain/model"
)

// VideoRepository defines the interface for video persistence operations.
// Implementations should be provided by the infrastructure layer (e.g., PostgreSQL).
type VideoRepository interface {
	// Create persists a new video entity.
	Create(ctx context.Context, video *model.Video) error

	// GetByID retrieves a video by its unique identifier.
	// Returns ErrVideoNotFound if the video does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error)

	// GetByVideoUID retrieves a video by its derived/embedded video_uid.
	// Returns ErrVideoNotFound if the video does not exist.
	GetByVideoUID(ctx context.Context, videoUID string) (*model.Video, error)

	// Update persists changes to an existing video entity.
	// Returns ErrVideoNotFound if the video does not exist.
	Update(ctx context.Context, video *model.Video) error
}
