package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/videoannot/ingestworker/internal/domain/model"
	"github.com/videoannot/ingestworker/internal/domain/repository"
	"github.com/videoannot/ingestworker/internal/infrastructure/metrics"
)

// SegmentRepository implements repository.SegmentRepository using
// PostgreSQL. Upserts rely on a unique index over (video_id, t_start, text).
type SegmentRepository struct {
	db DBTX
}

func NewSegmentRepository(db DBTX) *SegmentRepository {
	return &SegmentRepository{db: db}
}

// UpsertBatch inserts each segment, updating t_end on a conflict of
// (video_id, t_start, text), and returns the rows with their persisted IDs
// in the same order as the input.
func (r *SegmentRepository) UpsertBatch(ctx context.Context, segments []*model.Segment) ([]*model.Segment, error) {
	const query = `
		INSERT INTO segments (id, video_id, "index", t_start, t_end, text, lang, meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (video_id, t_start, text) DO UPDATE SET t_end = EXCLUDED.t_end, updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	db := dbFrom(ctx, r.db)

	persisted := make([]*model.Segment, len(segments))
	for i, seg := range segments {
		var id uuid.UUID
		err := db.QueryRow(ctx, query,
			seg.ID, seg.VideoID, seg.Index, seg.TStart, seg.TEnd, seg.Text, seg.Lang, seg.Meta, seg.CreatedAt, seg.UpdatedAt,
		).Scan(&id)
		metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryInsert, metrics.TableSegments).Inc()
		if err != nil {
			return nil, fmt.Errorf("upsert segment %d: %w", seg.Index, err)
		}

		cp := *seg
		cp.ID = id
		persisted[i] = &cp
	}

	return persisted, nil
}

func (r *SegmentRepository) ListByVideoID(ctx context.Context, videoID uuid.UUID) ([]*model.Segment, error) {
	const query = `
		SELECT id, video_id, "index", t_start, t_end, text, lang, meta, created_at, updated_at
		FROM segments
		WHERE video_id = $1
		ORDER BY t_start
	`

	rows, err := r.db.Query(ctx, query, videoID)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableSegments).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	var segments []*model.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating segments: %w", err)
	}
	return segments, nil
}

func scanSegment(rows pgx.Rows) (*model.Segment, error) {
	var seg model.Segment
	err := rows.Scan(
		&seg.ID, &seg.VideoID, &seg.Index, &seg.TStart, &seg.TEnd, &seg.Text, &seg.Lang, &seg.Meta,
		&seg.CreatedAt, &seg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &seg, nil
}

var _ repository.SegmentRepository = (*SegmentRepository)(nil)
