package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/videoannot/ingestworker/internal/domain/model"
	"github.com/videoannot/ingestworker/internal/domain/repository"
	"github.com/videoannot/ingestworker/internal/infrastructure/metrics"
	"github.com/videoannot/ingestworker/internal/infrastructure/tracing"
)

var persistenceTracer = tracing.Tracer("ingestworker/persistence")

// PersistenceStats reports what a save did, for the success notification and
// for tests.
type PersistenceStats struct {
	SegmentsInserted    int
	OccurrencesInserted int
	OccurrencesSkipped  int
}

// PersistenceService saves a video's transcript segments and their
// annotation occurrences. Segments are upserted first so occurrences can
// carry real segment IDs.
type PersistenceService struct {
	segments    repository.SegmentRepository
	occurrences repository.OccurrenceRepository
	tx          repository.Transactor
}

func NewPersistenceService(segments repository.SegmentRepository, occurrences repository.OccurrenceRepository, tx repository.Transactor) *PersistenceService {
	return &PersistenceService{segments: segments, occurrences: occurrences, tx: tx}
}

// SaveVideoAnalysis persists segments and the occurrences produced against
// them. occurrencesBySegmentIndex maps a segment's index in segments to the
// occurrences annotated for it (SegmentID is not yet populated on those
// occurrences; it's filled in here once the segment upsert returns real IDs).
func (s *PersistenceService) SaveVideoAnalysis(ctx context.Context, videoID uuid.UUID, segments []*model.Segment, occurrencesBySegmentIndex map[int][]*model.Occurrence) (PersistenceStats, error) {
	ctx, span := persistenceTracer.Start(ctx, "persistence.save_video_analysis")
	defer span.End()
	span.SetAttributes(attribute.String("video_id", videoID.String()), attribute.Int("segment_count", len(segments)))

	for _, seg := range segments {
		seg.VideoID = videoID
	}

	var stats PersistenceStats

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		persisted, err := s.segments.UpsertBatch(ctx, segments)
		if err != nil {
			return fmt.Errorf("upsert segments: %w", err)
		}

		var allOccurrences []*model.Occurrence
		for idx, seg := range persisted {
			for _, occ := range occurrencesBySegmentIndex[idx] {
				occ.SegmentID = seg.ID
				allOccurrences = append(allOccurrences, occ)
			}
		}

		inserted, skipped, err := s.occurrences.UpsertBatch(ctx, allOccurrences)
		if err != nil {
			return fmt.Errorf("upsert occurrences: %w", err)
		}

		stats = PersistenceStats{
			SegmentsInserted:    len(persisted),
			OccurrencesInserted: inserted,
			OccurrencesSkipped:  skipped,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return PersistenceStats{}, err
	}

	metrics.PersistenceOccurrencesTotal.WithLabelValues(metrics.PersistenceOccurrenceInserted).Add(float64(stats.OccurrencesInserted))
	metrics.PersistenceOccurrencesTotal.WithLabelValues(metrics.PersistenceOccurrenceSkipped).Add(float64(stats.OccurrencesSkipped))

	return stats, nil
}
