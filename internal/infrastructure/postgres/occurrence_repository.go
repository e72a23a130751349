package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/videoannot/ingestworker/internal/domain/model"
	"github.com/videoannot/ingestworker/internal/domain/repository"
	"github.com/videoannot/ingestworker/internal/infrastructure/metrics"
)

const pgForeignKeyViolation = "23503"

// OccurrenceRepository implements repository.OccurrenceRepository using
// PostgreSQL. Rows are inserted one at a time rather than as a single
// multi-row statement so a foreign-key violation on one row can be skipped
// without discarding the rest of the batch.
type OccurrenceRepository struct {
	db DBTX
}

func NewOccurrenceRepository(db DBTX) *OccurrenceRepository {
	return &OccurrenceRepository{db: db}
}

// UpsertBatch inserts occurrences, doing nothing on conflict of
// (segment_id, fine_id, span_start, span_end). A foreign-key violation
// against fine_id is tolerated and skipped. The first other error aborts
// and is returned; the caller is expected to roll back its transaction.
func (r *OccurrenceRepository) UpsertBatch(ctx context.Context, occurrences []*model.Occurrence) (int, int, error) {
	const query = `
		INSERT INTO occurrences (id, segment_id, fine_id, reliability_score, detection_method, ontology_version,
			span_start, span_end, rationale, visual_comprehensibility, textual_comprehensibility, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (segment_id, fine_id, span_start, span_end) DO NOTHING
	`

	db := dbFrom(ctx, r.db)

	var inserted, skipped int

	for _, occ := range occurrences {
		tag, err := db.Exec(ctx, query,
			occ.ID, occ.SegmentID, occ.FineID, occ.ReliabilityScore, occ.DetectionMethod, occ.OntologyVersion,
			occ.Evidence.Span.Start, occ.Evidence.Span.End, occ.Evidence.Rationale,
			occ.Evidence.VisualComprehensibility, occ.Evidence.TextualComprehensibility, occ.CreatedAt,
		)
		metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryInsert, metrics.TableOccurrences).Inc()
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
				skipped++
				continue
			}
			return inserted, skipped, fmt.Errorf("insert occurrence for fine_id %d: %w", occ.FineID, err)
		}

		if tag.RowsAffected() == 0 {
			skipped++
		} else {
			inserted++
		}
	}

	return inserted, skipped, nil
}

var _ repository.OccurrenceRepository = (*OccurrenceRepository)(nil)
