package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/videoannot/ingestworker/internal/domain/model"
	"github.com/videoannot/ingestworker/internal/domain/repository"
	"github.com/videoannot/ingestworker/internal/infrastructure/metrics"
)

// IngestJobRepository implements repository.IngestJobRepository using
// PostgreSQL. The unique index on (object_key, content_hash) is what makes
// FindOrCreate race-safe across concurrent redeliveries of the same event.
type IngestJobRepository struct {
	db DBTX
}

func NewIngestJobRepository(db DBTX) *IngestJobRepository {
	return &IngestJobRepository{db: db}
}

// FindOrCreate inserts job, or returns the existing row on a unique
// violation of (object_key, content_hash).
func (r *IngestJobRepository) FindOrCreate(ctx context.Context, job *model.IngestJob) (*model.IngestJob, bool, error) {
	const insert = `
		INSERT INTO ingest_jobs (id, object_key, content_hash, video_uid, video_id, status, retry_count, started_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, insert,
		job.ID, job.ObjectKey, job.ContentHash, job.VideoUID, job.VideoID,
		job.Status.String(), job.RetryCount, job.StartedAt, job.CreatedAt, job.UpdatedAt,
	)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryInsert, metrics.TableIngestJobs).Inc()
	if err == nil {
		return job, false, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil, false, fmt.Errorf("failed to create ingest job: %w", err)
	}

	const selectExisting = `
		SELECT id, object_key, content_hash, video_uid, video_id, status, retry_count, started_at, finished_at, err, created_at, updated_at
		FROM ingest_jobs
		WHERE object_key = $1 AND content_hash = $2
	`

	existing, err := r.scan(r.db.QueryRow(ctx, selectExisting, job.ObjectKey, job.ContentHash))
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableIngestJobs).Inc()
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing ingest job: %w", err)
	}

	return existing, true, nil
}

func (r *IngestJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.IngestJob, error) {
	const query = `
		SELECT id, object_key, content_hash, video_uid, video_id, status, retry_count, started_at, finished_at, err, created_at, updated_at
		FROM ingest_jobs
		WHERE id = $1
	`

	job, err := r.scan(r.db.QueryRow(ctx, query, id))
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableIngestJobs).Inc()
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrIngestJobNotFound
		}
		return nil, fmt.Errorf("failed to get ingest job: %w", err)
	}
	return job, nil
}

func (r *IngestJobRepository) Update(ctx context.Context, job *model.IngestJob) error {
	const query = `
		UPDATE ingest_jobs
		SET status = $2, retry_count = $3, started_at = $4, finished_at = $5, err = $6, updated_at = $7
		WHERE id = $1
	`

	job.UpdatedAt = time.Now()

	tag, err := r.db.Exec(ctx, query,
		job.ID, job.Status.String(), job.RetryCount, job.StartedAt, job.FinishedAt, job.Err, job.UpdatedAt,
	)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpdate, metrics.TableIngestJobs).Inc()
	if err != nil {
		return fmt.Errorf("failed to update ingest job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrIngestJobNotFound
	}
	return nil
}

func (r *IngestJobRepository) ListAbandoned(ctx context.Context, timeout time.Duration) ([]*model.IngestJob, error) {
	const query = `
		SELECT id, object_key, content_hash, video_uid, video_id, status, retry_count, started_at, finished_at, err, created_at, updated_at
		FROM ingest_jobs
		WHERE status = 'processing' AND started_at < $1
	`

	cutoff := time.Now().Add(-timeout)
	rows, err := r.db.Query(ctx, query, cutoff)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableIngestJobs).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to query abandoned ingest jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.IngestJob
	for rows.Next() {
		job, err := r.scanFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingest job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ingest jobs: %w", err)
	}
	return jobs, nil
}

func (r *IngestJobRepository) scan(row pgx.Row) (*model.IngestJob, error) {
	var job model.IngestJob
	var status string

	err := row.Scan(
		&job.ID, &job.ObjectKey, &job.ContentHash, &job.VideoUID, &job.VideoID,
		&status, &job.RetryCount, &job.StartedAt, &job.FinishedAt, &job.Err,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = model.JobStatus(status)
	return &job, nil
}

func (r *IngestJobRepository) scanFromRows(rows pgx.Rows) (*model.IngestJob, error) {
	var job model.IngestJob
	var status string

	err := rows.Scan(
		&job.ID, &job.ObjectKey, &job.ContentHash, &job.VideoUID, &job.VideoID,
		&status, &job.RetryCount, &job.StartedAt, &job.FinishedAt, &job.Err,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = model.JobStatus(status)
	return &job, nil
}

var _ repository.IngestJobRepository = (*IngestJobRepository)(nil)
