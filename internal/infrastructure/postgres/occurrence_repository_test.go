package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/videoannot/ingestworker/internal/domain/model"
)

func newTestOccurrence(t *testing.T) *model.Occurrence {
	t.Helper()
	occ, err := model.NewOccurrence(uuid.New(), 42, model.Evidence{
		Span:                     model.Span{Start: 0, End: 5},
		Rationale:                "test",
		VisualComprehensibility:  0.5,
		TextualComprehensibility: 0.5,
	}, model.DetectionModelVideo, "gemini-2.5", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return occ
}

func TestOccurrenceRepository_UpsertBatch_Inserted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	occ := newTestOccurrence(t)

	mock.ExpectExec("INSERT INTO occurrences").
		WithArgs(occ.ID, occ.SegmentID, occ.FineID, occ.ReliabilityScore, occ.DetectionMethod, occ.OntologyVersion,
			occ.Evidence.Span.Start, occ.Evidence.Span.End, occ.Evidence.Rationale,
			occ.Evidence.VisualComprehensibility, occ.Evidence.TextualComprehensibility, occ.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewOccurrenceRepository(mock)
	inserted, skipped, err := repo.UpsertBatch(context.Background(), []*model.Occurrence{occ})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted != 1 || skipped != 0 {
		t.Errorf("got inserted=%d skipped=%d, want 1/0", inserted, skipped)
	}
}

func TestOccurrenceRepository_UpsertBatch_SkipsForeignKeyViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	occ := newTestOccurrence(t)

	mock.ExpectExec("INSERT INTO occurrences").
		WithArgs(occ.ID, occ.SegmentID, occ.FineID, occ.ReliabilityScore, occ.DetectionMethod, occ.OntologyVersion,
			occ.Evidence.Span.Start, occ.Evidence.Span.End, occ.Evidence.Rationale,
			occ.Evidence.VisualComprehensibility, occ.Evidence.TextualComprehensibility, occ.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

	repo := NewOccurrenceRepository(mock)
	inserted, skipped, err := repo.UpsertBatch(context.Background(), []*model.Occurrence{occ})
	if err != nil {
		t.Fatalf("expected foreign key violation to be tolerated, got error: %v", err)
	}
	if inserted != 0 || skipped != 1 {
		t.Errorf("got inserted=%d skipped=%d, want 0/1", inserted, skipped)
	}
}

func TestOccurrenceRepository_UpsertBatch_AbortsOnOtherError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	occ := newTestOccurrence(t)

	mock.ExpectExec("INSERT INTO occurrences").
		WithArgs(occ.ID, occ.SegmentID, occ.FineID, occ.ReliabilityScore, occ.DetectionMethod, occ.OntologyVersion,
			occ.Evidence.Span.Start, occ.Evidence.Span.End, occ.Evidence.Rationale,
			occ.Evidence.VisualComprehensibility, occ.Evidence.TextualComprehensibility, occ.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "08006"})

	repo := NewOccurrenceRepository(mock)
	_, _, err = repo.UpsertBatch(context.Background(), []*model.Occurrence{occ})
	if err == nil {
		t.Error("expected a connection error to abort the batch")
	}
}
