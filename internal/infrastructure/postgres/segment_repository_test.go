package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/videoannot/ingestworker/internal/domain/model"
)

func TestSegmentRepository_UpsertBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	videoID := uuid.New()
	seg, err := model.NewSegment(videoID, 0, 0.0, 2.5, "hello there", "en", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	persistedID := uuid.New()
	mock.ExpectQuery("INSERT INTO segments").
		WithArgs(seg.ID, seg.VideoID, seg.Index, seg.TStart, seg.TEnd, seg.Text, seg.Lang, seg.Meta, seg.CreatedAt, seg.UpdatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(persistedID))

	repo := NewSegmentRepository(mock)
	got, err := repo.UpsertBatch(context.Background(), []*model.Segment{seg})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != persistedID {
		t.Errorf("got %+v, want segment with ID %v", got, persistedID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
