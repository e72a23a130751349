package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/videoannot/ingestworker/internal/domain/model"
)

func TestPersistenceService_SaveVideoAnalysis(t *testing.T) {
	videoID := uuid.New()
	seg0ID := uuid.New()
	seg1ID := uuid.New()

	segments := []*model.Segment{
		{Index: 0, Text: "hello there"},
		{Index: 1, Text: "general kenobi"},
	}

	segmentRepo := &mockSegmentRepository{
		upsertBatchFn: func(ctx context.Context, segments []*model.Segment) ([]*model.Segment, error) {
			persisted := make([]*model.Segment, len(segments))
			for i, s := range segments {
				cp := *s
				if i == 0 {
					cp.ID = seg0ID
				} else {
					cp.ID = seg1ID
				}
				persisted[i] = &cp
			}
			return persisted, nil
		},
	}

	var receivedOccurrences []*model.Occurrence
	occRepo := &mockOccurrenceRepository{
		upsertBatchFn: func(ctx context.Context, occurrences []*model.Occurrence) (int, int, error) {
			receivedOccurrences = occurrences
			return len(occurrences), 0, nil
		},
	}

	occ0, err := model.NewOccurrence(uuid.Nil, 1, model.Evidence{Span: model.Span{Start: 0, End: 5}, Rationale: "r", VisualComprehensibility: 0.5, TextualComprehensibility: 0.5}, model.DetectionModelVideo, "gemini-2.5", 11)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	occ1, err := model.NewOccurrence(uuid.Nil, 2, model.Evidence{Span: model.Span{Start: 0, End: 7}, Rationale: "r", VisualComprehensibility: 0.5, TextualComprehensibility: 0.5}, model.DetectionModelVideo, "gemini-2.5", 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	occurrencesByIndex := map[int][]*model.Occurrence{
		0: {occ0},
		1: {occ1},
	}

	svc := NewPersistenceService(segmentRepo, occRepo, &mockTransactor{})
	stats, err := svc.SaveVideoAnalysis(context.Background(), videoID, segments, occurrencesByIndex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.SegmentsInserted != 2 {
		t.Errorf("got %d segments inserted, want 2", stats.SegmentsInserted)
	}
	if stats.OccurrencesInserted != 2 {
		t.Errorf("got %d occurrences inserted, want 2", stats.OccurrencesInserted)
	}
	if len(receivedOccurrences) != 2 {
		t.Fatalf("got %d occurrences passed to repo, want 2", len(receivedOccurrences))
	}
	if receivedOccurrences[0].SegmentID != seg0ID {
		t.Errorf("occurrence 0 got segment ID %v, want %v", receivedOccurrences[0].SegmentID, seg0ID)
	}
	if receivedOccurrences[1].SegmentID != seg1ID {
		t.Errorf("occurrence 1 got segment ID %v, want %v", receivedOccurrences[1].SegmentID, seg1ID)
	}
}

func TestPersistenceService_SaveVideoAnalysis_RollsBackOnOccurrenceError(t *testing.T) {
	segmentRepo := &mockSegmentRepository{}

	wantErr := errors.New("constraint violation")
	occRepo := &mockOccurrenceRepository{
		upsertBatchFn: func(ctx context.Context, occurrences []*model.Occurrence) (int, int, error) {
			return 0, 0, wantErr
		},
	}

	var rolledBack bool
	tx := &mockTransactor{
		withinTxFn: func(ctx context.Context, fn func(ctx context.Context) error) error {
			err := fn(ctx)
			if err != nil {
				rolledBack = true
			}
			return err
		},
	}

	svc := NewPersistenceService(segmentRepo, occRepo, tx)
	_, err := svc.SaveVideoAnalysis(context.Background(), uuid.New(), []*model.Segment{{Index: 0, Text: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if !rolledBack {
		t.Error("expected the transaction to observe the failure and roll back")
	}
}
