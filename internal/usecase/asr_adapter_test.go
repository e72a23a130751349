package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/videoannot/ingestworker/internal/domain/repository"
)

func TestASRAdapter_Succeeds(t *testing.T) {
	client := &mockASRClient{
		runFn: func(ctx context.Context, videoUID, inputPath string) (*repository.ASRResult, error) {
			return &repository.ASRResult{TranscriptPath: "transcripts/v1.json"}, nil
		},
	}

	adapter := NewASRAdapter(client, 3, time.Millisecond)
	result, err := adapter.Run(context.Background(), "video-1", "in.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TranscriptPath != "transcripts/v1.json" {
		t.Errorf("got transcript path %q, want transcripts/v1.json", result.TranscriptPath)
	}
}

func TestASRAdapter_FatalAfterRetries(t *testing.T) {
	attempts := 0
	client := &mockASRClient{
		runFn: func(ctx context.Context, videoUID, inputPath string) (*repository.ASRResult, error) {
			attempts++
			return nil, errors.New("asr service unavailable")
		},
	}

	adapter := NewASRAdapter(client, 3, time.Millisecond)
	_, err := adapter.Run(context.Background(), "video-1", "in.mp4")
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	var werr *WorkflowError
	if !errors.As(err, &werr) {
		t.Fatalf("expected a *WorkflowError, got %T", err)
	}
	if !werr.Retryable {
		t.Error("expected asr error to be retryable")
	}
	if attempts != 3 {
		t.Errorf("got %d attempts, want 3", attempts)
	}
}
