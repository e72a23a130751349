package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/videoannot/ingestworker/internal/domain/repository"
)

// ASRAdapter submits and waits on speech recognition, retrying transient
// failures. Unlike transcoding, exhausting retries here is fatal to the
// ingest job.
type ASRAdapter struct {
	client     repository.ASRClient
	maxRetries int
	backoff    time.Duration
}

func NewASRAdapter(client repository.ASRClient, maxRetries int, backoff time.Duration) *ASRAdapter {
	return &ASRAdapter{client: client, maxRetries: maxRetries, backoff: backoff}
}

// Run transcribes inputPath, retrying up to MaxRetries times. Returns a
// *WorkflowError (stage "asr", retryable=true) if every attempt fails.
func (a *ASRAdapter) Run(ctx context.Context, videoUID, inputPath string) (*repository.ASRResult, error) {
	var lastErr error

	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		result, err := a.client.Run(ctx, videoUID, inputPath)
		if err == nil {
			return result, nil
		}

		lastErr = err
		slog.Warn("asr attempt failed",
			"video_uid", videoUID,
			"attempt", attempt,
			"max_retries", a.maxRetries,
			"error", err,
		)

		if attempt < a.maxRetries {
			if !sleepOrDone(ctx, backoffDuration(a.backoff, attempt)) {
				break
			}
		}
	}

	return nil, NewASRError(fmt.Errorf("asr failed after %d attempts: %w", a.maxRetries, lastErr))
}
