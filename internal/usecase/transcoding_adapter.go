package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/videoannot/ingestworker/internal/domain/repository"
)

// TranscodeResult is the outcome handed back to the ingest controller.
// Transcoding failure is never fatal: HLSPath is nil and Failed is true, but
// no error is returned.
type TranscodeResult struct {
	HLSPath      *string
	Failed       bool
	ErrorMessage string
}

// TranscodingAdapter submits and waits on an external transcode job,
// retrying on failure up to MaxRetries before giving up non-fatally.
type TranscodingAdapter struct {
	client     repository.TranscoderClient
	storage    repository.ObjectStorage
	rawBucket  string
	maxRetries int
	backoff    time.Duration
}

func NewTranscodingAdapter(client repository.TranscoderClient, storage repository.ObjectStorage, rawBucket string, maxRetries int, backoff time.Duration) *TranscodingAdapter {
	return &TranscodingAdapter{client: client, storage: storage, rawBucket: rawBucket, maxRetries: maxRetries, backoff: backoff}
}

// Transcode runs inputPath (MP4, an object key within rawBucket) to HLS
// under outputPrefix. It never returns an error: a failed or exhausted
// attempt, or a missing input object, is reported via TranscodeResult.
func (a *TranscodingAdapter) Transcode(ctx context.Context, videoUID, inputPath, outputPrefix string) TranscodeResult {
	exists, err := a.storage.Exists(ctx, a.rawBucket, inputPath)
	if err != nil {
		slog.Warn("failed to check input existence, attempting transcode anyway",
			"video_uid", videoUID, "object_key", inputPath, "error", err)
	} else if !exists {
		slog.Warn("transcode input missing", "video_uid", videoUID, "object_key", inputPath)
		return TranscodeResult{HLSPath: nil, Failed: true, ErrorMessage: fmt.Sprintf("input object %q not found in bucket %q", inputPath, a.rawBucket)}
	}

	inputURI := fmt.Sprintf("gs://%s/%s", a.rawBucket, inputPath)

	var lastErr error

	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		jobName, err := a.client.SubmitJob(ctx, inputURI, outputPrefix)
		if err == nil {
			var result *repository.TranscodeJobResult
			result, err = a.client.WaitForJob(ctx, jobName)
			if err == nil && result.Succeeded {
				hlsPath := result.HLSPath
				return TranscodeResult{HLSPath: &hlsPath}
			}
			if err == nil {
				lastErr = errString(result.Error)
			}
		}
		if err != nil {
			lastErr = err
		}

		slog.Warn("transcode attempt failed",
			"video_uid", videoUID,
			"attempt", attempt,
			"max_retries", a.maxRetries,
			"error", lastErr,
		)

		if attempt < a.maxRetries {
			if !sleepOrDone(ctx, backoffDuration(a.backoff, attempt)) {
				break
			}
		}
	}

	msg := "transcode failed"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return TranscodeResult{HLSPath: nil, Failed: true, ErrorMessage: msg}
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

func errString(msg string) error {
	if msg == "" {
		msg = "unknown transcode error"
	}
	return simpleError(msg)
}
