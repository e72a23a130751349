package repository

import "context"

// TranscodeJobResult is the outcome of a completed (or failed) transcode job.
type TranscodeJobResult struct {
	Succeeded bool
	HLSPath   string
	Error     string
}

// TranscoderClient submits and polls an external video transcoding job
// (MP4 -> HLS). Implementations wrap a vendor transcode service; the job is
// asynchronous, so callers submit then poll/wait.
type TranscoderClient interface {
	// SubmitJob starts a transcode from inputPath to outputPrefix and
	// returns an opaque job name used to poll status.
	SubmitJob(ctx context.Context, inputPath, outputPrefix string) (jobName string, err error)

	// WaitForJob blocks (honoring ctx) until the job reaches a terminal
	// state or the context deadline elapses.
	WaitForJob(ctx context.Context, jobName string) (*TranscodeJobResult, error)
}
