package repository

import "context"

// ASRSegment is a single transcribed span as emitted by the ASR client,
// prior to being persisted as a model.Segment.
type ASRSegment struct {
	TStart float64
	TEnd   float64
	Text   string
	Lang   string
	Meta   map[string]any
}

// ASRResult is the outcome of a completed ASR run.
type ASRResult struct {
	Segments       []ASRSegment
	TranscriptPath string
	VTTPath        string
	DurationSec    float64
}

// ASRClient submits and waits on an external speech-recognition job. A
// failure here is always fatal to the owning ingest job; retries are the
// caller's responsibility.
type ASRClient interface {
	Run(ctx context.Context, videoUID, inputPath string) (*ASRResult, error)
}
