package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/videoannot/ingestworker/internal/domain/model"
	"github.com/videoannot/ingestworker/internal/domain/repository"
	"github.com/videoannot/ingestworker/internal/infrastructure/metrics"
	"github.com/videoannot/ingestworker/internal/infrastructure/tracing"
	"golang.org/x/sync/errgroup"
)

var ingestTracer = tracing.Tracer("ingestworker/ingest_controller")

// presignedURLExpiry bounds how long a transcode/ASR vendor holds read
// access to a raw upload.
const presignedURLExpiry = 6 * time.Hour

// IngestControllerConfig bounds the controller's idempotency window.
type IngestControllerConfig struct {
	ProcessingTimeout time.Duration
}

// IngestController drives one ingestion run end to end: idempotency check,
// parallel transcode+ASR, annotation, persistence, finalize. It mirrors the
// structure of a single message handler, not a queue consumer itself.
type IngestController struct {
	jobs    repository.IngestJobRepository
	videos  repository.VideoRepository
	storage repository.ObjectStorage

	transcoding  *TranscodingAdapter
	asr          *ASRAdapter
	orchestrator *AnnotationOrchestrator
	persistence  *PersistenceService
	notifier     *NotifierAdapter

	bucket string
	cfg    IngestControllerConfig
}

func NewIngestController(
	jobs repository.IngestJobRepository,
	videos repository.VideoRepository,
	storage repository.ObjectStorage,
	transcoding *TranscodingAdapter,
	asr *ASRAdapter,
	orchestrator *AnnotationOrchestrator,
	persistence *PersistenceService,
	notifier *NotifierAdapter,
	bucket string,
	cfg IngestControllerConfig,
) *IngestController {
	return &IngestController{
		jobs:         jobs,
		videos:       videos,
		storage:      storage,
		transcoding:  transcoding,
		asr:          asr,
		orchestrator: orchestrator,
		persistence:  persistence,
		notifier:     notifier,
		bucket:       bucket,
		cfg:          cfg,
	}
}

// ProcessIngestEvent runs the full pipeline for one storage-event delivery.
// objectKey is the raw upload's path; contentHash is the delivery's
// idempotency key component (an object generation, etag, or digest).
func (c *IngestController) ProcessIngestEvent(ctx context.Context, objectKey, contentHash string) error {
	videoUID := model.DeriveVideoUID(objectKey)

	ctx, span := ingestTracer.Start(ctx, "ingest.process_event")
	defer span.End()
	span.SetAttributes(attribute.String("video_uid", videoUID), attribute.String("object_key", objectKey))

	job, video, err := c.checkIdempotency(ctx, objectKey, contentHash, videoUID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if werr := c.run(ctx, job, video, objectKey); werr != nil {
		span.RecordError(werr)
		span.SetStatus(codes.Error, werr.Error())
		c.handleFailure(ctx, job, video, werr)
		return werr
	}

	return nil
}

func (c *IngestController) run(ctx context.Context, job *model.IngestJob, video *model.Video, objectKey string) *WorkflowError {
	transcodeResult, asrResult, werr := c.transcodeAndTranscribe(ctx, video.VideoUID, objectKey)
	if werr != nil {
		return werr
	}

	segments, err := segmentsFromASR(video.ID, asrResult.Segments)
	if err != nil {
		return NewASRError(err)
	}

	videoURL, err := c.storage.GeneratePresignedDownloadURL(ctx, c.bucket, objectKey, presignedURLExpiry)
	var videoURI *string
	if err != nil {
		slog.Warn("failed to presign video URL, annotating text-only", "video_uid", video.VideoUID, "error", err)
	} else {
		videoURI = &videoURL
	}

	occurrencesByIndex, method, err := c.orchestrator.ProcessVideo(ctx, video.VideoUID, videoURI, segments)
	if err != nil {
		return NewAgenticError(err)
	}
	ontologyVer := c.orchestrator.cfg.ModelName

	stats, err := c.persistence.SaveVideoAnalysis(ctx, video.ID, segments, occurrencesByIndex)
	if err != nil {
		return NewPersistenceError(err)
	}

	if err := video.MarkReady(transcodeResult.HLSPath, &asrResult.TranscriptPath); err != nil {
		return NewPersistenceError(fmt.Errorf("mark video ready: %w", err))
	}
	if err := c.videos.Update(ctx, video); err != nil {
		return NewPersistenceError(fmt.Errorf("update video: %w", err))
	}

	job.MarkDone()
	if err := c.jobs.Update(ctx, job); err != nil {
		return NewPersistenceError(fmt.Errorf("update ingest job: %w", err))
	}
	metrics.IngestJobsTotal.WithLabelValues(metrics.IngestJobDone).Inc()

	slog.Info("ingestion complete",
		"video_uid", video.VideoUID,
		"ontology_version", ontologyVer,
		"detection_method", method,
		"segments_inserted", stats.SegmentsInserted,
		"occurrences_inserted", stats.OccurrencesInserted,
		"occurrences_skipped", stats.OccurrencesSkipped,
	)
	c.notifier.NotifyIngestSuccess(ctx, video.VideoUID, stats.SegmentsInserted, stats.OccurrencesInserted)

	return nil
}

// transcodeAndTranscribe runs transcoding and ASR concurrently. ASR failure
// is fatal and propagates; transcoding failure is carried in its result and
// never aborts the run.
func (c *IngestController) transcodeAndTranscribe(ctx context.Context, videoUID, objectKey string) (TranscodeResult, *repository.ASRResult, *WorkflowError) {
	ctx, span := ingestTracer.Start(ctx, "ingest.transcode_and_transcribe")
	defer span.End()

	outputPrefix := path.Join("hls", videoUID)

	g, gctx := errgroup.WithContext(ctx)

	var transcodeResult TranscodeResult
	var asrResult *repository.ASRResult

	g.Go(func() error {
		transcodeResult = c.transcoding.Transcode(gctx, videoUID, objectKey, outputPrefix)
		return nil
	})

	g.Go(func() error {
		var err error
		asrResult, err = c.asr.Run(gctx, videoUID, objectKey)
		return err
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if werr, ok := err.(*WorkflowError); ok {
			return TranscodeResult{}, nil, werr
		}
		return TranscodeResult{}, nil, NewASRError(err)
	}

	return transcodeResult, asrResult, nil
}

func segmentsFromASR(videoID uuid.UUID, asrSegments []repository.ASRSegment) ([]*model.Segment, error) {
	segments := make([]*model.Segment, 0, len(asrSegments))
	for i, s := range asrSegments {
		seg, err := model.NewSegment(videoID, i, s.TStart, s.TEnd, s.Text, s.Lang, s.Meta)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// checkIdempotency mirrors the original workflow's first step: look up (or
// insert) the ingest job and owning video before doing any real work.
// A job already "done", or "processing" within the timeout window, makes
// this delivery a no-op; a "processing" job past the timeout is treated as
// abandoned and retried.
func (c *IngestController) checkIdempotency(ctx context.Context, objectKey, contentHash, videoUID string) (*model.IngestJob, *model.Video, error) {
	video, err := c.getOrCreateVideo(ctx, videoUID, objectKey)
	if err != nil {
		return nil, nil, NewPersistenceError(fmt.Errorf("get or create video: %w", err))
	}

	candidate, err := model.NewIngestJob(objectKey, contentHash, videoUID, video.ID)
	if err != nil {
		return nil, nil, NewIdempotencyError(err)
	}

	existing, found, err := c.jobs.FindOrCreate(ctx, candidate)
	if err != nil {
		return nil, nil, NewPersistenceError(fmt.Errorf("find or create ingest job: %w", err))
	}
	if !found {
		metrics.IngestJobsTotal.WithLabelValues(metrics.IngestJobProcessing).Inc()
		return existing, video, nil
	}

	switch existing.Status {
	case model.JobDone:
		return nil, nil, NewIdempotencyError(fmt.Errorf("object_key %q already processed", objectKey))
	case model.JobProcessing:
		if !existing.IsAbandoned(time.Now(), c.cfg.ProcessingTimeout) {
			return nil, nil, NewIdempotencyError(fmt.Errorf("object_key %q is already processing", objectKey))
		}
		existing.ResetAbandoned()
		existing.MarkProcessing()
	default:
		existing.MarkProcessing()
	}
	metrics.IngestJobsTotal.WithLabelValues(metrics.IngestJobProcessing).Inc()

	if err := c.jobs.Update(ctx, existing); err != nil {
		return nil, nil, NewPersistenceError(fmt.Errorf("update ingest job: %w", err))
	}

	return existing, video, nil
}

func (c *IngestController) getOrCreateVideo(ctx context.Context, videoUID, objectKey string) (*model.Video, error) {
	video, err := c.videos.GetByVideoUID(ctx, videoUID)
	if err == nil {
		return video, nil
	}
	if err != repository.ErrVideoNotFound {
		return nil, err
	}

	video, err = model.NewVideo(videoUID, objectKey)
	if err != nil {
		return nil, err
	}
	if err := c.videos.Create(ctx, video); err != nil {
		return nil, err
	}
	return video, nil
}

// handleFailure mirrors the original workflow's error path: mark the job
// and video as failed, then notify. Every step here is best-effort and
// logged rather than propagated, so a cleanup failure never masks the
// original error.
func (c *IngestController) handleFailure(ctx context.Context, job *model.IngestJob, video *model.Video, werr *WorkflowError) {
	slog.Error("ingestion failed", "error", werr, "retryable", werr.Retryable)

	if job != nil {
		job.MarkError(werr.Error())
		if err := c.jobs.Update(ctx, job); err != nil {
			slog.Error("failed to mark ingest job errored", "job_id", job.ID, "error", err)
		}
		metrics.IngestJobsTotal.WithLabelValues(metrics.IngestJobError).Inc()
	}

	if video != nil {
		if err := video.MarkError(); err != nil {
			slog.Warn("video already in terminal state", "video_uid", video.VideoUID, "error", err)
		} else if err := c.videos.Update(ctx, video); err != nil {
			slog.Error("failed to mark video errored", "video_uid", video.VideoUID, "error", err)
		}
		c.notifier.NotifyIngestFailure(ctx, video.VideoUID, objectKeyOf(job), werr)
	}
}

func objectKeyOf(job *model.IngestJob) string {
	if job == nil {
		return ""
	}
	return job.ObjectKey
}
