package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/videoannot/ingestworker/internal/domain/model"
	"github.com/videoannot/ingestworker/internal/domain/repository"
)

type mockVideoRepository struct {
	createFn        func(ctx context.Context, video *model.Video) error
	getByIDFn       func(ctx context.Context, id uuid.UUID) (*model.Video, error)
	getByVideoUIDFn func(ctx context.Context, videoUID string) (*model.Video, error)
	updateFn        func(ctx context.Context, video *model.Video) error
}

func (m *mockVideoRepository) Create(ctx context.Context, video *model.Video) error {
	if m.createFn != nil {
		return m.createFn(ctx, video)
	}
	return nil
}

func (m *mockVideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrVideoNotFound
}

func (m *mockVideoRepository) GetByVideoUID(ctx context.Context, videoUID string) (*model.Video, error) {
	if m.getByVideoUIDFn != nil {
		return m.getByVideoUIDFn(ctx, videoUID)
	}
	return nil, repository.ErrVideoNotFound
}

func (m *mockVideoRepository) Update(ctx context.Context, video *model.Video) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, video)
	}
	return nil
}

type mockIngestJobRepository struct {
	findOrCreateFn func(ctx context.Context, job *model.IngestJob) (*model.IngestJob, bool, error)
	getByIDFn      func(ctx context.Context, id uuid.UUID) (*model.IngestJob, error)
	updateFn       func(ctx context.Context, job *model.IngestJob) error
	listAbandonedFn func(ctx context.Context, timeout time.Duration) ([]*model.IngestJob, error)
}

func (m *mockIngestJobRepository) FindOrCreate(ctx context.Context, job *model.IngestJob) (*model.IngestJob, bool, error) {
	if m.findOrCreateFn != nil {
		return m.findOrCreateFn(ctx, job)
	}
	return job, false, nil
}

func (m *mockIngestJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.IngestJob, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrIngestJobNotFound
}

func (m *mockIngestJobRepository) Update(ctx context.Context, job *model.IngestJob) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, job)
	}
	return nil
}

func (m *mockIngestJobRepository) ListAbandoned(ctx context.Context, timeout time.Duration) ([]*model.IngestJob, error) {
	if m.listAbandonedFn != nil {
		return m.listAbandonedFn(ctx, timeout)
	}
	return nil, nil
}

type mockSegmentRepository struct {
	upsertBatchFn   func(ctx context.Context, segments []*model.Segment) ([]*model.Segment, error)
	listByVideoIDFn func(ctx context.Context, videoID uuid.UUID) ([]*model.Segment, error)
}

func (m *mockSegmentRepository) UpsertBatch(ctx context.Context, segments []*model.Segment) ([]*model.Segment, error) {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, segments)
	}
	return segments, nil
}

func (m *mockSegmentRepository) ListByVideoID(ctx context.Context, videoID uuid.UUID) ([]*model.Segment, error) {
	if m.listByVideoIDFn != nil {
		return m.listByVideoIDFn(ctx, videoID)
	}
	return nil, nil
}

type mockOccurrenceRepository struct {
	upsertBatchFn func(ctx context.Context, occurrences []*model.Occurrence) (int, int, error)
}

func (m *mockOccurrenceRepository) UpsertBatch(ctx context.Context, occurrences []*model.Occurrence) (int, int, error) {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, occurrences)
	}
	return len(occurrences), 0, nil
}

type mockFineUnitRepository struct {
	queryFn  func(ctx context.Context, q repository.FineUnitQuery) ([]*model.FineUnit, error)
	createFn func(ctx context.Context, unit *model.FineUnit) (*model.FineUnit, error)
}

func (m *mockFineUnitRepository) Query(ctx context.Context, q repository.FineUnitQuery) ([]*model.FineUnit, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, q)
	}
	return nil, nil
}

func (m *mockFineUnitRepository) Create(ctx context.Context, unit *model.FineUnit) (*model.FineUnit, error) {
	if m.createFn != nil {
		return m.createFn(ctx, unit)
	}
	return unit, nil
}

type mockTranscoderClient struct {
	submitJobFn  func(ctx context.Context, inputPath, outputPrefix string) (string, error)
	waitForJobFn func(ctx context.Context, jobName string) (*repository.TranscodeJobResult, error)
}

func (m *mockTranscoderClient) SubmitJob(ctx context.Context, inputPath, outputPrefix string) (string, error) {
	if m.submitJobFn != nil {
		return m.submitJobFn(ctx, inputPath, outputPrefix)
	}
	return "job-1", nil
}

func (m *mockTranscoderClient) WaitForJob(ctx context.Context, jobName string) (*repository.TranscodeJobResult, error) {
	if m.waitForJobFn != nil {
		return m.waitForJobFn(ctx, jobName)
	}
	return &repository.TranscodeJobResult{Succeeded: true, HLSPath: "hls/out.m3u8"}, nil
}

type mockASRClient struct {
	runFn func(ctx context.Context, videoUID, inputPath string) (*repository.ASRResult, error)
}

func (m *mockASRClient) Run(ctx context.Context, videoUID, inputPath string) (*repository.ASRResult, error) {
	if m.runFn != nil {
		return m.runFn(ctx, videoUID, inputPath)
	}
	return &repository.ASRResult{}, nil
}

type mockObjectStorage struct {
	presignDownloadFn func(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
	presignUploadFn   func(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
	existsFn          func(ctx context.Context, bucket, key string) (bool, error)
}

func (m *mockObjectStorage) GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if m.presignDownloadFn != nil {
		return m.presignDownloadFn(ctx, bucket, key, expiry)
	}
	return "https://example.test/" + key, nil
}

func (m *mockObjectStorage) GeneratePresignedUploadURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if m.presignUploadFn != nil {
		return m.presignUploadFn(ctx, bucket, key, expiry)
	}
	return "https://example.test/" + key, nil
}

func (m *mockObjectStorage) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, bucket, key)
	}
	return true, nil
}

type mockLanguageModelClient struct {
	createCachedContentFn func(ctx context.Context, videoURI *string, textContent string, systemInstruction *string, tools []repository.Tool, ttlSeconds int) (*repository.CachedContent, error)
	callWithToolsFn       func(ctx context.Context, cachedContent *repository.CachedContent, prompt string, tools []repository.Tool, handler repository.ToolHandler, systemInstruction *string, generationConfig map[string]any) (map[string]any, error)
}

func (m *mockLanguageModelClient) CreateCachedContent(ctx context.Context, videoURI *string, textContent string, systemInstruction *string, tools []repository.Tool, ttlSeconds int) (*repository.CachedContent, error) {
	if m.createCachedContentFn != nil {
		return m.createCachedContentFn(ctx, videoURI, textContent, systemInstruction, tools, ttlSeconds)
	}
	return &repository.CachedContent{Name: "cache-1"}, nil
}

func (m *mockLanguageModelClient) CallWithTools(ctx context.Context, cachedContent *repository.CachedContent, prompt string, tools []repository.Tool, handler repository.ToolHandler, systemInstruction *string, generationConfig map[string]any) (map[string]any, error) {
	if m.callWithToolsFn != nil {
		return m.callWithToolsFn(ctx, cachedContent, prompt, tools, handler, systemInstruction, generationConfig)
	}
	return map[string]any{"annotations": []any{}}, nil
}

type mockTransactor struct {
	withinTxFn func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withinTxFn != nil {
		return m.withinTxFn(ctx, fn)
	}
	return fn(ctx)
}

type mockNotifierGateway struct {
	notifyFn func(ctx context.Context, n repository.Notification) error
	received []repository.Notification
}

func (m *mockNotifierGateway) Notify(ctx context.Context, n repository.Notification) error {
	m.received = append(m.received, n)
	if m.notifyFn != nil {
		return m.notifyFn(ctx, n)
	}
	return nil
}
