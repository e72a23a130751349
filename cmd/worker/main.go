package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/videoannot/ingestworker/internal/config"
	"github.com/videoannot/ingestworker/internal/domain/repository"
	"github.com/videoannot/ingestworker/internal/infrastructure/asrclient"
	"github.com/videoannot/ingestworker/internal/infrastructure/languagemodel"
	"github.com/videoannot/ingestworker/internal/infrastructure/notifier"
	"github.com/videoannot/ingestworker/internal/infrastructure/postgres"
	"github.com/videoannot/ingestworker/internal/infrastructure/queue"
	"github.com/videoannot/ingestworker/internal/infrastructure/storage"
	"github.com/videoannot/ingestworker/internal/infrastructure/transcodeclient"
	"github.com/videoannot/ingestworker/internal/usecase"
)

// run replays jobs an operator has selected from the dead-letter queue. It
// shares the ingest controller with cmd/api rather than re-implementing the
// pipeline: a replayed job goes through the exact same idempotency check,
// so a job that already landed successfully by another path is a no-op.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	logger.Info("connected to PostgreSQL")

	storageClient, err := storage.NewClient(ctx, storage.ClientConfig{
		Endpoint:       cfg.ObjectStore.Endpoint,
		PublicEndpoint: cfg.ObjectStore.PublicEndpoint,
		AccessKey:      cfg.ObjectStore.AccessKey,
		SecretKey:      cfg.ObjectStore.SecretKey,
		DefaultBucket:  cfg.ObjectStore.RawBucket,
		UseSSL:         cfg.ObjectStore.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to object store: %w", err)
	}
	logger.Info("connected to object store")

	deadLetterQueue, err := queue.NewClient(ctx, queue.ClientConfig{
		URL:        cfg.Queue.URL,
		QueueName:  cfg.Queue.QueueName,
		RoutingKey: cfg.Queue.QueueName,
		Prefetch:   cfg.Queue.Prefetch,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer deadLetterQueue.Close()
	logger.Info("connected to RabbitMQ")

	pool := pgClient.Pool()
	videoRepo := postgres.NewVideoRepository(pool)
	ingestJobRepo := postgres.NewIngestJobRepository(pool)
	segmentRepo := postgres.NewSegmentRepository(pool)
	occurrenceRepo := postgres.NewOccurrenceRepository(pool)
	fineUnitRepo := postgres.NewFineUnitRepository(pool)
	txManager := postgres.NewTxManager(pool)

	transcoderClient := transcodeclient.NewClient(transcodeclient.Config{
		BaseURL:    cfg.Transcoder.BaseURL,
		APIKey:     cfg.Transcoder.APIKey,
		TemplateID: cfg.Transcoder.TemplateID,
		MaxWait:    cfg.Ingest.ProcessingTimeout(),
	})
	asrClient := asrclient.NewClient(storageClient, asrclient.Config{
		BaseURL:          cfg.ASR.BaseURL,
		APIKey:           cfg.ASR.APIKey,
		Model:            cfg.ASR.Model,
		Language:         cfg.ASR.Language,
		RawBucket:        cfg.ObjectStore.RawBucket,
		TranscriptBucket: cfg.ObjectStore.TranscriptBucket,
		SignedURLTTL:     cfg.Ingest.SignedURLTTL(),
		MaxWait:          cfg.Ingest.ProcessingTimeout(),
	})
	lmClient := languagemodel.NewClient(languagemodel.Config{
		BaseURL:       cfg.LanguageModel.BaseURL,
		APIKey:        cfg.LanguageModel.APIKey,
		Model:         cfg.LanguageModel.Model,
		MaxIterations: cfg.LanguageModel.MaxIterations,
	})
	notifierClient := notifier.NewClient(cfg.Notifier.WebhookURL, logger)

	catalogTool := usecase.NewCatalogTool(fineUnitRepo, cfg.Ingest.ModelName)
	transcodingAdapter := usecase.NewTranscodingAdapter(transcoderClient, storageClient, cfg.ObjectStore.RawBucket, cfg.Ingest.MaxRetries, cfg.Ingest.RetryBackoff())
	asrAdapter := usecase.NewASRAdapter(asrClient, cfg.Ingest.MaxRetries, cfg.Ingest.RetryBackoff())
	lmDriver := usecase.NewLMDriver(lmClient)
	annotationOrchestrator := usecase.NewAnnotationOrchestrator(lmDriver, catalogTool, notifierClient, usecase.AnnotationOrchestratorConfig{
		MaxConcurrency:  cfg.Ingest.MaxConcurrency,
		CacheTTLSeconds: cfg.Ingest.CacheTTLSeconds,
		ModelName:       cfg.Ingest.ModelName,
	})
	persistenceService := usecase.NewPersistenceService(segmentRepo, occurrenceRepo, txManager)
	notifierAdapter := usecase.NewNotifierAdapter(notifierClient)

	ingestController := usecase.NewIngestController(
		ingestJobRepo,
		videoRepo,
		storageClient,
		transcodingAdapter,
		asrAdapter,
		annotationOrchestrator,
		persistenceService,
		notifierAdapter,
		cfg.ObjectStore.RawBucket,
		usecase.IngestControllerConfig{ProcessingTimeout: cfg.Ingest.ProcessingTimeout()},
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting dead-letter replay consumer")
		err := deadLetterQueue.ConsumeFailed(ctx, func(task repository.FailedIngestTask) error {
			wg.Add(1)
			defer wg.Done()

			logger.Info("replaying failed ingest job",
				slog.String("video_uid", task.VideoUID),
				slog.String("object_key", task.ObjectKey),
				slog.Int("retry_count", task.RetryCount),
			)

			if err := ingestController.ProcessIngestEvent(ctx, task.ObjectKey, task.ContentHash); err != nil {
				logger.Error("replay failed",
					slog.String("object_key", task.ObjectKey),
					slog.String("error", err.Error()),
				)
				return err
			}

			logger.Info("replay succeeded", slog.String("object_key", task.ObjectKey))
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down replay consumer", slog.String("signal", sig.String()))
	}

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	select {
	case <-done:
		logger.Info("all in-flight replays completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some replays may not have completed")
	}

	logger.Info("replay consumer stopped")
	return nil
}
