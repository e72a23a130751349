package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/videoannot/ingestworker/internal/api/handler"
	"github.com/videoannot/ingestworker/internal/api/middleware"
	"github.com/videoannot/ingestworker/internal/config"
	"github.com/videoannot/ingestworker/internal/domain/model"
	"github.com/videoannot/ingestworker/internal/domain/repository"
	"github.com/videoannot/ingestworker/internal/infrastructure/asrclient"
	"github.com/videoannot/ingestworker/internal/infrastructure/cache"
	"github.com/videoannot/ingestworker/internal/infrastructure/languagemodel"
	"github.com/videoannot/ingestworker/internal/infrastructure/notifier"
	"github.com/videoannot/ingestworker/internal/infrastructure/postgres"
	"github.com/videoannot/ingestworker/internal/infrastructure/queue"
	"github.com/videoannot/ingestworker/internal/infrastructure/storage"
	"github.com/videoannot/ingestworker/internal/infrastructure/tracing"
	"github.com/videoannot/ingestworker/internal/infrastructure/transcodeclient"
	"github.com/videoannot/ingestworker/internal/usecase"
)

// ingestQueueCapacity bounds how many accepted deliveries can sit ahead of
// the worker pool before the webhook starts shedding load with a 500.
const ingestQueueCapacity = 256

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

	tracerProvider, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// Infrastructure clients.
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

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	// Repositories.
	pool := pgClient.Pool()
	videoRepo := postgres.NewVideoRepository(pool)
	ingestJobRepo := postgres.NewIngestJobRepository(pool)
	segmentRepo := postgres.NewSegmentRepository(pool)
	occurrenceRepo := postgres.NewOccurrenceRepository(pool)
	fineUnitRepo := postgres.NewFineUnitRepository(pool)
	txManager := postgres.NewTxManager(pool)

	// Vendor clients.
	transcoderClient := transcodeclient.NewClient(transcodeclient.Config{
		BaseURL:      cfg.Transcoder.BaseURL,
		APIKey:       cfg.Transcoder.APIKey,
		TemplateID:   cfg.Transcoder.TemplateID,
		PollInterval: 5 * time.Second,
		MaxWait:      cfg.Ingest.ProcessingTimeout(),
	})
	asrClient := asrclient.NewClient(storageClient, asrclient.Config{
		BaseURL:          cfg.ASR.BaseURL,
		APIKey:           cfg.ASR.APIKey,
		Model:            cfg.ASR.Model,
		Language:         cfg.ASR.Language,
		RawBucket:        cfg.ObjectStore.RawBucket,
		TranscriptBucket: cfg.ObjectStore.TranscriptBucket,
		SignedURLTTL:     cfg.Ingest.SignedURLTTL(),
		PollInterval:     5 * time.Second,
		MaxWait:          cfg.Ingest.ProcessingTimeout(),
	})
	lmClient := languagemodel.NewClient(languagemodel.Config{
		BaseURL:       cfg.LanguageModel.BaseURL,
		APIKey:        cfg.LanguageModel.APIKey,
		Model:         cfg.LanguageModel.Model,
		MaxIterations: cfg.LanguageModel.MaxIterations,
	})
	notifierClient := notifier.NewClient(cfg.Notifier.WebhookURL, logger)

	catalogCache := cache.NewRedisCatalogCache(redisClient)

	// Usecase layer.
	transcodingAdapter := usecase.NewTranscodingAdapter(transcoderClient, storageClient, cfg.ObjectStore.RawBucket, cfg.Ingest.MaxRetries, cfg.Ingest.RetryBackoff())
	asrAdapter := usecase.NewASRAdapter(asrClient, cfg.Ingest.MaxRetries, cfg.Ingest.RetryBackoff())
	lmDriver := usecase.NewLMDriver(lmClient)
	catalogTool := usecase.NewCatalogTool(fineUnitRepo, cfg.Ingest.ModelName)
	cachedCatalogTool := usecase.NewCachedCatalogTool(catalogTool, catalogCache, usecase.CachedCatalogToolConfig{
		CacheTTL: cfg.Ingest.CacheTTL(),
	})
	annotationOrchestrator := usecase.NewAnnotationOrchestrator(lmDriver, cachedCatalogTool, notifierClient, usecase.AnnotationOrchestratorConfig{
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

	// Worker pool: the webhook handler only enqueues; these goroutines run
	// the pipeline and publish to the dead-letter queue on fatal failure.
	jobs := make(chan handler.IngestTask, ingestQueueCapacity)
	var wg sync.WaitGroup
	startIngestWorkers(ctx, &wg, jobs, ingestController, deadLetterQueue, logger, int(cfg.Ingest.MaxConcurrency))

	ingestHandler := handler.NewIngestHandler(jobs, logger)

	r := setupRouter(logger, ingestHandler, cfg.Server.RateLimitRPS, cfg.Server.RateLimitWindow)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	// Stop accepting new ingest work and let in-flight jobs drain before exit.
	cancel()
	close(jobs)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight ingest jobs completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some ingest jobs may not have completed")
	}

	logger.Info("server stopped")
	return nil
}

// startIngestWorkers launches a fixed pool of goroutines draining jobs. A
// fatally-failed job is published to the dead-letter queue for operator
// replay rather than silently dropped; ProcessIngestEvent itself already
// handles retries/backoff for the transient cases.
func startIngestWorkers(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan handler.IngestTask,
	controller *usecase.IngestController,
	deadLetter repository.DeadLetterQueue,
	logger *slog.Logger,
	poolSize int,
) {
	if poolSize < 1 {
		poolSize = 1
	}
	for i := 0; i < poolSize; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for task := range jobs {
				if err := controller.ProcessIngestEvent(ctx, task.ObjectKey, task.ContentHash); err != nil {
					logger.Error("ingest job failed",
						slog.Int("worker", workerID),
						slog.String("object_key", task.ObjectKey),
						slog.String("error", err.Error()),
					)
					if werr, ok := err.(*usecase.WorkflowError); ok && !werr.Retryable {
						continue
					}
					if pubErr := deadLetter.PublishFailed(context.Background(), repository.FailedIngestTask{
						VideoUID:    model.DeriveVideoUID(task.ObjectKey),
						ObjectKey:   task.ObjectKey,
						ContentHash: task.ContentHash,
						Err:         err.Error(),
					}); pubErr != nil {
						logger.Error("failed to publish to dead-letter queue",
							slog.String("object_key", task.ObjectKey), slog.String("error", pubErr.Error()))
					}
				}
			}
		}(i)
	}
}

func setupRouter(logger *slog.Logger, ingestHandler *handler.IngestHandler, rateLimitRPS int, rateLimitWindow time.Duration) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", handler.Health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.With(httprate.LimitByIP(rateLimitRPS, rateLimitWindow)).
		Post("/webhooks/video-ingestion", ingestHandler.Handle)

	return r
}
