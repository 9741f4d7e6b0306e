package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/intellidocs/internal/config"
	"github.com/kirillkom/intellidocs/internal/core/ports"
	"github.com/kirillkom/intellidocs/internal/core/usecase"
	rediscache "github.com/kirillkom/intellidocs/internal/infrastructure/cache/redis"
	"github.com/kirillkom/intellidocs/internal/infrastructure/classifier"
	"github.com/kirillkom/intellidocs/internal/infrastructure/extractor"
	geminillm "github.com/kirillkom/intellidocs/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/intellidocs/internal/infrastructure/llm/ollama"
	openaillm "github.com/kirillkom/intellidocs/internal/infrastructure/llm/openai"
	natsqueue "github.com/kirillkom/intellidocs/internal/infrastructure/queue/nats"
	"github.com/kirillkom/intellidocs/internal/infrastructure/repository/memory"
	"github.com/kirillkom/intellidocs/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/intellidocs/internal/infrastructure/resilience"
	"github.com/kirillkom/intellidocs/internal/infrastructure/storage/localfs"
	s3storage "github.com/kirillkom/intellidocs/internal/infrastructure/storage/s3"
	"github.com/kirillkom/intellidocs/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Registry *prometheus.Registry
	Pipeline *metrics.PipelineMetrics

	// Queue is nil when NATS_URL is unset.
	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor

	closers []func()
}

// New wires every adapter for one process. service labels metrics.
func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (app *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	built := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Pipeline: metrics.NewPipelineMetrics(service, registry),
	}
	app = built
	defer func() {
		if err != nil {
			built.Close()
			app = nil
		}
	}()

	repo, err := app.openRepository(ctx)
	if err != nil {
		return nil, err
	}
	app.Repo = repo

	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	modelExecutor := app.newExecutor(resilience.ProfileModelCall)
	model, err := newCompletionModel(ctx, cfg, modelExecutor)
	if err != nil {
		return nil, fmt.Errorf("init completion model: %w", err)
	}
	if model == nil {
		logger.Warn("llm_disabled", "provider", cfg.LLMProvider)
	}

	var cache ports.ClassificationCache
	if cfg.RedisAddr != "" {
		redisCache, err := rediscache.Connect(ctx, rediscache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("init classification cache: %w", err)
		}
		app.closers = append(app.closers, func() { _ = redisCache.Close() })
		cache = redisCache
	}

	if cfg.NATSURL != "" {
		queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			QueueGroup:         cfg.NATSQueueGroup,
			HandlerTimeout:     cfg.WorkerHandlerTimeout,
			ResilienceExecutor: app.newExecutor(resilience.ProfileQueuePublish),
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.closers = append(app.closers, queue.Close)
		app.Queue = queue
	}

	textExtractor := extractor.New(extractor.PDFMode(cfg.ExtractPDFMode), logger)
	docClassifier := classifier.New(model, cache, classifier.Options{
		Temperature: cfg.ClassifierTemperature,
		MaxTokens:   cfg.ClassifierMaxTokens,
		PromptChars: cfg.ClassifierPromptChars,
	}, logger)

	processUC := usecase.NewProcessDocumentUseCase(repo, storage, textExtractor, docClassifier, app.Pipeline, logger)
	app.ProcessUC = processUC
	app.IngestUC = usecase.NewIngestDocumentUseCase(repo, processUC, app.Queue, usecase.IngestMode(cfg.IngestMode), logger)

	logger.Info("bootstrap_complete",
		"service", service,
		"ingest_mode", cfg.IngestMode,
		"llm_provider", cfg.LLMProvider,
		"storage_backend", cfg.StorageBackend,
		"postgres", cfg.PostgresDSN != "",
		"redis", cfg.RedisAddr != "",
		"nats", app.Queue != nil,
	)
	return app, nil
}

func (a *App) openRepository(ctx context.Context) (ports.DocumentRepository, error) {
	if a.Config.PostgresDSN == "" {
		a.Logger.Warn("repository_in_memory", "reason", "POSTGRES_DSN is empty")
		return memory.NewDocumentRepository(), nil
	}
	db, err := postgres.OpenDB(a.Config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closers = append(a.closers, func() { _ = db.Close() })

	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func openStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	if cfg.StorageBackend == "s3" {
		return s3storage.New(ctx, s3storage.Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PathStyle: cfg.S3PathStyle,
			Prefix:    cfg.S3Prefix,
		})
	}
	return localfs.New(cfg.StoragePath)
}

// newCompletionModel returns a nil model for provider "none"; the classifier
// then always uses the filename heuristic.
func newCompletionModel(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.CompletionModel, error) {
	switch cfg.LLMProvider {
	case "openai":
		return openaillm.New(openaillm.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.LLMTimeout,
		}, executor), nil
	case "ollama":
		return ollama.New(cfg.OllamaURL, cfg.OllamaModel, cfg.LLMTimeout, executor), nil
	case "gemini":
		client, err := geminillm.New(ctx, geminillm.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.LLMTimeout,
		}, executor)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

// newExecutor builds one executor per call profile; explicit config values
// override the profile defaults.
func (a *App) newExecutor(profile resilience.Profile) *resilience.Executor {
	return resilience.NewExecutor(resilienceConfig(a.Config),
		resilience.WithProfile(profile),
		resilience.WithLogger(a.Logger),
		resilience.WithStateObserver(a.Pipeline.ObserveBreakerState),
	)
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.RetryMaxAttempts,
		RetryInitialBackoff:     cfg.RetryInitialBackoff,
		RetryMaxBackoff:         cfg.RetryMaxBackoff,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenCalls, 0)),
	}
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
