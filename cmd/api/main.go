package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/Seezoo1225/naming-story/internal/handlers"
	"github.com/Seezoo1225/naming-story/internal/platform/config"
	pfirestore "github.com/Seezoo1225/naming-story/internal/platform/firestore"
	"github.com/Seezoo1225/naming-story/internal/platform/idempotency"
	"github.com/Seezoo1225/naming-story/internal/platform/jobs"
	"github.com/Seezoo1225/naming-story/internal/platform/kanjiapi"
	"github.com/Seezoo1225/naming-story/internal/platform/llm"
	"github.com/Seezoo1225/naming-story/internal/platform/observability"
	"github.com/Seezoo1225/naming-story/internal/platform/secrets"
	platformstorage "github.com/Seezoo1225/naming-story/internal/platform/storage"
	"github.com/Seezoo1225/naming-story/internal/repositories"
	firestoreRepo "github.com/Seezoo1225/naming-story/internal/repositories/firestore"
	sqliteRepo "github.com/Seezoo1225/naming-story/internal/repositories/sqlite"
	"github.com/Seezoo1225/naming-story/internal/services"
	"github.com/Seezoo1225/naming-story/internal/strokes"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(cfg, startedAt)

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     buildInfo.Version,
		Environment: buildInfo.Environment,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		logger.Fatal("failed to initialise tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown error", zap.Error(err))
		}
	}()

	dict, err := loadDictionary(ctx, cfg.Strokes, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to load stroke dictionary", zap.Error(err))
	}
	logger.Info("stroke dictionary loaded", zap.Int("entries", dict.Len()))

	resolverOpts := []strokes.ResolverOption{
		strokes.WithLogger(logger.Named("strokes")),
		strokes.WithUpstreamHints(cfg.Strokes.UpstreamHints),
	}
	var lookupClient *kanjiapi.Client
	if cfg.KanjiAPI.Enabled {
		lookupClient = kanjiapi.New(
			kanjiapi.WithBaseURL(cfg.KanjiAPI.BaseURL),
			kanjiapi.WithTimeout(cfg.KanjiAPI.Timeout),
			kanjiapi.WithConcurrency(cfg.KanjiAPI.Concurrency),
			kanjiapi.WithMaxAttempts(cfg.KanjiAPI.MaxAttempts),
			kanjiapi.WithLogger(logger.Named("kanjiapi")),
		)
		resolverOpts = append(resolverOpts, strokes.WithLookup(lookupClient))
	}
	resolver := strokes.NewResolver(dict, strokes.NewCache(cfg.Strokes.CacheSize), resolverOpts...)

	var generator services.CandidateGenerator
	if cfg.AI.APIKey != "" {
		anthropicGenerator, err := llm.NewAnthropicGenerator(llm.Config{
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
			MaxRetries:  cfg.AI.MaxRetries,
		})
		if err != nil {
			logger.Fatal("failed to initialise candidate generator", zap.Error(err))
		}
		generator = anthropicGenerator
		logger.Info("candidate generator ready", zap.String("model", anthropicGenerator.Model()))
	} else {
		logger.Warn("AI_API_KEY not configured; only debug generation is available")
	}

	eventLogger := observability.EventLogger(logger)
	newULID := func() string { return ulid.Make().String() }

	namingService, err := services.NewNamingService(services.NamingServiceDeps{
		Normalizer:    strokes.NewNormalizer(resolver),
		Generator:     generator,
		Fixtures:      services.FixtureGenerator{},
		MaxCandidates: cfg.AI.MaxCandidates,
		Clock:         time.Now,
		IDGenerator:   newULID,
		Logger:        eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise naming service", zap.Error(err))
	}

	checks := []repositories.DependencyCheck{{
		Name:    "dictionary",
		Timeout: 100 * time.Millisecond,
		Check: func(context.Context) error {
			if dict.Len() == 0 {
				return errors.New("dictionary is empty")
			}
			return nil
		},
	}}

	feedbackRepo, closeFeedbackRepo, feedbackChecks, err := newFeedbackRepository(cfg)
	if err != nil {
		logger.Fatal("failed to initialise feedback store", zap.Error(err))
	}
	defer closeFeedbackRepo()
	checks = append(checks, feedbackChecks...)

	publisher, closePublisher, err := newFeedbackPublisher(ctx, cfg.PubSub)
	if err != nil {
		logger.Fatal("failed to initialise feedback publisher", zap.Error(err))
	}
	defer closePublisher()

	feedbackService := services.NewFeedbackService(services.FeedbackServiceDeps{
		Repository:      feedbackRepo,
		Publisher:       publisher,
		MaxMessageRunes: cfg.Feedback.MaxMessageRunes,
		MaxAgentRunes:   cfg.Feedback.MaxAgentRunes,
		Clock:           time.Now,
		IDGenerator:     newULID,
		Logger:          eventLogger,
	})

	if lookupClient != nil {
		client := lookupClient
		checks = append(checks, repositories.DependencyCheck{
			Name:     "kanjiapi",
			Timeout:  2 * time.Second,
			Optional: true,
			Check: func(ctx context.Context) error {
				_, _, err := client.StrokeCount(ctx, "一")
				return err
			},
		})
	}

	healthRepo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		logger.Fatal("failed to initialise health checks", zap.Error(err))
	}
	systemService, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: healthRepo,
		Resolver:         resolver,
		AIKey:            cfg.AI.APIKey,
		Clock:            time.Now,
		Build:            buildInfo,
	})
	if err != nil {
		logger.Fatal("failed to initialise system service", zap.Error(err))
	}

	router := handlers.NewRouter(
		handlers.WithRequestTimeout(cfg.Server.RequestTimeout),
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.RecoveryMiddleware(logger),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithMutationMiddlewares(idempotency.Middleware(
			idempotency.NewMemoryStore(cfg.Server.IdempotencyEntries, cfg.Server.IdempotencyTTL),
			idempotency.WithLogger(logger.Named("idempotency")),
		)),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthBuildInfo(buildInfo),
			handlers.WithHealthSystemService(systemService),
		)),
		handlers.WithNamingRoutes(handlers.NewNamingHandlers(namingService).Routes),
		handlers.WithFeedbackRoutes(handlers.NewFeedbackHandlers(feedbackService).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("naming-story api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

// The fetcher is built before Load, so its settings come from a bare lookup.
func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		value, err := config.Lookup(key)
		if err != nil {
			return ""
		}
		return value
	}

	project := lookup("SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("GOOGLE_CLOUD_PROJECT")
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
	}
	if path := lookup("SECRETS_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// loadDictionary prefers a local file, then a Cloud Storage object, then the embedded artifact.
func loadDictionary(ctx context.Context, cfg config.StrokesConfig, storageCfg config.StorageConfig) (*strokes.Dictionary, error) {
	if path := strings.TrimSpace(cfg.DictionaryPath); path != "" {
		return strokes.LoadDictionaryFile(path)
	}
	if uri := strings.TrimSpace(cfg.DictionaryObject); uri != "" {
		var opts []platformstorage.ReaderOption
		if storageCfg.Endpoint != "" {
			opts = append(opts, platformstorage.WithEndpoint(storageCfg.Endpoint))
		}
		reader, err := platformstorage.NewObjectReader(ctx, opts...)
		if err != nil {
			return nil, err
		}
		defer reader.Close()

		rc, err := reader.Open(ctx, uri)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return strokes.LoadDictionary(rc)
	}
	return strokes.EmbeddedDictionary()
}

func newFeedbackRepository(cfg config.Config) (repositories.FeedbackRepository, func(), []repositories.DependencyCheck, error) {
	noop := func() {}
	switch cfg.Feedback.Store {
	case config.FeedbackStoreFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		repo, err := firestoreRepo.NewFeedbackRepository(provider, cfg.Firestore.FeedbackCollection)
		if err != nil {
			_ = provider.Close()
			return nil, noop, nil, err
		}
		check := repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check:   provider.Ping,
		}
		return repo, func() { _ = provider.Close() }, []repositories.DependencyCheck{check}, nil
	case config.FeedbackStoreSQLite:
		repo, err := sqliteRepo.Open(cfg.Feedback.SQLitePath)
		if err != nil {
			return nil, noop, nil, err
		}
		check := repositories.DependencyCheck{
			Name:    "sqlite",
			Timeout: 500 * time.Millisecond,
			Check:   repo.Ping,
		}
		return repo, func() { _ = repo.Close() }, []repositories.DependencyCheck{check}, nil
	default:
		return nil, noop, nil, nil
	}
}

func newFeedbackPublisher(ctx context.Context, cfg config.PubSubConfig) (services.FeedbackPublisher, func(), error) {
	noop := func() {}
	if strings.TrimSpace(cfg.FeedbackTopic) == "" {
		return nil, noop, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, noop, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(cfg.FeedbackTopic)
	publisher, err := jobs.NewPubSubFeedbackPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	return publisher, func() {
		topic.Stop()
		_ = client.Close()
	}, nil
}
