// Package app builds the long-lived services of a screening run from
// configuration, acting as the dependency injection container for the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screener/internal/analysis"
	"github.com/JakeFAU/batch-screener/internal/checkpoint"
	"github.com/JakeFAU/batch-screener/internal/clock/system"
	"github.com/JakeFAU/batch-screener/internal/config"
	"github.com/JakeFAU/batch-screener/internal/fetcher/yahoo"
	"github.com/JakeFAU/batch-screener/internal/id/uuid"
	"github.com/JakeFAU/batch-screener/internal/orchestrator"
	"github.com/JakeFAU/batch-screener/internal/policy/ratelimit"
	"github.com/JakeFAU/batch-screener/internal/progress"
	"github.com/JakeFAU/batch-screener/internal/progress/sinks"
	pubsubpublisher "github.com/JakeFAU/batch-screener/internal/publisher/pubsub"
	"github.com/JakeFAU/batch-screener/internal/screener"
	"github.com/JakeFAU/batch-screener/internal/storage"
	"github.com/JakeFAU/batch-screener/internal/storage/gcs"
	"github.com/JakeFAU/batch-screener/internal/storage/local"
	"github.com/JakeFAU/batch-screener/internal/storage/memory"
	"github.com/JakeFAU/batch-screener/internal/storage/postgres"
	"github.com/JakeFAU/batch-screener/internal/telemetry"
)

// App holds the services shared by the CLI commands.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Checkpoint *checkpoint.Store
	Engine     *orchestrator.Engine
	Hub        *progress.Hub

	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

type options struct {
	backend    storage.Backend
	fetcher    screener.Fetcher
	enricher   screener.Enricher
	publisher  screener.Publisher
	registerer prometheus.Registerer
	traceOpts  []sdktrace.TracerProviderOption
}

// Option overrides a service that New would otherwise build from config.
type Option func(*options)

// WithBackend replaces the configured checkpoint backend.
func WithBackend(b storage.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithFetcher replaces the market data client for both fetch and enrichment.
func WithFetcher(f screener.Fetcher, e screener.Enricher) Option {
	return func(o *options) {
		o.fetcher = f
		o.enricher = e
	}
}

// WithPublisher replaces the Pub/Sub publisher.
func WithPublisher(p screener.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithRegisterer registers progress metrics on r instead of the default
// registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithTraceOptions appends tracer provider options, such as span processors,
// used when tracing is enabled.
func WithTraceOptions(opts ...sdktrace.TracerProviderOption) Option {
	return func(o *options) { o.traceOpts = append(o.traceOpts, opts...) }
}

// New initializes every service named by cfg. It fails fast when a backend
// cannot be reached; services created before the failure are closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			SampleRatio: cfg.Telemetry.SampleRatio,
		}, o.traceOpts...)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		a.addCloser("tracer provider", tp.Shutdown)
	}

	backend := o.backend
	if backend == nil {
		backend, err = a.openBackend(ctx, cfg.Checkpoint)
		if err != nil {
			return nil, err
		}
	}
	a.Checkpoint = checkpoint.NewStore(backend, cfg.Checkpoint.Name, logger.Named("checkpoint"))

	fetcher, enricher := o.fetcher, o.enricher
	if fetcher == nil {
		client := yahoo.New(yahoo.Config{
			BaseURL:   cfg.Fetcher.BaseURL,
			UserAgent: cfg.Fetcher.UserAgent,
			Timeout:   cfg.Fetcher.Timeout,
		}, logger.Named("yahoo"))
		fetcher, enricher = client, client
	}
	if len(cfg.Screen.EnrichPhases) == 0 {
		enricher = nil
	}

	publisher := o.publisher
	if publisher == nil && cfg.PubSub.TopicName != "" {
		publisher, err = a.openPublisher(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
	}

	promSink, err := sinks.NewPrometheusSink(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("progress metrics: %w", err)
	}
	a.Hub = progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)
	a.addCloser("progress hub", a.Hub.Close)

	a.Engine, err = orchestrator.New(orchestrator.Config{
		Workers:           cfg.Screen.Workers,
		CheckpointCadence: cfg.Screen.CheckpointCadence,
		Resume:            cfg.Screen.Resume,
		BaselineTicker:    screener.WorkItem(cfg.Screen.BaselineTicker),
		Window:            cfg.Screen.Window(),
		Thresholds:        cfg.Screen.Thresholds(),
		EnrichPhases:      cfg.Screen.EnrichPhases,
		ProgressLogEvery:  cfg.Screen.ProgressLogEvery,
		PublishTopic:      cfg.PubSub.TopicName,
	}, orchestrator.Deps{
		Fetcher:  fetcher,
		Analyzer: analysis.New(analysis.DefaultConfig()),
		Enricher: enricher,
		Limiter: ratelimit.New(ratelimit.Config{
			PerWorkerDelay: cfg.Screen.PerWorkerDelay,
			GlobalRPS:      cfg.Screen.GlobalRPS,
			GlobalBurst:    cfg.Screen.GlobalBurst,
		}),
		Store:     a.Checkpoint,
		Publisher: publisher,
		Emitter:   a.Hub,
		Clock:     system.New(),
		IDs:       uuid.New(),
		Logger:    logger.Named("orchestrator"),
	})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	logger.Info("application services initialized",
		zap.String("checkpoint_backend", cfg.Checkpoint.Backend),
		zap.Bool("publishing", publisher != nil),
		zap.Bool("enrichment", enricher != nil),
		zap.Bool("tracing", cfg.Telemetry.TracingEnabled),
	)
	return a, nil
}

func (a *App) openBackend(ctx context.Context, cfg config.CheckpointConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		b, err := local.New(local.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local checkpoint backend: %w", err)
		}
		return b, nil
	case config.BackendMemory:
		a.Logger.Warn("memory checkpoint backend selected; progress will not survive the process")
		return memory.NewBlobStore(), nil
	case config.BackendGCS:
		client, err := cloudstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		a.addCloser("gcs client", func(context.Context) error { return client.Close() })
		b, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.GCSPrefix})
		if err != nil {
			return nil, fmt.Errorf("gcs checkpoint backend: %w", err)
		}
		return b, nil
	case config.BackendPostgres:
		b, err := postgres.New(ctx, postgres.Config{DSN: cfg.PostgresDSN, Table: cfg.PostgresTable})
		if err != nil {
			return nil, fmt.Errorf("postgres checkpoint backend: %w", err)
		}
		a.addCloser("postgres pool", func(context.Context) error {
			b.Close()
			return nil
		})
		if err := b.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("postgres checkpoint schema: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}

func (a *App) openPublisher(ctx context.Context, cfg config.PubSubConfig) (screener.Publisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	a.addCloser("pubsub client", func(context.Context) error { return client.Close() })
	pub := pubsubpublisher.New(client)
	a.addCloser("pubsub publisher", func(context.Context) error {
		pub.Close()
		return nil
	})
	a.Logger.Info("publishing run summaries", zap.String("topic", cfg.TopicName))
	return pub, nil
}

func (a *App) addCloser(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Close releases services in reverse creation order. Every closer runs; the
// failures are joined.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.Logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
