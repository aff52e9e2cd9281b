// Package app wires configuration, telemetry, stores and models into the
// components the commands run.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/gallery-ai/critic/internal/clip"
	"github.com/gallery-ai/critic/internal/codec"
	"github.com/gallery-ai/critic/internal/config"
	"github.com/gallery-ai/critic/internal/enrich"
	"github.com/gallery-ai/critic/internal/graphqa"
	"github.com/gallery-ai/critic/internal/imaging"
	"github.com/gallery-ai/critic/internal/llm"
	"github.com/gallery-ai/critic/internal/llm/googleai"
	"github.com/gallery-ai/critic/internal/llm/openai"
	"github.com/gallery-ai/critic/internal/models"
	"github.com/gallery-ai/critic/internal/observability"
	"github.com/gallery-ai/critic/internal/repository"
	"github.com/gallery-ai/critic/internal/service"
	"github.com/gallery-ai/critic/internal/workers"
	"github.com/gallery-ai/critic/pkg/database"
)

var errUnsupportedProvider = errors.New("unsupported model provider")

// Telemetry holds the providers and collectors of one process.
// Metrics is nil when metrics are disabled; MetricsHandler is set only for Prometheus.
type Telemetry struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
	Metrics        *observability.Metrics
	MetricsHandler http.Handler
}

// SetupTelemetry creates meter and tracer providers from cfg and installs them
// globally. With prometheus set, metrics are exposed through MetricsHandler
// instead of being pushed over OTLP.
func SetupTelemetry(cfg *config.Config, serviceName string, prometheus bool) (*Telemetry, error) {
	t := &Telemetry{}

	var err error

	switch {
	case prometheus:
		t.MeterProvider, t.MetricsHandler, err = observability.NewPrometheusMeterProvider(serviceName)
	case cfg.OtelMetricsExporter == "":
		slog.Debug("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	default:
		t.MeterProvider, err = observability.NewMeterProvider(cfg, serviceName)
	}

	if err != nil {
		return nil, fmt.Errorf("create meter provider: %w", err)
	}

	if t.MeterProvider != nil {
		t.Metrics, err = observability.NewMetrics(t.MeterProvider.Meter(serviceName))
		if err != nil {
			t.Shutdown(context.Background())

			return nil, fmt.Errorf("create metrics: %w", err)
		}

		otel.SetMeterProvider(t.MeterProvider)
	}

	t.TracerProvider, err = observability.NewTracerProvider(cfg, serviceName)
	if err != nil {
		t.Shutdown(context.Background())

		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	if t.TracerProvider != nil {
		otel.SetTracerProvider(t.TracerProvider)
	}

	return t, nil
}

// Shutdown flushes both providers. Errors are logged.
func (t *Telemetry) Shutdown(ctx context.Context) {
	if t == nil {
		return
	}

	if err := observability.ShutdownTracerProvider(ctx, t.TracerProvider); err != nil {
		slog.Error("shutdown tracer provider", "error", err)
	}

	if err := observability.ShutdownMeterProvider(ctx, t.MeterProvider); err != nil {
		slog.Error("shutdown meter provider", "error", err)
	}
}

func (t *Telemetry) critiqueMetrics() observability.CritiqueMetrics {
	if t == nil || t.Metrics == nil {
		return nil
	}

	return t.Metrics.Critique
}

func (t *Telemetry) cacheMetrics() observability.CacheMetrics {
	if t == nil || t.Metrics == nil {
		return nil
	}

	return t.Metrics.Cache
}

// EmbeddingMetrics returns the embedding collectors or nil when metrics are disabled.
func (t *Telemetry) EmbeddingMetrics() observability.EmbeddingMetrics {
	if t == nil || t.Metrics == nil {
		return nil
	}

	return t.Metrics.Embeddings
}

// EnrichmentMetrics returns the enrichment collectors or nil when metrics are disabled.
func (t *Telemetry) EnrichmentMetrics() observability.EnrichmentMetrics {
	if t == nil || t.Metrics == nil {
		return nil
	}

	return t.Metrics.Enrichment
}

// Bootstrap loads configuration, installs the JSON logger as the default and
// sets up telemetry. Callers must Shutdown the returned Telemetry.
func Bootstrap(serviceName string, prometheus bool) (*config.Config, *slog.Logger, *Telemetry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logger := observability.NewLogger(os.Stderr, cfg.LogLevel).With("service", serviceName)
	slog.SetDefault(logger)

	tel, err := SetupTelemetry(cfg, serviceName, prometheus)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, logger, tel, nil
}

// NewChatModel creates the chat client for m. name is the env prefix used in errors.
func NewChatModel(ctx context.Context, name string, m config.ModelConfig) (llm.ChatModel, error) {
	if err := config.RequireAPIKey(name, m); err != nil {
		return nil, err
	}

	switch m.Provider {
	case config.ProviderOpenAI:
		return openai.NewClient(m.APIKey, openai.WithModel(m.Model), openai.WithBaseURL(m.BaseURL)), nil
	case config.ProviderGoogle:
		client, err := googleai.NewClient(ctx, m.APIKey, googleai.WithModel(m.Model))
		if err != nil {
			return nil, fmt.Errorf("create %s google client: %w", name, err)
		}

		return client, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedProvider, m.Provider)
	}
}

// OpenDatabase connects to Postgres with pgvector types registered.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL,
		database.WithVectorTypes(), database.WithMaxConns(cfg.DatabaseMaxConns))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return db, nil
}

// NewCodec creates the image codec backed by the CLIP inference service.
func NewCodec(cfg *config.Config, logger *slog.Logger) *codec.VectorCodec {
	model := clip.NewClient(clip.ClientOptions{
		BaseURL: cfg.ClipServiceURL,
		Timeout: cfg.ClipTimeout,
	})

	return codec.New(model, codec.WithDimensions(cfg.EmbeddingDimensions), codec.WithLogger(logger))
}

// NewGraphChain creates the generate-execute-answer chain over the rating graph.
func NewGraphChain(ctx context.Context, cfg *config.Config, db *pgxpool.Pool, logger *slog.Logger) (*graphqa.Chain, error) {
	model, err := NewChatModel(ctx, "GRAPHQA", cfg.GraphQA)
	if err != nil {
		return nil, err
	}

	return graphqa.NewChain(graphqa.ChainParams{
		Model:          model,
		Executor:       repository.NewGraphRepository(db),
		TopK:           cfg.GraphQATopK,
		AnnotationTopK: annotationTopK(cfg),
		Logger:         logger,
	}), nil
}

// annotationTopK is the configured row cap, raised so that every dimension of
// every retrieved artwork fits.
func annotationTopK(cfg *config.Config) int {
	k := cfg.RetrievalK
	if k <= 0 {
		k = service.DefaultRetrievalK
	}

	return max(cfg.GraphQAAnnotationTopK, k*len(models.Dimensions))
}

// NewCritiqueService wires the critique pipeline against Postgres.
// In direct mode evidence is read with a templated query; questions still go through the chain.
func NewCritiqueService(
	ctx context.Context,
	cfg *config.Config,
	db *pgxpool.Pool,
	tel *Telemetry,
	logger *slog.Logger,
) (*service.CritiqueService, error) {
	critic, err := NewChatModel(ctx, "CRITIC", cfg.Critic)
	if err != nil {
		return nil, err
	}

	chain, err := NewGraphChain(ctx, cfg, db, logger)
	if err != nil {
		return nil, err
	}

	var querier service.AnnotationQuerier = chain
	if cfg.GraphQAMode == config.GraphQAModeDirect {
		querier = graphqa.NewDirect(repository.NewGraphRepository(db))
	}

	references, err := service.NewReferenceImages(service.ReferenceImagesParams{
		Source:       imaging.NewDirSource(cfg.ImagesDir),
		Options:      imaging.DefaultOptimizeOptions(),
		CacheSize:    cfg.ReferenceCacheSize,
		CacheMetrics: tel.cacheMetrics(),
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create reference images: %w", err)
	}

	return service.NewCritiqueService(service.CritiqueServiceParams{
		Encoder: NewCodec(cfg, logger),
		Retriever: service.NewSimilarityIndex(service.SimilarityIndexParams{
			Store:      repository.NewArtworksRepository(db),
			Dimensions: cfg.EmbeddingDimensions,
			Timeout:    cfg.StoreTimeout,
			Metrics:    tel.critiqueMetrics(),
			Logger:     logger,
		}),
		Evidence: service.NewEvidenceAssembler(service.EvidenceAssemblerParams{
			Querier: querier,
			Metrics: tel.critiqueMetrics(),
			Logger:  logger,
		}),
		References: references,
		Graph:      chain,
		Model:      critic,
		RetrievalK: cfg.RetrievalK,
		MaxTokens:  cfg.CriticMaxTokens,
		Upload:     imaging.DefaultOptimizeOptions(),
		Metrics:    tel.critiqueMetrics(),
		Logger:     logger,
	}), nil
}

// NewEnrichRunner creates the enrichment runner with a rate-limited extractor.
func NewEnrichRunner(ctx context.Context, cfg *config.Config, tel *Telemetry, logger *slog.Logger) (*enrich.Runner, error) {
	model, err := NewChatModel(ctx, "ENRICH", cfg.Enrich)
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.EnrichRateLimit), 1)

	return enrich.NewRunner(enrich.NewExtractor(model, limiter), tel.EnrichmentMetrics(), logger), nil
}

// NewRiverClient creates a River client. With withWorkers set, the artwork
// embedding worker is registered and the embeddings queue is consumed;
// otherwise the client can only insert.
func NewRiverClient(
	cfg *config.Config,
	db *pgxpool.Pool,
	tel *Telemetry,
	logger *slog.Logger,
	withWorkers bool,
) (*river.Client[pgx.Tx], error) {
	riverConfig := &river.Config{
		MaxAttempts:  cfg.EmbeddingMaxAttempts,
		ErrorHandler: &workers.ErrorHandler{Logger: logger, Metrics: tel.EmbeddingMetrics()},
		Logger:       logger,
	}

	if withWorkers {
		riverWorkers := river.NewWorkers()
		river.AddWorker(riverWorkers, workers.NewArtworkEmbeddingWorker(
			repository.NewArtworksRepository(db),
			imaging.NewDirSource(cfg.ImagesDir),
			NewCodec(cfg, logger),
			tel.EmbeddingMetrics(),
			logger,
		))

		riverConfig.Workers = riverWorkers
		riverConfig.Queues = map[string]river.QueueConfig{
			workers.EmbeddingsQueueName: {MaxWorkers: cfg.EmbeddingMaxConcurrent},
		}
	}

	client, err := river.NewClient(riverpgxv5.New(db), riverConfig)
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return client, nil
}
