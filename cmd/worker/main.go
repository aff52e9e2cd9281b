// worker runs the River embedding queue: it encodes artwork images and stores
// their embeddings. Operational endpoints (/health, /metrics) are served on METRICS_ADDR.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/gallery-ai/critic/internal/app"
	"github.com/gallery-ai/critic/internal/config"
	"github.com/gallery-ai/critic/internal/observability"
	"github.com/gallery-ai/critic/internal/opsserver"
	"github.com/gallery-ai/critic/internal/workers"
)

const (
	serviceName        = "critic-worker"
	defaultMetricsAddr = ":9090"
	queueDepthInterval = 15 * time.Second
	shutdownTimeout    = 30 * time.Second
	exitSuccess        = 0
	exitFailure        = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, tel, err := app.Bootstrap(serviceName, true)
	if err != nil {
		slog.Error("startup failed", "error", err)

		return exitFailure
	}

	db, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		tel.Shutdown(context.WithoutCancel(ctx))

		return exitFailure
	}

	riverClient, err := app.NewRiverClient(cfg, db, tel, logger, true)
	if err != nil {
		logger.Error("failed to create River client", "error", err)
		db.Close()
		tel.Shutdown(context.WithoutCancel(ctx))

		return exitFailure
	}

	w := &worker{
		cfg:    cfg,
		db:     db,
		river:  riverClient,
		tel:    tel,
		server: newOpsServer(cfg, db, tel),
		logger: logger,
	}

	code := exitSuccess
	if err := w.Run(ctx); err != nil {
		logger.Error("worker failed", "error", err)

		code = exitFailure
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := w.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)

		code = exitFailure
	}

	return code
}

func newOpsServer(cfg *config.Config, db *pgxpool.Pool, tel *app.Telemetry) *http.Server {
	addr := cfg.MetricsAddr
	if addr == "" {
		addr = defaultMetricsAddr
	}

	return opsserver.New(opsserver.Params{
		Addr:           addr,
		Name:           serviceName,
		Metrics:        tel.MetricsHandler,
		DB:             db,
		MeterProvider:  tel.MeterProvider,
		TracerProvider: tel.TracerProvider,
	})
}

type worker struct {
	cfg    *config.Config
	db     *pgxpool.Pool
	river  *river.Client[pgx.Tx]
	tel    *app.Telemetry
	server *http.Server
	logger *slog.Logger
}

// Run starts River and the ops server, then blocks until ctx is cancelled or
// a component fails. The internal River context is cancelled before returning.
func (w *worker) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	if metrics := w.tel.EmbeddingMetrics(); metrics != nil {
		go runQueueDepthPoller(riverCtx, w.db, metrics, w.logger)
	}

	go func() {
		if err := w.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case runErr <- fmt.Errorf("river: %w", err):
			default:
			}
		}
	}()

	go func() {
		w.logger.Info("Starting ops server", "addr", w.server.Addr,
			"queue", workers.EmbeddingsQueueName, "max_workers", w.cfg.EmbeddingMaxConcurrent)

		if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("ops server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown stops River (letting running jobs finish), the ops server, the
// database pool and telemetry, in that order. Returns the first error.
func (w *worker) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down worker")

	var first error

	if err := w.river.Stop(ctx); err != nil {
		first = fmt.Errorf("stop river: %w", err)
	}

	if err := w.server.Shutdown(ctx); err != nil {
		if first == nil {
			first = fmt.Errorf("shutdown ops server: %w", err)
		} else {
			w.logger.Error("shutdown ops server", "error", err)
		}
	}

	w.db.Close()
	w.tel.Shutdown(ctx)

	return first
}

// runQueueDepthPoller periodically updates the embeddings queue depth gauge.
func runQueueDepthPoller(ctx context.Context, db *pgxpool.Pool, metrics observability.EmbeddingMetrics, logger *slog.Logger) {
	ticker := time.NewTicker(queueDepthInterval)
	defer ticker.Stop()

	update := func() {
		var count int

		err := db.QueryRow(ctx,
			`SELECT COUNT(*) FROM river_job WHERE queue = $1 AND state IN ($2, $3, $4)`,
			workers.EmbeddingsQueueName,
			rivertype.JobStateAvailable, rivertype.JobStateRetryable, rivertype.JobStateScheduled,
		).Scan(&count)
		if err != nil {
			logger.WarnContext(ctx, "embeddings queue depth poll failed", "error", err)

			return
		}

		metrics.SetQueueDepth(count)
	}

	update()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
