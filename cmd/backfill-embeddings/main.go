// backfill-embeddings enqueues River embedding jobs for artworks whose
// embedding is null. Run it after importing the graph; cmd/worker processes the jobs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gallery-ai/critic/internal/app"
	"github.com/gallery-ai/critic/internal/repository"
	"github.com/gallery-ai/critic/internal/workers"
)

const (
	serviceName       = "critic-backfill-embeddings"
	enqueueMaxRetries = 3
	exitSuccess       = 0
	exitFailure       = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, tel, err := app.Bootstrap(serviceName, false)
	if err != nil {
		slog.Error("startup failed", "error", err)

		return exitFailure
	}
	defer tel.Shutdown(context.WithoutCancel(ctx))

	db, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	riverClient, err := app.NewRiverClient(cfg, db, tel, logger, false)
	if err != nil {
		logger.Error("failed to create River client", "error", err)

		return exitFailure
	}

	enqueued, err := workers.BackfillEmbeddings(ctx, workers.BackfillParams{
		Lister: repository.NewArtworksRepository(db),
		Inserter: workers.NewRetryingInserter(riverClient, workers.RetryingInserterConfig{
			MaxRetries: enqueueMaxRetries,
			Logger:     logger,
		}),
		MaxAttempts: cfg.EmbeddingMaxAttempts,
		Metrics:     tel.EmbeddingMetrics(),
		Logger:      logger,
	})
	if err != nil {
		logger.Error("backfill failed", "enqueued", enqueued, "error", err)

		return exitFailure
	}

	logger.Info("backfill complete", "enqueued", enqueued)

	fmt.Printf("Enqueued %d embedding job(s).\n", enqueued)

	return exitSuccess
}
