// Package workers provides River job workers and the backfill that feeds them.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
	"github.com/gallery-ai/critic/internal/models"
	"github.com/gallery-ai/critic/internal/observability"
)

const artworkEmbeddingTimeout = 30 * time.Second

// ArtworkStore is the minimal artwork persistence needed by the worker.
type ArtworkStore interface {
	GetByID(ctx context.Context, id string) (*models.Artwork, error)
	SetEmbedding(ctx context.Context, id string, embedding []float32) error
}

// ImageSource reads reference images by filename.
type ImageSource interface {
	Read(ctx context.Context, filename string) ([]byte, error)
}

// ImageEncoder turns image bytes into a normalized embedding.
type ImageEncoder interface {
	Encode(ctx context.Context, data []byte) ([]float32, error)
}

// ArtworkEmbeddingWorker encodes reference artwork images and stores their embeddings.
type ArtworkEmbeddingWorker struct {
	river.WorkerDefaults[ArtworkEmbeddingArgs]

	artworks ArtworkStore
	images   ImageSource
	encoder  ImageEncoder
	metrics  observability.EmbeddingMetrics
	logger   *slog.Logger
}

// NewArtworkEmbeddingWorker creates the worker. metrics may be nil when metrics are disabled.
func NewArtworkEmbeddingWorker(
	artworks ArtworkStore,
	images ImageSource,
	encoder ImageEncoder,
	metrics observability.EmbeddingMetrics,
	logger *slog.Logger,
) *ArtworkEmbeddingWorker {
	if logger == nil {
		logger = slog.Default()
	}

	return &ArtworkEmbeddingWorker{
		artworks: artworks,
		images:   images,
		encoder:  encoder,
		metrics:  metrics,
		logger:   logger,
	}
}

// Timeout limits how long a single embedding job can run.
func (w *ArtworkEmbeddingWorker) Timeout(*river.Job[ArtworkEmbeddingArgs]) time.Duration {
	return artworkEmbeddingTimeout
}

// Work loads the artwork, encodes its image and persists the embedding.
// Permanent failures (unknown artwork, unreadable or undecodable image) are
// recorded and dropped; transient ones are retried until the last attempt.
func (w *ArtworkEmbeddingWorker) Work(ctx context.Context, job *river.Job[ArtworkEmbeddingArgs]) error {
	args := job.Args
	start := time.Now()
	logger := w.logger.With("artwork_id", args.ArtworkID, "attempt", job.Attempt)

	artwork, err := w.artworks.GetByID(ctx, args.ArtworkID)
	if err != nil {
		if errors.Is(err, critiqueerrors.ErrStoreUnavailable) {
			return w.retryOrDrop(ctx, job, start, "get_artwork", fmt.Errorf("get artwork: %w", err))
		}

		w.recordFinal(ctx, start, "get_artwork")
		logger.Error("embedding: get artwork failed", "error", err)

		return nil
	}

	if len(artwork.Embedding) > 0 && !args.Force {
		w.record(ctx, start, observability.EmbeddingOutcomeSkipped)
		logger.Info("embedding: skipped (already encoded)")

		return nil
	}

	data, err := w.images.Read(ctx, artwork.Filename)
	if err != nil {
		w.recordFinal(ctx, start, "read_image")
		logger.Error("embedding: read image failed", "filename", artwork.Filename, "error", err)

		return nil
	}

	vector, err := w.encoder.Encode(ctx, data)
	if err != nil {
		if errors.Is(err, critiqueerrors.ErrModelInference) {
			return w.retryOrDrop(ctx, job, start, "encode", fmt.Errorf("encode %s: %w", artwork.Filename, err))
		}

		w.recordFinal(ctx, start, "encode")
		logger.Error("embedding: image cannot be encoded", "filename", artwork.Filename, "error", err)

		return nil
	}

	if err := w.artworks.SetEmbedding(ctx, artwork.ID, vector); err != nil {
		return w.retryOrDrop(ctx, job, start, "store", fmt.Errorf("set artwork embedding: %w", err))
	}

	w.record(ctx, start, observability.EmbeddingOutcomeSuccess)
	logger.Info("embedding: stored", "filename", artwork.Filename)

	return nil
}

// retryOrDrop returns err so River retries, or nil on the final attempt.
func (w *ArtworkEmbeddingWorker) retryOrDrop(
	ctx context.Context,
	job *river.Job[ArtworkEmbeddingArgs],
	start time.Time,
	reason string,
	err error,
) error {
	if w.metrics != nil {
		w.metrics.RecordWorkerError(ctx, reason)
	}

	if job.Attempt >= job.MaxAttempts {
		w.record(ctx, start, observability.EmbeddingOutcomeFailedFinal)
		w.logger.Error("embedding: failed (final attempt)",
			"artwork_id", job.Args.ArtworkID,
			"attempt", job.Attempt,
			"error", err,
		)

		return nil
	}

	w.record(ctx, start, observability.EmbeddingOutcomeRetry)

	return err
}

func (w *ArtworkEmbeddingWorker) recordFinal(ctx context.Context, start time.Time, reason string) {
	if w.metrics != nil {
		w.metrics.RecordWorkerError(ctx, reason)
	}

	w.record(ctx, start, observability.EmbeddingOutcomeFailedFinal)
}

func (w *ArtworkEmbeddingWorker) record(ctx context.Context, start time.Time, status string) {
	if w.metrics == nil {
		return
	}

	w.metrics.RecordEmbeddingOutcome(ctx, status)
	w.metrics.RecordEmbeddingDuration(ctx, time.Since(start), status)
}
