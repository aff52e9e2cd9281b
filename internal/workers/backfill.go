package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/gallery-ai/critic/internal/observability"
)

const defaultBackfillBatchSize = 500

// MissingEmbeddingLister lists artworks that still need an embedding.
type MissingEmbeddingLister interface {
	ListIDsMissingEmbedding(ctx context.Context) ([]string, error)
}

// BackfillParams configures BackfillEmbeddings. Metrics and Logger may be nil.
type BackfillParams struct {
	Lister      MissingEmbeddingLister
	Inserter    JobInserter
	MaxAttempts int
	BatchSize   int
	Metrics     observability.EmbeddingMetrics
	Logger      *slog.Logger
}

// BackfillEmbeddings enqueues one artwork_embedding job per artwork without an
// embedding and returns the number of jobs enqueued. Jobs already pending for
// an artwork are deduplicated by River and not counted.
func BackfillEmbeddings(ctx context.Context, p BackfillParams) (int, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBackfillBatchSize
	}

	ids, err := p.Lister.ListIDsMissingEmbedding(ctx)
	if err != nil {
		return 0, fmt.Errorf("list artworks missing embedding: %w", err)
	}

	opts := &river.InsertOpts{
		Queue:       EmbeddingsQueueName,
		MaxAttempts: p.MaxAttempts,
	}

	enqueued := 0

	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))

		params := make([]river.InsertManyParams, 0, end-start)
		for _, id := range ids[start:end] {
			params = append(params, river.InsertManyParams{
				Args:       ArtworkEmbeddingArgs{ArtworkID: id},
				InsertOpts: opts,
			})
		}

		results, err := p.Inserter.InsertMany(ctx, params)
		if err != nil {
			return enqueued, fmt.Errorf("enqueue embedding jobs: %w", err)
		}

		batch := 0

		for _, r := range results {
			if r != nil && !r.UniqueSkippedAsDuplicate {
				batch++
			}
		}

		enqueued += batch

		if p.Metrics != nil {
			p.Metrics.RecordJobsEnqueued(ctx, int64(batch))
		}

		logger.Info("embedding: backfill batch enqueued", "enqueued", batch, "offset", start, "total", len(ids))
	}

	return enqueued, nil
}
