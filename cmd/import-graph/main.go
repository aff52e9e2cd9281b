// import-graph creates the rating graph schema and loads the artwork nodes and
// HAS_LEVEL edges produced by prepare-dataset into Postgres.
//
// Usage:
//
//	import-graph --nodes Artwork.csv --edges HAS_LEVEL.csv [--enqueue-embeddings]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gallery-ai/critic/internal/app"
	"github.com/gallery-ai/critic/internal/dataset"
	"github.com/gallery-ai/critic/internal/models"
	"github.com/gallery-ai/critic/internal/repository"
	"github.com/gallery-ai/critic/internal/workers"
	"github.com/gallery-ai/critic/pkg/embeddings"
)

const (
	serviceName     = "critic-import-graph"
	annotationBatch = 1000
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		nodesPath string
		edgesPath string
		enqueue   bool
	)

	cmd := &cobra.Command{
		Use:           "import-graph",
		Short:         "Load artwork nodes and HAS_LEVEL edges into Postgres",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, logger, tel, err := app.Bootstrap(serviceName, false)
			if err != nil {
				return err
			}
			defer tel.Shutdown(context.WithoutCancel(ctx))

			nodes, edges, err := readInputs(nodesPath, edgesPath)
			if err != nil {
				return err
			}

			db, err := app.OpenDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.EnsureSchema(ctx, db); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}

			stats, err := importGraph(ctx, repository.NewArtworksRepository(db), repository.NewGraphRepository(db),
				nodes, edges, cfg.EmbeddingDimensions, logger)
			if err != nil {
				return err
			}

			logger.Info("graph imported", "artworks", stats.artworks, "edges", stats.edges, "skipped_edges", stats.skipped)

			if !enqueue {
				return nil
			}

			client, err := app.NewRiverClient(cfg, db, tel, logger, false)
			if err != nil {
				return err
			}

			n, err := workers.BackfillEmbeddings(ctx, workers.BackfillParams{
				Lister:      repository.NewArtworksRepository(db),
				Inserter:    workers.NewRetryingInserter(client, workers.RetryingInserterConfig{MaxRetries: 3, Logger: logger}),
				MaxAttempts: cfg.EmbeddingMaxAttempts,
				Metrics:     tel.EmbeddingMetrics(),
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			logger.Info("embedding jobs enqueued", "enqueued", n)

			return nil
		},
	}

	cmd.Flags().StringVar(&nodesPath, "nodes", "", "artwork node CSV with id:ID and filename:string (required)")
	cmd.Flags().StringVar(&edgesPath, "edges", "", "HAS_LEVEL edge list CSV (optional)")
	cmd.Flags().BoolVar(&enqueue, "enqueue-embeddings", false, "enqueue embedding jobs for artworks without an embedding")
	_ = cmd.MarkFlagRequired("nodes")

	return cmd
}

func readInputs(nodesPath, edgesPath string) ([]dataset.ArtworkNode, []dataset.Edge, error) {
	nodeFile, err := os.Open(nodesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open artwork nodes: %w", err)
	}
	defer nodeFile.Close()

	nodes, err := dataset.ReadArtworkNodes(nodeFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read artwork nodes: %w", err)
	}

	if edgesPath == "" {
		return nodes, nil, nil
	}

	edgeFile, err := os.Open(edgesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open edge list: %w", err)
	}
	defer edgeFile.Close()

	edges, err := dataset.ReadEdgeList(edgeFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read edge list: %w", err)
	}

	return nodes, edges, nil
}

type artworkUpserter interface {
	Upsert(ctx context.Context, artwork models.Artwork) error
}

type annotationUpserter interface {
	UpsertAnnotations(ctx context.Context, annotations []models.QualityAnnotation) error
}

type importStats struct {
	artworks int
	edges    int
	skipped  int
}

// importGraph upserts every node, then the edges whose start node was imported.
// Node embeddings must have dimensions components and are stored unit-normalized.
func importGraph(
	ctx context.Context,
	artworks artworkUpserter,
	graph annotationUpserter,
	nodes []dataset.ArtworkNode,
	edges []dataset.Edge,
	dimensions int,
	logger *slog.Logger,
) (importStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var stats importStats

	filenames := make(map[string]string, len(nodes))

	for _, n := range nodes {
		var embedding []float32
		if n.Embedding != nil {
			v, err := embeddings.Prepare(n.Embedding, dimensions)
			if err != nil {
				return stats, fmt.Errorf("artwork %s embedding: %w", n.ID, err)
			}

			embedding = v
		}

		err := artworks.Upsert(ctx, models.Artwork{ID: n.ID, Filename: n.Filename, Embedding: embedding})
		if err != nil {
			return stats, fmt.Errorf("upsert artwork %s: %w", n.ID, err)
		}

		filenames[n.ID] = n.Filename
		stats.artworks++
	}

	batch := make([]models.QualityAnnotation, 0, annotationBatch)

	flush := func() error {
		if err := graph.UpsertAnnotations(ctx, batch); err != nil {
			return fmt.Errorf("upsert annotations: %w", err)
		}

		stats.edges += len(batch)
		batch = batch[:0]

		return nil
	}

	for _, e := range edges {
		filename, ok := filenames[e.StartID]
		if !ok {
			logger.Warn("edge start node not in artwork nodes, skipping", "start_id", e.StartID, "dimension", e.EndID)
			stats.skipped++

			continue
		}

		batch = append(batch, models.QualityAnnotation{
			ArtworkID: e.StartID,
			Filename:  filename,
			Dimension: e.EndID,
			Level:     models.Level(e.Level),
			Reason:    e.Reason,
		})

		if len(batch) == annotationBatch {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if len(batch) > 0 {
		if err := flush(); err != nil {
			return stats, err
		}
	}

	return stats, nil
}
