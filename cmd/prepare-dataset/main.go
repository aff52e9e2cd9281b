// prepare-dataset transforms the rated artwork tables for import.
//
// Usage:
//
//	prepare-dataset split --input APDDv2.csv --output APDDv2_split.csv
//	prepare-dataset bin   --input APDDv2_enriched.csv --output APDDv2_binned.csv
//	prepare-dataset edges --input APDDv2_binned.csv --nodes Artwork.csv --output HAS_LEVEL.csv
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gallery-ai/critic/internal/dataset"
	"github.com/gallery-ai/critic/internal/observability"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "prepare-dataset",
		Short:         "Split categories, bin scores and export HAS_LEVEL edges",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			slog.SetDefault(observability.NewLogger(os.Stderr, logLevel))
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "debug, info, warn or error")
	root.AddCommand(newSplitCommand(), newBinCommand(), newEdgesCommand())

	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

type ioFlags struct {
	input  string
	output string
}

func (f *ioFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.input, "input", "", "input CSV (required)")
	cmd.Flags().StringVar(&f.output, "output", "", "output CSV (required)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
}

func newSplitCommand() *cobra.Command {
	var f ioFlags

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split artistic_categories into painting_category, artistic_style and subject_matter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := dataset.ReadTableFile(f.input)
			if err != nil {
				return err
			}

			stats, err := dataset.SplitCategoryColumns(t)
			if err != nil {
				return err
			}

			if err := t.WriteFile(f.output); err != nil {
				return err
			}

			slog.Info("categories split", "rows", stats.Rows, "with_categories", stats.WithCategories, "output", f.output)

			return nil
		},
	}

	f.register(cmd)

	return cmd
}

func newBinCommand() *cobra.Command {
	var f ioFlags

	cmd := &cobra.Command{
		Use:   "bin",
		Short: "Replace numeric dimension scores with level labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := dataset.ReadTableFile(f.input)
			if err != nil {
				return err
			}

			stats, err := dataset.BinScoreColumns(t)
			if err != nil {
				return err
			}

			if len(stats.MissingColumns) > 0 {
				slog.Warn("dimension columns missing from input", "columns", stats.MissingColumns)
			}

			if err := t.WriteFile(f.output); err != nil {
				return err
			}

			slog.Info("scores binned", "replaced", stats.Replaced, "empty", stats.SkippedEmpty, "output", f.output)

			return nil
		},
	}

	f.register(cmd)

	return cmd
}

func newEdgesCommand() *cobra.Command {
	var (
		f     ioFlags
		nodes string
	)

	cmd := &cobra.Command{
		Use:   "edges",
		Short: "Export one HAS_LEVEL edge per artwork and rated dimension",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nodeFile, err := os.Open(nodes)
			if err != nil {
				return fmt.Errorf("open artwork nodes: %w", err)
			}
			defer nodeFile.Close()

			artworks, err := dataset.ReadArtworkNodes(nodeFile)
			if err != nil {
				return err
			}

			t, err := dataset.ReadTableFile(f.input)
			if err != nil {
				return err
			}

			edges, stats, err := dataset.BuildEdgeList(t, dataset.FilenameIndex(artworks), slog.Default())
			if err != nil {
				return err
			}

			err = dataset.WriteFileAtomic(f.output, func(w io.Writer) error {
				return dataset.WriteEdgeList(w, edges)
			})
			if err != nil {
				return err
			}

			slog.Info("edge list written",
				"rows", stats.Rows,
				"edges", stats.Edges,
				"unknown_artworks", stats.UnknownArtworks,
				"empty_levels", stats.EmptyLevels,
				"output", f.output,
			)

			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&nodes, "nodes", "", "artwork node CSV with id:ID and filename:string (required)")
	_ = cmd.MarkFlagRequired("nodes")

	return cmd
}
