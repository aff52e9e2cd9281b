// enrich extracts per-dimension reasons from the free-text comment of every
// dataset row and writes them to reason_for_<dimension> columns.
//
// The output is checkpointed every CHECKPOINT_EVERY rows; rerunning with the
// same input and output resumes where the last checkpoint left off.
//
// Usage:
//
//	enrich --input APDDv2.csv --output APDDv2_enriched.csv [--overwrite]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gallery-ai/critic/internal/app"
	"github.com/gallery-ai/critic/internal/enrich"
)

const serviceName = "critic-enrich"

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
		params      enrich.RunParams
		checkpoints int
	)

	cmd := &cobra.Command{
		Use:           "enrich",
		Short:         "Extract per-dimension reasons from dataset comments",
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

			done, err := enrich.Done(params.Output)
			if err != nil {
				return err
			}

			if done && !params.Overwrite {
				logger.Info("enrichment already complete", "output", params.Output)

				return nil
			}

			params.CheckpointEvery = cfg.CheckpointEvery
			if checkpoints > 0 {
				params.CheckpointEvery = checkpoints
			}

			runner, err := app.NewEnrichRunner(ctx, cfg, tel, logger)
			if err != nil {
				return err
			}

			stats, err := runner.Run(ctx, params)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"Enriched %d row(s), %d without reasons, %d empty, %d already filled, %d failed (started at row %d of %d).\n",
				stats.Enriched, stats.NoReasons, stats.SkippedEmpty, stats.AlreadyFilled,
				stats.FailedNulled, stats.StartRow, stats.TotalRows)

			return err
		},
	}

	cmd.Flags().StringVar(&params.Input, "input", "", "dataset CSV with a comment column (required)")
	cmd.Flags().StringVar(&params.Output, "output", "", "enriched CSV to write (required)")
	cmd.Flags().BoolVar(&params.Overwrite, "overwrite", false, "re-extract rows that already have reasons")
	cmd.Flags().IntVar(&checkpoints, "checkpoint-every", 0, "rows between checkpoints (default: CHECKPOINT_EVERY)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
