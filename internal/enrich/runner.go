package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gallery-ai/critic/internal/dataset"
	"github.com/gallery-ai/critic/internal/models"
	"github.com/gallery-ai/critic/internal/observability"
)

// DefaultCheckpointEvery is the number of rows between checkpoints.
const DefaultCheckpointEvery = 10

// ReasonExtractor returns the reasons found in one comment.
type ReasonExtractor interface {
	Extract(ctx context.Context, comment string) (Reasons, error)
}

// RunParams selects the files of one enrichment run.
type RunParams struct {
	Input           string
	Output          string
	CheckpointEvery int
	// Overwrite re-extracts rows that already carry reasons.
	Overwrite bool
}

// RunStats counts row outcomes of a run.
type RunStats struct {
	TotalRows     int
	StartRow      int
	Enriched      int
	NoReasons     int
	SkippedEmpty  int
	AlreadyFilled int
	FailedNulled  int
	Checkpoints   int
}

// Runner enriches a dataset table row by row.
type Runner struct {
	extractor ReasonExtractor
	metrics   observability.EnrichmentMetrics
	logger    *slog.Logger
}

// NewRunner creates a Runner. metrics may be nil.
func NewRunner(extractor ReasonExtractor, metrics observability.EnrichmentMetrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{extractor: extractor, metrics: metrics, logger: logger}
}

// Run enriches p.Input into p.Output. When a checkpoint for the same input
// exists, the run resumes from the partially written output at the recorded row.
// Failing to write the output or the checkpoint aborts the run; the previous
// checkpoint stays valid. When ctx ends, the row in flight is left unwritten and
// the checkpoint points at it.
func (r *Runner) Run(ctx context.Context, p RunParams) (RunStats, error) {
	every := p.CheckpointEvery
	if every <= 0 {
		every = DefaultCheckpointEvery
	}

	table, start, err := r.open(p)
	if err != nil {
		return RunStats{}, err
	}

	if err := table.Require(dataset.ColumnComment); err != nil {
		return RunStats{}, fmt.Errorf("%s: %w", p.Input, err)
	}

	for _, d := range models.Dimensions {
		table.EnsureColumn(d.ReasonColumn())
	}

	stats := RunStats{TotalRows: table.Len(), StartRow: start}
	checkpointPath := CheckpointPath(p.Output)

	r.logger.Info("enrichment started", "input", p.Input, "output", p.Output,
		"total_rows", stats.TotalRows, "start_row", start)

	for i := start; i < table.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return stats, r.interrupted(ctx, table, p, checkpointPath, i, start, err)
		}

		status, err := r.enrichRow(ctx, table, i, p.Overwrite)
		if err != nil {
			return stats, r.interrupted(ctx, table, p, checkpointPath, i, start, err)
		}

		stats.add(status)

		if r.metrics != nil {
			r.metrics.RecordRow(ctx, status)
		}

		if (i+1)%every == 0 {
			if err := r.checkpoint(ctx, table, p, checkpointPath, i+1); err != nil {
				return stats, err
			}

			stats.Checkpoints++
			r.logger.Info("progress saved", "row", i+1, "total_rows", stats.TotalRows)
		}
	}

	if err := r.checkpoint(ctx, table, p, checkpointPath, table.Len()); err != nil {
		return stats, err
	}

	stats.Checkpoints++

	r.logger.Info("enrichment completed",
		"total_rows", stats.TotalRows,
		"enriched", stats.Enriched,
		"no_reasons", stats.NoReasons,
		"skipped_empty", stats.SkippedEmpty,
		"already_filled", stats.AlreadyFilled,
		"failed_nulled", stats.FailedNulled,
	)

	return stats, nil
}

// open returns the table to work on and the first row to process.
func (r *Runner) open(p RunParams) (*dataset.Table, int, error) {
	cp, ok, err := LoadCheckpoint(CheckpointPath(p.Output))
	if err != nil {
		return nil, 0, err
	}

	if ok && !sameFile(cp.Input, p.Input) {
		r.logger.Warn("checkpoint belongs to another input, starting over",
			"checkpoint_input", cp.Input, "input", p.Input)

		ok = false
	}

	if ok {
		table, err := dataset.ReadTableFile(p.Output)
		if err != nil {
			return nil, 0, fmt.Errorf("resume from output: %w", err)
		}

		if table.Len() != cp.TotalRows {
			return nil, 0, fmt.Errorf("checkpoint expects %d rows but %s has %d", cp.TotalRows, p.Output, table.Len())
		}

		r.logger.Info("resuming from checkpoint", "next_row", cp.NextRow, "total_rows", cp.TotalRows)

		return table, cp.NextRow, nil
	}

	table, err := dataset.ReadTableFile(p.Input)
	if err != nil {
		return nil, 0, err
	}

	return table, 0, nil
}

func sameFile(a, b string) bool {
	if a == b {
		return true
	}

	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)

	return errA == nil && errB == nil && absA == absB
}

// interrupted saves the rows finished before row, so a resumed run starts at
// row, and returns cause. Nothing is saved when no row was finished.
func (r *Runner) interrupted(
	ctx context.Context, table *dataset.Table, p RunParams, path string, row, start int, cause error,
) error {
	r.logger.Warn("enrichment interrupted", "next_row", row, "error", cause)

	if row > start {
		if err := r.checkpoint(context.WithoutCancel(ctx), table, p, path, row); err != nil {
			return errors.Join(cause, err)
		}
	}

	return cause
}

// enrichRow fills the reason columns of row. It returns an error only when
// ctx ended during extraction; the row is then left untouched.
func (r *Runner) enrichRow(ctx context.Context, table *dataset.Table, row int, overwrite bool) (string, error) {
	comment := table.Get(row, dataset.ColumnComment)
	if strings.TrimSpace(comment) == "" || strings.EqualFold(strings.TrimSpace(comment), "nan") {
		return observability.EnrichmentStatusSkippedEmpty, nil
	}

	if !overwrite && hasReasons(table, row) {
		return observability.EnrichmentStatusAlreadyFilled, nil
	}

	reasons, err := r.extractor.Extract(ctx, comment)
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		return "", ctxErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}

	if err != nil {
		r.logger.Warn("reason extraction failed, leaving reasons empty",
			"row", row+1, "filename", table.Get(row, dataset.ColumnFilename), "error", err)

		reasons = Reasons{}
	}

	for _, d := range models.Dimensions {
		table.Set(row, d.ReasonColumn(), reasons[d])
	}

	switch {
	case err != nil:
		return observability.EnrichmentStatusFailedNulled, nil
	case len(reasons) == 0:
		return observability.EnrichmentStatusNoReasons, nil
	default:
		return observability.EnrichmentStatusEnriched, nil
	}
}

func hasReasons(table *dataset.Table, row int) bool {
	for _, d := range models.Dimensions {
		if strings.TrimSpace(table.Get(row, d.ReasonColumn())) != "" {
			return true
		}
	}

	return false
}

// checkpoint writes the output table and then the checkpoint, both atomically.
func (r *Runner) checkpoint(ctx context.Context, table *dataset.Table, p RunParams, path string, next int) error {
	err := table.WriteFile(p.Output)
	if err == nil {
		err = Checkpoint{NextRow: next, TotalRows: table.Len(), Input: p.Input}.Save(path)
	}

	if r.metrics != nil {
		r.metrics.RecordCheckpoint(ctx, err == nil)
	}

	if err != nil {
		return fmt.Errorf("checkpoint at row %d: %w", next, err)
	}

	return nil
}

func (s *RunStats) add(status string) {
	switch status {
	case observability.EnrichmentStatusEnriched:
		s.Enriched++
	case observability.EnrichmentStatusNoReasons:
		s.NoReasons++
	case observability.EnrichmentStatusSkippedEmpty:
		s.SkippedEmpty++
	case observability.EnrichmentStatusAlreadyFilled:
		s.AlreadyFilled++
	case observability.EnrichmentStatusFailedNulled:
		s.FailedNulled++
	}
}

// Done reports whether the checkpoint for output marks a finished run.
func Done(output string) (bool, error) {
	cp, ok, err := LoadCheckpoint(CheckpointPath(output))
	if err != nil || !ok {
		return false, err
	}

	if _, err := os.Stat(output); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return cp.NextRow == cp.TotalRows, nil
}
